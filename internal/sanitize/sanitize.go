// Package sanitize repairs the free-form text returned by the model backend
// into parseable JSON. The backend gives no schema guarantee: responses may
// wrap the payload in prose or markdown fences, and output truncated at the
// token limit arrives with unbalanced brackets.
package sanitize

import (
	"regexp"
	"strings"
)

// scanState is the result of a string-aware bracket scan.
type scanState struct {
	// stack holds the currently open brackets in opening order.
	stack []byte
	// inString is true when the scan ended inside a string literal.
	inString bool
	// escaped is true when the scan ended on a bare backslash in a string.
	escaped bool
}

// scan walks text tracking string literals and escape sequences so that
// brackets inside quoted strings never count toward nesting.
func scan(text string) scanState {
	var st scanState
	for i := 0; i < len(text); i++ {
		c := text[i]
		if st.inString {
			switch {
			case st.escaped:
				st.escaped = false
			case c == '\\':
				st.escaped = true
			case c == '"':
				st.inString = false
			}
			continue
		}
		switch c {
		case '"':
			st.inString = true
		case '{', '[':
			st.stack = append(st.stack, c)
		case '}':
			if n := len(st.stack); n > 0 && st.stack[n-1] == '{' {
				st.stack = st.stack[:n-1]
			}
		case ']':
			if n := len(st.stack); n > 0 && st.stack[n-1] == '[' {
				st.stack = st.stack[:n-1]
			}
		}
	}
	return st
}

// IsTruncated reports whether text looks like JSON cut off mid-output:
// it does not end in '}' or ']', or its brackets are unbalanced.
func IsTruncated(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	last := trimmed[len(trimmed)-1]
	if last != '}' && last != ']' {
		return true
	}
	st := scan(trimmed)
	return len(st.stack) > 0 || st.inString
}

// trailingKeyRe matches a dangling `,"key":` with no value after it.
var trailingKeyRe = regexp.MustCompile(`,\s*"(?:[^"\\]|\\.)*"\s*:\s*$`)

// openingKeyRe matches a dangling `{"key":` as the tail of the text; the
// object brace is kept so the repair closes it as an empty object.
var openingKeyRe = regexp.MustCompile(`\{\s*"(?:[^"\\]|\\.)*"\s*:\s*$`)

// A cut inside a key leaves `,"key` or `{"key` with no colon once the string
// literal is terminated. These only apply in object context; a trailing
// string in array context is a legitimate element.
var (
	bareKeyRe        = regexp.MustCompile(`,\s*"(?:[^"\\]|\\.)*"\s*$`)
	openingBareKeyRe = regexp.MustCompile(`\{\s*"(?:[^"\\]|\\.)*"\s*$`)
)

// Repair best-effort closes truncated JSON. It never fails: it terminates an
// unfinished string literal, strips a trailing key with no value, drops a
// trailing comma, and appends the closing brackets needed to rebalance. The
// output parses as JSON, though trailing fields lost to truncation stay lost.
func Repair(text string) string {
	out := strings.TrimSpace(text)
	if out == "" {
		return "{}"
	}

	st := scan(out)
	if st.inString {
		if st.escaped {
			out = out[:len(out)-1]
		}
		out += `"`
	}

	out = trailingKeyRe.ReplaceAllString(out, "")
	out = openingKeyRe.ReplaceAllString(out, "{")
	if st := scan(out); len(st.stack) > 0 && st.stack[len(st.stack)-1] == '{' {
		out = bareKeyRe.ReplaceAllString(out, "")
		out = openingBareKeyRe.ReplaceAllString(out, "{")
	}
	out = strings.TrimRight(out, " \t\r\n")
	out = strings.TrimSuffix(out, ",")

	st = scan(out)
	for i := len(st.stack) - 1; i >= 0; i-- {
		switch st.stack[i] {
		case '{':
			out += "}"
		case '[':
			out += "]"
		}
	}
	return out
}

// ExtractPayload locates the JSON document inside a model response. It strips
// markdown code fences, then returns the outermost balanced bracket region.
// When the region never rebalances (truncated output) everything from the
// first bracket onward is returned for Repair to finish.
func ExtractPayload(text string) string {
	text = stripFences(strings.TrimSpace(text))

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return strings.TrimSpace(text)
	}

	var inString, escaped bool
	depth := 0
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return strings.TrimSpace(text[start:])
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	} else {
		return text
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
