// Package catalog matches contract room and meal-plan candidates against the
// caller's existing catalogs and suggests codes for unmatched ones.
package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rategrid/contract-extractor/internal/model"
)

// matchThreshold is the minimum token-overlap score for a name-based match.
const matchThreshold = 0.5

// mealPlanAliases maps common board-basis phrasings to canonical tokens so
// "Bed & Breakfast" can match a catalog entry coded "BB".
var mealPlanAliases = map[string]string{
	"bed and breakfast":   "BB",
	"bed breakfast":       "BB",
	"breakfast":           "BB",
	"half board":          "HB",
	"half pension":        "HB",
	"full board":          "FB",
	"full pension":        "FB",
	"all inclusive":       "AI",
	"ultra all inclusive": "UAI",
	"room only":           "RO",
	"self catering":       "RO",
}

// Matcher resolves contract candidates against one caller's catalogs. The
// used-code sets live on the Matcher so uniqueness is scoped to a single
// extraction request; concurrent extractions never share state.
type Matcher struct {
	ctx           model.ExtractionContext
	usedRoomCodes map[string]bool
	usedMealCodes map[string]bool
}

// NewMatcher creates a Matcher with fresh used-code tracking.
func NewMatcher(ctx model.ExtractionContext) *Matcher {
	m := &Matcher{
		ctx:           ctx,
		usedRoomCodes: make(map[string]bool),
		usedMealCodes: make(map[string]bool),
	}
	for _, r := range ctx.ExistingRooms {
		m.usedRoomCodes[strings.ToUpper(r.Code)] = true
	}
	for _, mp := range ctx.ExistingMealPlans {
		m.usedMealCodes[strings.ToUpper(mp.Code)] = true
	}
	return m
}

// MatchRoom resolves a room candidate in place: code equality against the
// existing catalog first, then name heuristics, falling back to a suggested
// code with IsNewRoom set. MatchedCode is only ever a catalog code or nil.
func (m *Matcher) MatchRoom(room *model.RoomType) {
	for _, existing := range m.ctx.ExistingRooms {
		if room.ContractCode != "" && strings.EqualFold(room.ContractCode, existing.Code) {
			code := existing.Code
			room.MatchedCode = &code
			room.IsNewRoom = false
			room.Confidence = 1.0
			return
		}
	}

	bestScore := 0.0
	bestCode := ""
	for _, existing := range m.ctx.ExistingRooms {
		if score := nameOverlap(room.ContractName, existing.Name); score > bestScore {
			bestScore = score
			bestCode = existing.Code
		}
	}
	if bestScore >= matchThreshold {
		room.MatchedCode = &bestCode
		room.IsNewRoom = false
		room.Confidence = bestScore
		return
	}

	room.MatchedCode = nil
	room.IsNewRoom = true
	if room.SuggestedCode == "" {
		room.SuggestedCode = m.suggestCode(room.ContractName, m.usedRoomCodes)
	} else {
		room.SuggestedCode = m.claimCode(room.SuggestedCode, m.usedRoomCodes)
	}
	if room.Confidence == 0 {
		room.Confidence = 0.5
	}
}

// MatchMealPlan resolves a meal-plan candidate under the same policy as
// MatchRoom, with board-basis alias awareness.
func (m *Matcher) MatchMealPlan(plan *model.MealPlan) {
	alias := mealPlanAliases[normalizeName(plan.ContractName)]

	for _, existing := range m.ctx.ExistingMealPlans {
		matched := plan.ContractCode != "" && strings.EqualFold(plan.ContractCode, existing.Code)
		if !matched && alias != "" && strings.EqualFold(alias, existing.Code) {
			matched = true
		}
		if matched {
			code := existing.Code
			plan.MatchedCode = &code
			plan.IsNewMealPlan = false
			plan.Confidence = 1.0
			return
		}
	}

	bestScore := 0.0
	bestCode := ""
	for _, existing := range m.ctx.ExistingMealPlans {
		if score := nameOverlap(plan.ContractName, existing.Name); score > bestScore {
			bestScore = score
			bestCode = existing.Code
		}
	}
	if bestScore >= matchThreshold {
		plan.MatchedCode = &bestCode
		plan.IsNewMealPlan = false
		plan.Confidence = bestScore
		return
	}

	plan.MatchedCode = nil
	plan.IsNewMealPlan = true
	if plan.SuggestedCode == "" {
		seed := plan.ContractName
		if alias != "" {
			seed = alias
		}
		plan.SuggestedCode = m.suggestCode(seed, m.usedMealCodes)
	} else {
		plan.SuggestedCode = m.claimCode(plan.SuggestedCode, m.usedMealCodes)
	}
	if plan.Confidence == 0 {
		plan.Confidence = 0.5
	}
}

// suggestCode derives a 3-10 character uppercase code from a name and claims
// it in the used set, disambiguating with a numeric suffix when taken.
func (m *Matcher) suggestCode(name string, used map[string]bool) string {
	base := codeFromName(name)
	return m.claimCode(base, used)
}

func (m *Matcher) claimCode(base string, used map[string]bool) string {
	base = sanitizeCode(base)
	if !used[base] {
		used[base] = true
		return base
	}
	for i := 2; ; i++ {
		suffix := fmt.Sprintf("%d", i)
		candidate := base
		if len(candidate)+len(suffix) > 10 {
			candidate = candidate[:10-len(suffix)]
		}
		candidate += suffix
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// codeFromName builds a code candidate from word initials, falling back to a
// prefix of the condensed name when there are too few words.
func codeFromName(name string) string {
	words := strings.Fields(normalizeName(name))
	var b strings.Builder
	for _, w := range words {
		b.WriteByte(w[0])
	}
	code := strings.ToUpper(b.String())
	if len(code) < 3 {
		condensed := strings.ToUpper(strings.Join(words, ""))
		if len(condensed) > 10 {
			condensed = condensed[:10]
		}
		code = condensed
	}
	return sanitizeCode(code)
}

// sanitizeCode clamps a code to uppercase alphanumerics of length 3-10.
func sanitizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 10 {
		out = out[:10]
	}
	for len(out) < 3 {
		out += "X"
	}
	return out
}

// nameOverlap scores two names by shared token count over the larger token
// set, after normalization.
func nameOverlap(a, b string) float64 {
	ta := strings.Fields(normalizeName(a))
	tb := strings.Fields(normalizeName(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	shared := 0
	for _, t := range tb {
		if set[t] {
			shared++
		}
	}
	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(shared) / float64(denom)
}

// normalizeName lowercases a name and collapses punctuation to spaces.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
