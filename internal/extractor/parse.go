package extractor

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rategrid/contract-extractor/internal/sanitize"
)

// ErrMalformedResponse means a backend payload stayed unparsable even after
// sanitizer repair. Fatal for Pass 1; a recoverable gap everywhere else.
var ErrMalformedResponse = eris.New("malformed model response")

// decodePayload extracts the JSON payload from raw model text, repairing
// truncation when needed, and unmarshals it into v. The repair path loses
// whatever trailed the cut; the completeness validator picks that up later.
func decodePayload(raw, operation string, v any) error {
	payload := sanitize.ExtractPayload(raw)

	if sanitize.IsTruncated(payload) {
		zap.L().Warn("truncated payload, repairing",
			zap.String("operation", operation),
			zap.Int("raw_len", len(raw)),
		)
		payload = sanitize.Repair(payload)
	}

	if err := json.Unmarshal([]byte(payload), v); err != nil {
		// One more attempt: some malformed responses only reveal the damage
		// at unmarshal time (e.g. balanced brackets around a cut literal).
		repaired := sanitize.Repair(payload)
		if err2 := json.Unmarshal([]byte(repaired), v); err2 != nil {
			return eris.Wrapf(ErrMalformedResponse, "%s: %v", operation, err)
		}
	}
	return nil
}
