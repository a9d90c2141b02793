package extractor

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rategrid/contract-extractor/internal/invoker"
	"github.com/rategrid/contract-extractor/internal/model"
)

// rawMultiplierTable is the Pass-3 payload before factor normalization.
// Factors arrive in whatever notation the contract used: 0.8, "80%", "free".
type rawMultiplierTable struct {
	AdultMultipliers map[string]any            `json:"adultMultipliers"`
	ChildMultipliers map[string]map[string]any `json:"childMultipliers"`
	RoundingRule     string                    `json:"roundingRule"`
}

// extractMultipliers runs Pass 3, only reached when the pricing model is
// per_person_multiplier. A malformed payload yields no table, reported as a
// warning rather than failing the extraction.
func (e *Extractor) extractMultipliers(ctx context.Context, doc Document, structure *model.ContractStructure) (*model.MultiplierTable, model.TokenUsage, error) {
	var usage model.TokenUsage

	resp, err := e.invoker.Invoke(ctx, invoker.Request{
		Operation:     "multipliers",
		System:        multiplierSystemText,
		Prompt:        buildMultiplierPrompt(structure),
		DocumentBytes: doc.Bytes,
		MIMEType:      doc.MIMEType,
		MaxTokens:     e.opts.MultiplierMaxTokens,
	})
	if err != nil {
		return nil, usage, err
	}
	usage.Add(resp.Usage)

	var raw rawMultiplierTable
	if err := decodePayload(resp.Text, "multipliers", &raw); err != nil {
		return nil, usage, err
	}

	table := &model.MultiplierTable{
		AdultMultipliers: make(map[string]float64, len(raw.AdultMultipliers)),
		RoundingRule:     parseRoundingRule(raw.RoundingRule),
	}

	for count, v := range raw.AdultMultipliers {
		factor, err := normalizeFactor(v)
		if err != nil {
			zap.L().Warn("dropping unparsable adult multiplier",
				zap.String("occupancy", count), zap.Any("value", v))
			continue
		}
		table.AdultMultipliers[count] = factor
	}

	if len(raw.ChildMultipliers) > 0 {
		table.ChildMultipliers = make(map[string]map[string]float64, len(raw.ChildMultipliers))
		for order, byBand := range raw.ChildMultipliers {
			bands := make(map[string]float64, len(byBand))
			for band, v := range byBand {
				factor, err := normalizeFactor(v)
				if err != nil {
					zap.L().Warn("dropping unparsable child multiplier",
						zap.String("order", order), zap.String("band", band), zap.Any("value", v))
					continue
				}
				bands[band] = factor
			}
			table.ChildMultipliers[order] = bands
		}
	}

	return table, usage, nil
}

// normalizeFactor converts the notations contracts use for occupancy factors
// into a single decimal representation: "80%" and bare values above 3 are
// percentages, "free"/"gratis" is 0, anything else is already a factor.
func normalizeFactor(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		if val > 3 {
			return val / 100, nil
		}
		return val, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		switch s {
		case "free", "gratis", "gratuit", "0":
			return 0, nil
		}
		if strings.HasSuffix(s, "%") {
			pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
			if err != nil {
				return 0, eris.Wrapf(err, "parse percentage %q", val)
			}
			return pct / 100, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "parse factor %q", val)
		}
		if f > 3 {
			return f / 100, nil
		}
		return f, nil
	default:
		return 0, eris.Errorf("unsupported factor type %T", v)
	}
}

func parseRoundingRule(s string) model.RoundingRule {
	switch model.RoundingRule(strings.ToLower(strings.TrimSpace(s))) {
	case model.RoundNearest:
		return model.RoundNearest
	case model.RoundUp:
		return model.RoundUp
	case model.RoundDown:
		return model.RoundDown
	default:
		return model.RoundNone
	}
}
