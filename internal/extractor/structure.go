package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/rategrid/contract-extractor/internal/catalog"
	"github.com/rategrid/contract-extractor/internal/invoker"
	"github.com/rategrid/contract-extractor/internal/model"
)

// extractStructure runs Pass 1: the price-free contract skeleton. A payload
// that stays unparsable after repair fails the whole extraction; there is no
// structure to build pricing from.
func (e *Extractor) extractStructure(ctx context.Context, doc Document, ec model.ExtractionContext) (*model.ContractStructure, []string, model.TokenUsage, error) {
	var usage model.TokenUsage

	resp, err := e.invoker.Invoke(ctx, invoker.Request{
		Operation:     "structure",
		System:        structureSystemText,
		Prompt:        buildStructurePrompt(ec),
		DocumentBytes: doc.Bytes,
		MIMEType:      doc.MIMEType,
		MaxTokens:     e.opts.StructureMaxTokens,
	})
	if err != nil {
		return nil, nil, usage, eris.Wrap(err, "extract structure")
	}
	usage.Add(resp.Usage)

	var structure model.ContractStructure
	if err := decodePayload(resp.Text, "structure", &structure); err != nil {
		return nil, nil, usage, err
	}

	warnings := normalizeStructure(&structure, ec)

	zap.L().Info("structure extracted",
		zap.String("hotel", structure.ContractInfo.HotelName),
		zap.String("pricing_type", string(structure.ContractInfo.PricingType)),
		zap.Int("periods", len(structure.Periods)),
		zap.Int("rooms", len(structure.RoomTypes)),
		zap.Int("meal_plans", len(structure.MealPlans)),
	)

	return &structure, warnings, usage, nil
}

// normalizeStructure enforces the structure invariants after parsing: a valid
// pricing type, unique period codes, catalog-matched rooms and meal plans
// with unique resolved codes, and a recognized currency. Returns warnings for
// anything repaired or suspect.
func normalizeStructure(structure *model.ContractStructure, ec model.ExtractionContext) []string {
	var warnings []string

	if !structure.ContractInfo.PricingType.Valid() {
		warnings = append(warnings, fmt.Sprintf(
			"unrecognized pricing type %q, defaulting to unit", structure.ContractInfo.PricingType))
		structure.ContractInfo.PricingType = model.PricingUnit
	}

	if structure.ContractInfo.Currency == "" && ec.Currency != "" {
		structure.ContractInfo.Currency = ec.Currency
	}
	if w := validateCurrency(structure.ContractInfo.Currency); w != "" {
		warnings = append(warnings, w)
	}

	dedupePeriodCodes(structure.Periods, &warnings)

	matcher := catalog.NewMatcher(ec)
	for i := range structure.RoomTypes {
		matcher.MatchRoom(&structure.RoomTypes[i])
	}
	for i := range structure.MealPlans {
		matcher.MatchMealPlan(&structure.MealPlans[i])
	}

	// The matcher keeps suggested codes unique, but duplicate contract codes
	// come straight from the model and bypass it.
	dedupeRoomCodes(structure.RoomTypes, &warnings)
	dedupeMealPlanCodes(structure.MealPlans, &warnings)

	return warnings
}

// dedupePeriodCodes assigns sequential codes to periods missing one and
// disambiguates duplicates; periods themselves are kept as written, even
// when their date ranges overlap.
func dedupePeriodCodes(periods []model.Period, warnings *[]string) {
	seen := make(map[string]bool, len(periods))
	for i := range periods {
		code := strings.TrimSpace(periods[i].Code)
		if code == "" {
			code = fmt.Sprintf("P%d", i+1)
		}
		if seen[code] {
			base := code
			for n := 2; seen[code]; n++ {
				code = fmt.Sprintf("%s_%d", base, n)
			}
			*warnings = append(*warnings, fmt.Sprintf("duplicate period code %q renamed to %q", base, code))
		}
		seen[code] = true
		periods[i].Code = code
	}
}

// dedupeRoomCodes disambiguates rooms whose resolved codes collide. Resolved
// codes key the pricing grid, so a collision would fold two rooms into one
// cell set and silently drop the second room's prices.
func dedupeRoomCodes(rooms []model.RoomType, warnings *[]string) {
	seen := make(map[string]bool, len(rooms))
	for i := range rooms {
		code := rooms[i].ResolvedCode()
		if !seen[code] {
			seen[code] = true
			continue
		}
		base := code
		for n := 2; seen[code]; n++ {
			code = fmt.Sprintf("%s_%d", base, n)
		}
		seen[code] = true
		setResolvedRoomCode(&rooms[i], code)
		*warnings = append(*warnings, fmt.Sprintf("duplicate room code %q renamed to %q", base, code))
	}
}

// dedupeMealPlanCodes applies the same disambiguation to meal plans.
func dedupeMealPlanCodes(plans []model.MealPlan, warnings *[]string) {
	seen := make(map[string]bool, len(plans))
	for i := range plans {
		code := plans[i].ResolvedCode()
		if !seen[code] {
			seen[code] = true
			continue
		}
		base := code
		for n := 2; seen[code]; n++ {
			code = fmt.Sprintf("%s_%d", base, n)
		}
		seen[code] = true
		if plans[i].ContractCode != "" {
			plans[i].ContractCode = code
		} else {
			plans[i].SuggestedCode = code
		}
		*warnings = append(*warnings, fmt.Sprintf("duplicate meal plan code %q renamed to %q", base, code))
	}
}

// setResolvedRoomCode rewrites whichever field ResolvedCode reads first so the
// new code takes effect; the contract name is left as written.
func setResolvedRoomCode(room *model.RoomType, code string) {
	if room.ContractCode != "" {
		room.ContractCode = code
		return
	}
	room.SuggestedCode = code
}

// validateCurrency checks the code against ISO 4217. Unknown codes are a
// warning, not a failure; the rate engine will reject them at persist time.
func validateCurrency(code string) string {
	if code == "" {
		return "contract currency missing"
	}
	if _, err := currency.ParseISO(code); err != nil {
		return fmt.Sprintf("unrecognized currency code %q", code)
	}
	return ""
}
