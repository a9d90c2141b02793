package extractor

import (
	"math"

	"github.com/rategrid/contract-extractor/internal/model"
)

// ValidateCompleteness diffs the pricing entries found against the full
// period × room × meal-plan grid the structure implies. Pure and idempotent:
// it is run once after Pass 2 and again after the retry merge. Rooms and
// meal plans are keyed by their resolved code (contract code, else suggested
// code, else contract name).
func ValidateCompleteness(structure *model.ContractStructure, pricing []model.PricingEntry) model.ValidationResult {
	expected := len(structure.Periods) * len(structure.RoomTypes) * len(structure.MealPlans)

	found := make(map[string]bool, len(pricing))
	for _, entry := range pricing {
		found[entry.Key()] = true
	}

	var missing []model.MissingEntry
	for _, p := range structure.Periods {
		for _, r := range structure.RoomTypes {
			for _, mp := range structure.MealPlans {
				if !found[model.GridKey(p.Code, r.ResolvedCode(), mp.ResolvedCode())] {
					missing = append(missing, model.MissingEntry{
						PeriodCode:   p.Code,
						RoomCode:     r.ResolvedCode(),
						MealPlanCode: mp.ResolvedCode(),
					})
				}
			}
		}
	}

	completeness := 100
	if expected > 0 {
		totalFound := expected - len(missing)
		completeness = int(math.Round(float64(totalFound) / float64(expected) * 100))
	}

	return model.ValidationResult{
		TotalExpected:  expected,
		TotalFound:     expected - len(missing),
		Completeness:   completeness,
		MissingEntries: missing,
	}
}
