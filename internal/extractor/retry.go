package extractor

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/rategrid/contract-extractor/internal/model"
)

// planRetry selects the rooms worth a second pricing pass. Retrying is only
// worthwhile when the gap is small; beyond the ceiling the extraction is so
// incomplete that more upstream calls would be wasted, and the shortfall is
// reported instead.
func planRetry(structure *model.ContractStructure, validation model.ValidationResult, ceiling int) []model.RoomType {
	if validation.Complete() || len(validation.MissingEntries) == 0 {
		return nil
	}
	if len(validation.MissingEntries) > ceiling {
		return nil
	}

	missingRooms := make(map[string]bool)
	for _, m := range validation.MissingEntries {
		missingRooms[m.RoomCode] = true
	}

	var rooms []model.RoomType
	for _, r := range structure.RoomTypes {
		if missingRooms[r.ResolvedCode()] {
			rooms = append(rooms, r)
		}
	}
	return rooms
}

// retryMissing re-runs the pricing pass scoped to rooms that still have gaps
// and merges the result into the existing set. Merging never overwrites:
// first-found wins, and a retried entry that duplicates an existing key with
// a different payload is surfaced as a data-quality warning.
func (e *Extractor) retryMissing(ctx context.Context, doc Document, structure *model.ContractStructure, pricing []model.PricingEntry, validation model.ValidationResult) ([]model.PricingEntry, []string, model.TokenUsage) {
	var usage model.TokenUsage

	rooms := planRetry(structure, validation, e.opts.RetryCeiling)
	if len(rooms) == 0 {
		return pricing, nil, usage
	}

	zap.L().Info("retrying rooms with missing pricing",
		zap.Int("rooms", len(rooms)),
		zap.Int("missing_entries", len(validation.MissingEntries)),
	)

	retrieved, fanWarnings, retryUsage := e.extractPricingForRooms(ctx, doc, structure, rooms)
	usage.Add(retryUsage)

	merged, mergeWarnings := mergePricing(pricing, retrieved)
	return merged, append(fanWarnings, mergeWarnings...), usage
}

// mergePricing appends only genuinely new keys from retrieved onto existing.
// Conflicting duplicates keep the original value and produce a warning. The
// same policy covers both the retry merge and the Pass-2 fan-in, so each grid
// key appears at most once in the final set.
func mergePricing(existing, retrieved []model.PricingEntry) ([]model.PricingEntry, []string) {
	seen := make(map[string]model.PricingEntry, len(existing))
	for _, entry := range existing {
		seen[entry.Key()] = entry
	}

	merged := existing
	var warnings []string
	for _, entry := range retrieved {
		key := entry.Key()
		if original, dup := seen[key]; dup {
			if !reflect.DeepEqual(original, entry) {
				warnings = append(warnings, fmt.Sprintf(
					"duplicate entry for %s/%s/%s with a different price; kept the original",
					entry.PeriodCode, entry.RoomCode, entry.MealPlanCode))
			}
			continue
		}
		seen[key] = entry
		merged = append(merged, entry)
	}
	return merged, warnings
}
