package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rategrid/contract-extractor/internal/model"
)

func TestMergePricingAppendsNewKeys(t *testing.T) {
	existing := []model.PricingEntry{
		{PeriodCode: "P1", RoomCode: "R1", MealPlanCode: "M1", PricePerNight: 100},
	}
	retrieved := []model.PricingEntry{
		{PeriodCode: "P2", RoomCode: "R1", MealPlanCode: "M1", PricePerNight: 120},
	}

	merged, warnings := mergePricing(existing, retrieved)

	require.Len(t, merged, 2)
	assert.Empty(t, warnings)
}

func TestMergePricingNeverOverwrites(t *testing.T) {
	existing := []model.PricingEntry{
		{PeriodCode: "P1", RoomCode: "R1", MealPlanCode: "M1", PricePerNight: 100},
	}
	retrieved := []model.PricingEntry{
		{PeriodCode: "P1", RoomCode: "R1", MealPlanCode: "M1", PricePerNight: 999},
	}

	merged, warnings := mergePricing(existing, retrieved)

	require.Len(t, merged, 1)
	assert.Equal(t, 100.0, merged[0].PricePerNight)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "P1/R1/M1")
	assert.Contains(t, warnings[0], "kept the original")
}

func TestMergePricingIdenticalDuplicateIsSilent(t *testing.T) {
	entry := model.PricingEntry{PeriodCode: "P1", RoomCode: "R1", MealPlanCode: "M1", PricePerNight: 100}

	merged, warnings := mergePricing([]model.PricingEntry{entry}, []model.PricingEntry{entry})

	assert.Len(t, merged, 1)
	assert.Empty(t, warnings)
}

func TestPlanRetryNilWhenComplete(t *testing.T) {
	s := gridStructure(2, 2, 2)
	v := ValidateCompleteness(s, fullGrid(s))

	assert.Nil(t, planRetry(s, v, 30))
}

func TestPlanRetryNilAboveCeiling(t *testing.T) {
	// 4 x 4 x 2 = 32 missing entries, above a ceiling of 30.
	s := gridStructure(4, 4, 2)
	v := ValidateCompleteness(s, nil)
	require.Len(t, v.MissingEntries, 32)

	assert.Nil(t, planRetry(s, v, 30))
}

func TestPlanRetrySelectsOnlyRoomsWithGaps(t *testing.T) {
	s := gridStructure(2, 3, 2)
	var pricing []model.PricingEntry
	for _, e := range fullGrid(s) {
		if e.RoomCode != "R3" {
			pricing = append(pricing, e)
		}
	}
	v := ValidateCompleteness(s, pricing)

	rooms := planRetry(s, v, 30)

	require.Len(t, rooms, 1)
	assert.Equal(t, "R3", rooms[0].ResolvedCode())
}

func TestPlanRetryAtCeilingBoundary(t *testing.T) {
	// Exactly 30 missing entries still retries; the ceiling is exclusive.
	s := gridStructure(5, 3, 2)
	require.Equal(t, 30, 5*3*2)
	v := ValidateCompleteness(s, nil)

	rooms := planRetry(s, v, 30)
	assert.Len(t, rooms, 3)
}
