package model

import "fmt"

// PricingEntry is one cell of the price grid, keyed by
// (periodCode, roomCode, mealPlanCode). Which payload fields are populated
// depends on the contract's pricing type.
type PricingEntry struct {
	PeriodCode   string `json:"periodCode"`
	RoomCode     string `json:"roomCode"`
	MealPlanCode string `json:"mealPlanCode"`

	// unit and per_person_multiplier pricing.
	PricePerNight float64 `json:"pricePerNight,omitempty"`

	// unit pricing supplements.
	ExtraAdult  float64   `json:"extraAdult,omitempty"`
	ExtraChild  []float64 `json:"extraChild,omitempty"`
	ExtraInfant float64   `json:"extraInfant,omitempty"`

	// per_person pricing: adult count ("1", "2", ...) → price.
	OccupancyPricing map[string]float64 `json:"occupancyPricing,omitempty"`
}

// Key returns the composite grid key for this entry.
func (e PricingEntry) Key() string {
	return GridKey(e.PeriodCode, e.RoomCode, e.MealPlanCode)
}

// GridKey builds the composite key used to deduplicate pricing entries.
func GridKey(periodCode, roomCode, mealPlanCode string) string {
	return periodCode + "|" + roomCode + "|" + mealPlanCode
}

// RoundingRule controls how multiplied per-person prices are rounded.
type RoundingRule string

const (
	RoundNone    RoundingRule = "none"
	RoundNearest RoundingRule = "nearest"
	RoundUp      RoundingRule = "up"
	RoundDown    RoundingRule = "down"
)

// MultiplierTable holds occupancy factors for per_person_multiplier
// contracts. AdultMultipliers maps occupancy count ("1", "2", ...) to a
// factor; ChildMultipliers maps child order ("1" = first child) to factors
// per age-group code.
type MultiplierTable struct {
	AdultMultipliers map[string]float64            `json:"adultMultipliers"`
	ChildMultipliers map[string]map[string]float64 `json:"childMultipliers,omitempty"`
	RoundingRule     RoundingRule                  `json:"roundingRule"`
}

// AdultPrice applies the occupancy factor for the given adult count to a base
// price. The rounding rule is not applied here; callers decide when to round.
func (t MultiplierTable) AdultPrice(base float64, adults int) (float64, error) {
	factor, ok := t.AdultMultipliers[fmt.Sprintf("%d", adults)]
	if !ok {
		return 0, fmt.Errorf("no adult multiplier for occupancy %d", adults)
	}
	return base * factor, nil
}

// MissingEntry identifies one absent cell of the expected price grid.
type MissingEntry struct {
	PeriodCode   string `json:"periodCode"`
	RoomCode     string `json:"roomCode"`
	MealPlanCode string `json:"mealPlanCode"`
}

// ValidationResult reports grid coverage after a pricing pass.
// Completeness is 100 when TotalExpected is zero.
type ValidationResult struct {
	TotalExpected  int            `json:"totalExpected"`
	TotalFound     int            `json:"totalFound"`
	Completeness   int            `json:"completeness"`
	MissingEntries []MissingEntry `json:"missingEntries,omitempty"`
}

// Complete reports whether the grid is fully populated.
func (v ValidationResult) Complete() bool {
	return v.Completeness >= 100
}
