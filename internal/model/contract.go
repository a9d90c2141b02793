package model

// PricingType classifies how a contract expresses room prices.
type PricingType string

const (
	// PricingUnit prices the whole room per night, with extra-person supplements.
	PricingUnit PricingType = "unit"
	// PricingPerPerson lists a distinct price per adult occupancy count.
	PricingPerPerson PricingType = "per_person"
	// PricingPerPersonMultiplier scales a base price by occupancy factors.
	PricingPerPersonMultiplier PricingType = "per_person_multiplier"
)

// Valid reports whether t is one of the known pricing models.
func (t PricingType) Valid() bool {
	switch t {
	case PricingUnit, PricingPerPerson, PricingPerPersonMultiplier:
		return true
	}
	return false
}

// ContractInfo holds contract-level metadata from the first extraction pass.
type ContractInfo struct {
	HotelName   string      `json:"hotelName"`
	ValidFrom   string      `json:"validFrom"`
	ValidTo     string      `json:"validTo"`
	Currency    string      `json:"currency"`
	PricingType PricingType `json:"pricingType"`
	Notes       string      `json:"notes,omitempty"`
}

// Period is a date range the contract prices independently. Periods are kept
// as written in the source: they may be contiguous or overlap.
type Period struct {
	Code      string `json:"code"`
	Name      string `json:"name,omitempty"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	MinStay   int    `json:"minStay,omitempty"`
}

// RoomCapacity describes occupancy limits for a room type.
type RoomCapacity struct {
	StandardOccupancy int `json:"standardOccupancy"`
	MaxAdults         int `json:"maxAdults"`
	MaxChildren       int `json:"maxChildren"`
	MaxInfants        int `json:"maxInfants"`
	MaxOccupancy      int `json:"maxOccupancy"`
}

// RoomType is a room candidate found in the contract, with the result of
// matching it against the caller's existing room catalog. MatchedCode is nil
// unless it names a code from that catalog.
type RoomType struct {
	ContractName  string       `json:"contractName"`
	ContractCode  string       `json:"contractCode,omitempty"`
	MatchedCode   *string      `json:"matchedCode"`
	IsNewRoom     bool         `json:"isNewRoom"`
	SuggestedCode string       `json:"suggestedCode,omitempty"`
	Confidence    float64      `json:"confidence"`
	Capacity      RoomCapacity `json:"capacity"`
}

// ResolvedCode returns the code that keys this room in the pricing grid:
// contract code first, then suggested code, then the raw contract name.
func (r RoomType) ResolvedCode() string {
	if r.ContractCode != "" {
		return r.ContractCode
	}
	if r.SuggestedCode != "" {
		return r.SuggestedCode
	}
	return r.ContractName
}

// MealPlan is a board-basis candidate found in the contract, matched against
// the caller's existing meal-plan catalog under the same rules as RoomType.
type MealPlan struct {
	ContractName  string  `json:"contractName"`
	ContractCode  string  `json:"contractCode,omitempty"`
	MatchedCode   *string `json:"matchedCode"`
	IsNewMealPlan bool    `json:"isNewMealPlan"`
	SuggestedCode string  `json:"suggestedCode,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// ResolvedCode returns the code that keys this meal plan in the pricing grid.
func (m MealPlan) ResolvedCode() string {
	if m.ContractCode != "" {
		return m.ContractCode
	}
	if m.SuggestedCode != "" {
		return m.SuggestedCode
	}
	return m.ContractName
}

// ChildType is an age band the contract prices children by.
type ChildType struct {
	Code    string  `json:"code"`
	Name    string  `json:"name,omitempty"`
	AgeFrom float64 `json:"ageFrom"`
	AgeTo   float64 `json:"ageTo"`
}

// EarlyBookingDiscount is a book-by discount rule.
type EarlyBookingDiscount struct {
	BookBefore      string   `json:"bookBefore"`
	DiscountPercent float64  `json:"discountPercent"`
	PeriodCodes     []string `json:"periodCodes,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// ContractStructure is the complete price-free skeleton of a contract,
// produced by the first pass. Every period code is unique within the
// structure, as is every room and meal-plan resolved code.
type ContractStructure struct {
	ContractInfo          ContractInfo           `json:"contractInfo"`
	Periods               []Period               `json:"periods"`
	RoomTypes             []RoomType             `json:"roomTypes"`
	MealPlans             []MealPlan             `json:"mealPlans"`
	ChildTypes            []ChildType            `json:"childTypes,omitempty"`
	EarlyBookingDiscounts []EarlyBookingDiscount `json:"earlyBookingDiscounts,omitempty"`
}

// CatalogRoom is an existing room type in the caller's catalog.
type CatalogRoom struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CatalogMealPlan is an existing meal plan in the caller's catalog.
type CatalogMealPlan struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ExtractionContext carries the caller's existing catalogs and currency.
// It biases catalog matching only and is never mutated by the pipeline.
type ExtractionContext struct {
	ExistingRooms     []CatalogRoom     `json:"existingRooms,omitempty"`
	ExistingMealPlans []CatalogMealPlan `json:"existingMealPlans,omitempty"`
	Currency          string            `json:"currency,omitempty"`
}

// HasRoomCode reports whether code is one of the caller's existing room codes.
func (c ExtractionContext) HasRoomCode(code string) bool {
	for _, r := range c.ExistingRooms {
		if r.Code == code {
			return true
		}
	}
	return false
}

// HasMealPlanCode reports whether code is one of the caller's existing
// meal-plan codes.
func (c ExtractionContext) HasMealPlanCode(code string) bool {
	for _, m := range c.ExistingMealPlans {
		if m.Code == code {
			return true
		}
	}
	return false
}
