package extractor

import (
	"fmt"
	"strings"

	"github.com/rategrid/contract-extractor/internal/model"
)

const structureSystemText = "You are a hotel contracting analyst extracting structured data from rate contracts. Return only valid JSON matching the requested schema. Use null for values not present in the document. Never invent prices."

const structurePrompt = `Read the attached hotel rate contract and extract its structure WITHOUT any prices.

Classify the pricing model first:
- "unit": prices are per room per night, with extra-adult/child supplements
- "per_person": a table of prices keyed by number of adults
- "per_person_multiplier": a single base price scaled by an occupancy multiplier table

Existing room types in our system (match against these when possible):
%s

Existing meal plans in our system (match against these when possible):
%s

Contract currency if known: %s

Return a JSON object:
{
  "contractInfo": {"hotelName": "", "validFrom": "YYYY-MM-DD", "validTo": "YYYY-MM-DD", "currency": "ISO 4217", "pricingType": "unit|per_person|per_person_multiplier", "notes": ""},
  "periods": [{"code": "P1", "name": "", "startDate": "YYYY-MM-DD", "endDate": "YYYY-MM-DD", "minStay": 0}],
  "roomTypes": [{"contractName": "", "contractCode": "", "capacity": {"standardOccupancy": 2, "maxAdults": 2, "maxChildren": 1, "maxInfants": 1, "maxOccupancy": 3}}],
  "mealPlans": [{"contractName": "", "contractCode": ""}],
  "childTypes": [{"code": "", "name": "", "ageFrom": 0, "ageTo": 0}],
  "earlyBookingDiscounts": [{"bookBefore": "YYYY-MM-DD", "discountPercent": 0, "periodCodes": []}]
}

List every period, room type, and meal plan the contract defines. Give each
period a short unique code (P1, P2, ...). Do not include any prices.`

const pricingSystemText = "You are a hotel contracting analyst extracting prices from rate contracts. Return only valid JSON. Extract prices exactly as printed; never estimate or interpolate."

const pricingPromptHeader = `Read the attached hotel rate contract and extract ALL nightly prices for one room type only.

Room: %q (contract code %q)

The contract defines these periods:
%s

And these meal plans:
%s

Return one entry for EVERY combination of the %d periods and %d meal plans
listed above (%d entries total). Use exactly the periodCode and mealPlanCode
values given. Set roomCode to %q on every entry.
`

const pricingShapeUnit = `Pricing model is per unit. Return a JSON object:
{"pricing": [{"periodCode": "", "roomCode": "", "mealPlanCode": "", "pricePerNight": 0, "extraAdult": 0, "extraChild": [0], "extraInfant": 0}]}`

const pricingShapePerPerson = `Pricing model is per person. Return a JSON object:
{"pricing": [{"periodCode": "", "roomCode": "", "mealPlanCode": "", "occupancyPricing": {"1": 0, "2": 0}, "extraChild": [0]}]}
occupancyPricing maps the number of adults to the price per person per night.`

const pricingShapeMultiplier = `Pricing model is per person with occupancy multipliers. Return a JSON object:
{"pricing": [{"periodCode": "", "roomCode": "", "mealPlanCode": "", "pricePerNight": 0}]}
pricePerNight is the BASE price before multipliers are applied.`

const multiplierSystemText = "You are a hotel contracting analyst extracting occupancy multiplier tables from rate contracts. Return only valid JSON."

const multiplierPrompt = `Read the attached hotel rate contract and extract its occupancy multiplier
table. The contract prices rooms as a base price scaled by occupancy factors.

Child age bands defined by the contract:
%s

Return a JSON object:
{
  "adultMultipliers": {"1": 0.8, "2": 1.0, "3": 1.3},
  "childMultipliers": {"1": {"CHILD_A": 0.5}},
  "roundingRule": "none|nearest|up|down"
}

adultMultipliers maps number of adults to the factor applied to the base
price. childMultipliers maps the child's order (1 = first child) to a factor
per age-band code. Factors written as percentages ("80%%") should be returned
as given; "free" or "gratis" means 0.`

// buildStructurePrompt renders the Pass-1 prompt with the caller's catalogs.
func buildStructurePrompt(ec model.ExtractionContext) string {
	return fmt.Sprintf(structurePrompt,
		formatRoomCatalog(ec.ExistingRooms),
		formatMealPlanCatalog(ec.ExistingMealPlans),
		orUnknown(ec.Currency),
	)
}

// buildPricingPrompt renders the room-scoped Pass-2 prompt. Narrowing each
// call to one room and naming the exact expected codes is what keeps
// omissions low, so the period and meal-plan lists are spelled out in full.
func buildPricingPrompt(structure *model.ContractStructure, room model.RoomType) string {
	periods := make([]string, len(structure.Periods))
	for i, p := range structure.Periods {
		periods[i] = fmt.Sprintf("- %s: %s to %s", p.Code, p.StartDate, p.EndDate)
	}
	plans := make([]string, len(structure.MealPlans))
	for i, mp := range structure.MealPlans {
		plans[i] = fmt.Sprintf("- %s: %s", mp.ResolvedCode(), mp.ContractName)
	}

	roomCode := room.ResolvedCode()
	header := fmt.Sprintf(pricingPromptHeader,
		room.ContractName, room.ContractCode,
		strings.Join(periods, "\n"),
		strings.Join(plans, "\n"),
		len(structure.Periods), len(structure.MealPlans),
		len(structure.Periods)*len(structure.MealPlans),
		roomCode,
	)

	switch structure.ContractInfo.PricingType {
	case model.PricingPerPerson:
		return header + "\n" + pricingShapePerPerson
	case model.PricingPerPersonMultiplier:
		return header + "\n" + pricingShapeMultiplier
	default:
		return header + "\n" + pricingShapeUnit
	}
}

// buildMultiplierPrompt renders the Pass-3 prompt.
func buildMultiplierPrompt(structure *model.ContractStructure) string {
	bands := make([]string, len(structure.ChildTypes))
	for i, ct := range structure.ChildTypes {
		bands[i] = fmt.Sprintf("- %s: ages %.0f-%.0f", ct.Code, ct.AgeFrom, ct.AgeTo)
	}
	if len(bands) == 0 {
		bands = []string{"(none defined)"}
	}
	return fmt.Sprintf(multiplierPrompt, strings.Join(bands, "\n"))
}

func formatRoomCatalog(rooms []model.CatalogRoom) string {
	if len(rooms) == 0 {
		return "(none)"
	}
	lines := make([]string, len(rooms))
	for i, r := range rooms {
		lines[i] = fmt.Sprintf("- %s: %s", r.Code, r.Name)
	}
	return strings.Join(lines, "\n")
}

func formatMealPlanCatalog(plans []model.CatalogMealPlan) string {
	if len(plans) == 0 {
		return "(none)"
	}
	lines := make([]string, len(plans))
	for i, p := range plans {
		lines[i] = fmt.Sprintf("- %s: %s", p.Code, p.Name)
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
