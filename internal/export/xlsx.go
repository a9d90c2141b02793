// Package export renders an extraction result into an Excel workbook for
// human review before the dataset is loaded into the rate engine.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/rategrid/contract-extractor/internal/model"
)

// WriteWorkbook writes the price grid, structure summary, and (when present)
// multiplier table to path.
func WriteWorkbook(result *model.ContractExtractionResult, path string) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, result); err != nil {
		return err
	}
	if err := addPricingSheet(f, result); err != nil {
		return err
	}
	if result.MultiplierData != nil {
		if err := addMultiplierSheet(f, result.MultiplierData); err != nil {
			return err
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addSummarySheet(f *xlsx.File, result *model.ContractExtractionResult) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	info := result.Structure.ContractInfo
	addKV(sheet, "Hotel", info.HotelName)
	addKV(sheet, "Valid From", info.ValidFrom)
	addKV(sheet, "Valid To", info.ValidTo)
	addKV(sheet, "Currency", info.Currency)
	addKV(sheet, "Pricing Type", string(info.PricingType))
	addKV(sheet, "Completeness", fmt.Sprintf("%d%%", result.Validation.Completeness))
	addKV(sheet, "Entries Found", fmt.Sprintf("%d of %d", result.Validation.TotalFound, result.Validation.TotalExpected))
	addKV(sheet, "Confidence", fmt.Sprintf("%.2f", result.Confidence))

	for _, w := range result.Warnings {
		addKV(sheet, "Warning", w)
	}
	for _, m := range result.Validation.MissingEntries {
		addKV(sheet, "Missing", fmt.Sprintf("%s / %s / %s", m.PeriodCode, m.RoomCode, m.MealPlanCode))
	}
	return nil
}

func addPricingSheet(f *xlsx.File, result *model.ContractExtractionResult) error {
	sheet, err := f.AddSheet("Rates")
	if err != nil {
		return eris.Wrap(err, "export: add rates sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Period", "Room", "Meal Plan", "Price/Night", "Extra Adult", "Extra Child", "Extra Infant", "Occupancy Pricing"} {
		header.AddCell().Value = h
	}

	entries := append([]model.PricingEntry(nil), result.Pricing...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RoomCode != entries[j].RoomCode {
			return entries[i].RoomCode < entries[j].RoomCode
		}
		if entries[i].PeriodCode != entries[j].PeriodCode {
			return entries[i].PeriodCode < entries[j].PeriodCode
		}
		return entries[i].MealPlanCode < entries[j].MealPlanCode
	})

	for _, entry := range entries {
		row := sheet.AddRow()
		row.AddCell().Value = entry.PeriodCode
		row.AddCell().Value = entry.RoomCode
		row.AddCell().Value = entry.MealPlanCode
		row.AddCell().SetFloat(entry.PricePerNight)
		row.AddCell().SetFloat(entry.ExtraAdult)
		row.AddCell().Value = formatFloats(entry.ExtraChild)
		row.AddCell().SetFloat(entry.ExtraInfant)
		row.AddCell().Value = formatOccupancy(entry.OccupancyPricing)
	}
	return nil
}

func addMultiplierSheet(f *xlsx.File, table *model.MultiplierTable) error {
	sheet, err := f.AddSheet("Multipliers")
	if err != nil {
		return eris.Wrap(err, "export: add multipliers sheet")
	}

	addKV(sheet, "Rounding Rule", string(table.RoundingRule))

	header := sheet.AddRow()
	header.AddCell().Value = "Adults"
	header.AddCell().Value = "Factor"
	for _, count := range sortedKeys(table.AdultMultipliers) {
		row := sheet.AddRow()
		row.AddCell().Value = count
		row.AddCell().SetFloat(table.AdultMultipliers[count])
	}

	if len(table.ChildMultipliers) > 0 {
		header := sheet.AddRow()
		header.AddCell().Value = "Child Order"
		header.AddCell().Value = "Age Band"
		header.AddCell().Value = "Factor"
		for order, bands := range table.ChildMultipliers {
			for _, band := range sortedKeys(bands) {
				row := sheet.AddRow()
				row.AddCell().Value = order
				row.AddCell().Value = band
				row.AddCell().SetFloat(bands[band])
			}
		}
	}
	return nil
}

func addKV(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().Value = key
	row.AddCell().Value = value
}

func formatFloats(vals []float64) string {
	if len(vals) == 0 {
		return ""
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%.2f", v)
	}
	return strings.Join(parts, ", ")
}

func formatOccupancy(pricing map[string]float64) string {
	if len(pricing) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pricing))
	for _, k := range sortedKeys(pricing) {
		parts = append(parts, fmt.Sprintf("%s: %.2f", k, pricing[k]))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
