// Package extractor drives the multi-pass contract extraction pipeline:
// structure, per-room pricing, conditional multipliers, completeness
// validation, and a bounded retry over whatever the grid is still missing.
package extractor

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rategrid/contract-extractor/internal/invoker"
	"github.com/rategrid/contract-extractor/internal/model"
)

const (
	defaultBatchSize    = 3
	defaultRetryCeiling = 30

	defaultStructureMaxTokens  = 8192
	defaultPricingMaxTokens    = 4096
	defaultMultiplierMaxTokens = 2048
)

// Document is the rate sheet under extraction.
type Document struct {
	Bytes    []byte
	MIMEType string
}

// Options tunes the pipeline.
type Options struct {
	// BatchSize bounds concurrent room-pricing calls. Default: 3.
	BatchSize int
	// RetryCeiling skips the retry pass when more entries are missing.
	// Default: 30.
	RetryCeiling int

	StructureMaxTokens  int64
	PricingMaxTokens    int64
	MultiplierMaxTokens int64
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.RetryCeiling <= 0 {
		o.RetryCeiling = defaultRetryCeiling
	}
	if o.StructureMaxTokens <= 0 {
		o.StructureMaxTokens = defaultStructureMaxTokens
	}
	if o.PricingMaxTokens <= 0 {
		o.PricingMaxTokens = defaultPricingMaxTokens
	}
	if o.MultiplierMaxTokens <= 0 {
		o.MultiplierMaxTokens = defaultMultiplierMaxTokens
	}
	return o
}

// Extractor is the pipeline orchestrator. It holds no per-request state;
// one Extractor serves concurrent extractions.
type Extractor struct {
	invoker invoker.Invoker
	opts    Options
}

// New creates an Extractor around an already-constructed model invoker.
func New(inv invoker.Invoker, opts Options) *Extractor {
	return &Extractor{invoker: inv, opts: opts.withDefaults()}
}

// Extract runs the full pipeline over one contract document. Only Pass-1
// failures and upstream configuration failures abort the request; per-room
// and multiplier failures degrade into warnings and completeness gaps. The
// result always carries a measured completeness figure, never a guess.
func (e *Extractor) Extract(ctx context.Context, doc Document, ec model.ExtractionContext) (*model.ContractExtractionResult, error) {
	if len(doc.Bytes) == 0 {
		return nil, eris.New("extract: empty document")
	}

	var totalUsage model.TokenUsage

	structure, warnings, usage, err := e.extractStructure(ctx, doc, ec)
	totalUsage.Add(usage)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: cancelled")
	}

	pricing, pricingWarnings, usage := e.extractPricingForRooms(ctx, doc, structure, structure.RoomTypes)
	warnings = append(warnings, pricingWarnings...)
	totalUsage.Add(usage)

	var multipliers *model.MultiplierTable
	if structure.ContractInfo.PricingType == model.PricingPerPersonMultiplier {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "extract: cancelled")
		}
		table, usage, err := e.extractMultipliers(ctx, doc, structure)
		totalUsage.Add(usage)
		if err != nil {
			warnings = append(warnings, "occupancy multiplier table could not be extracted")
			zap.L().Warn("multiplier extraction failed", zap.Error(err))
		} else {
			multipliers = table
		}
	}

	validation := ValidateCompleteness(structure, pricing)

	if !validation.Complete() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "extract: cancelled")
		}
		if len(validation.MissingEntries) > e.opts.RetryCeiling {
			warnings = append(warnings, fmt.Sprintf(
				"%d pricing entries missing, above the retry ceiling of %d; skipping retry",
				len(validation.MissingEntries), e.opts.RetryCeiling))
		} else {
			merged, retryWarnings, retryUsage := e.retryMissing(ctx, doc, structure, pricing, validation)
			pricing = merged
			warnings = append(warnings, retryWarnings...)
			totalUsage.Add(retryUsage)
			validation = ValidateCompleteness(structure, pricing)
		}
	}

	if !validation.Complete() {
		warnings = append(warnings, fmt.Sprintf(
			"extraction incomplete: %d%% of the price grid found, %d entries missing",
			validation.Completeness, len(validation.MissingEntries)))
	}

	result := &model.ContractExtractionResult{
		Structure:      *structure,
		Pricing:        pricing,
		MultiplierData: multipliers,
		Validation:     validation,
		Warnings:       warnings,
		Confidence:     finalConfidence(structure, validation),
		TokenUsage:     totalUsage,
	}

	zap.L().Info("extraction complete",
		zap.String("hotel", structure.ContractInfo.HotelName),
		zap.Int("completeness", validation.Completeness),
		zap.Int("pricing_entries", len(pricing)),
		zap.Int("warnings", len(warnings)),
	)

	return result, nil
}

// finalConfidence scales the structure-level matching confidence by how much
// of the price grid was actually recovered.
func finalConfidence(structure *model.ContractStructure, validation model.ValidationResult) float64 {
	sum := 0.0
	n := 0
	for _, r := range structure.RoomTypes {
		sum += r.Confidence
		n++
	}
	for _, mp := range structure.MealPlans {
		sum += mp.Confidence
		n++
	}
	base := 1.0
	if n > 0 {
		base = sum / float64(n)
	}
	return base * float64(validation.Completeness) / 100
}
