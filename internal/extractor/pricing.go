package extractor

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rategrid/contract-extractor/internal/invoker"
	"github.com/rategrid/contract-extractor/internal/model"
)

// pricingPayload is the Pass-2 response envelope.
type pricingPayload struct {
	Pricing []model.PricingEntry `json:"pricing"`
}

// extractRoomPricing runs one room-scoped pricing call. Entries are returned
// as found; cross-checking them against the expected grid is the validator's
// job.
func (e *Extractor) extractRoomPricing(ctx context.Context, doc Document, structure *model.ContractStructure, room model.RoomType) ([]model.PricingEntry, model.TokenUsage, error) {
	var usage model.TokenUsage

	resp, err := e.invoker.Invoke(ctx, invoker.Request{
		Operation:     "pricing:" + room.ResolvedCode(),
		System:        pricingSystemText,
		Prompt:        buildPricingPrompt(structure, room),
		DocumentBytes: doc.Bytes,
		MIMEType:      doc.MIMEType,
		MaxTokens:     e.opts.PricingMaxTokens,
	})
	if err != nil {
		return nil, usage, err
	}
	usage.Add(resp.Usage)

	var payload pricingPayload
	if err := decodePayload(resp.Text, "pricing:"+room.ResolvedCode(), &payload); err != nil {
		// Some responses come back as a bare array.
		var entries []model.PricingEntry
		if err2 := decodePayload(resp.Text, "pricing:"+room.ResolvedCode(), &entries); err2 != nil {
			return nil, usage, err
		}
		payload.Pricing = entries
	}

	return payload.Pricing, usage, nil
}

// extractPricingForRooms fans the room-scoped calls out in fixed-size batches.
// Every call in a batch completes before the next batch starts, which bounds
// upstream concurrency; one room failing does not abort its siblings, it just
// contributes zero entries for the validator to report as missing. Results
// land in per-room slots so no locking is needed. The fan-in dedupes on the
// composite grid key: the model sometimes emits the same cell twice in one
// response, and the final set must hold each key at most once.
func (e *Extractor) extractPricingForRooms(ctx context.Context, doc Document, structure *model.ContractStructure, rooms []model.RoomType) ([]model.PricingEntry, []string, model.TokenUsage) {
	entrySlots := make([][]model.PricingEntry, len(rooms))
	usageSlots := make([]model.TokenUsage, len(rooms))

	batchSize := e.opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < len(rooms); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + batchSize
		if end > len(rooms) {
			end = len(rooms)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				entries, usage, err := e.extractRoomPricing(ctx, doc, structure, rooms[i])
				usageSlots[i] = usage
				if err != nil {
					zap.L().Warn("room pricing extraction failed",
						zap.String("room", rooms[i].ResolvedCode()),
						zap.Error(err),
					)
					return nil // siblings keep running; the gap is recoverable
				}
				entrySlots[i] = entries
				return nil
			})
		}
		_ = g.Wait()
	}

	var all []model.PricingEntry
	var warnings []string
	var total model.TokenUsage
	for i := range rooms {
		merged, w := mergePricing(all, entrySlots[i])
		all = merged
		warnings = append(warnings, w...)
		total.Add(usageSlots[i])
	}
	return all, warnings, total
}
