package extractor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rategrid/contract-extractor/internal/invoker"
	"github.com/rategrid/contract-extractor/internal/model"
)

var testDoc = Document{Bytes: []byte("%PDF-1.4 test"), MIMEType: "application/pdf"}

func structureJSON(t *testing.T, s *model.ContractStructure) string {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return string(data)
}

func pricingJSON(t *testing.T, entries []model.PricingEntry) string {
	t.Helper()
	data, err := json.Marshal(pricingPayload{Pricing: entries})
	require.NoError(t, err)
	return string(data)
}

// entriesForRoom filters a full grid down to one room's entries.
func entriesForRoom(s *model.ContractStructure, roomCode string) []model.PricingEntry {
	var out []model.PricingEntry
	for _, e := range fullGrid(s) {
		if e.RoomCode == roomCode {
			out = append(out, e)
		}
	}
	return out
}

func roomCodeFromOp(op string) string {
	return strings.TrimPrefix(op, "pricing:")
}

func TestExtractHappyPath(t *testing.T) {
	s := gridStructure(4, 3, 2)
	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, entriesForRoom(s, roomCodeFromOp(req.Operation))), nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	assert.Equal(t, 100, result.Validation.Completeness)
	assert.Len(t, result.Pricing, 24)
	assert.Empty(t, result.Warnings)
	assert.Nil(t, result.MultiplierData)
	assert.Equal(t, 1, mock.callCount("structure"))
	assert.Equal(t, 3, mock.callCount("pricing:"))
	assert.Positive(t, result.TokenUsage.InputTokens)
}

// One room's first pricing call fails; the retry pass recovers it and the
// grid ends complete.
func TestExtractRecoversFailedRoomViaRetry(t *testing.T) {
	s := gridStructure(4, 3, 2)
	mock := &mockInvoker{}
	failed := false
	mock.respond = func(req invoker.Request) (string, error) {
		switch {
		case req.Operation == "structure":
			return structureJSON(t, s), nil
		case req.Operation == "pricing:R2" && !failed:
			failed = true
			return "", eris.New("upstream hiccup")
		case strings.HasPrefix(req.Operation, "pricing:"):
			return pricingJSON(t, entriesForRoom(s, roomCodeFromOp(req.Operation))), nil
		}
		return "", eris.Errorf("unexpected operation %s", req.Operation)
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	assert.Equal(t, 100, result.Validation.Completeness)
	assert.Len(t, result.Pricing, 24)
	// R2 was called twice: the failed batch call and the retry.
	assert.Equal(t, 2, mock.callCount("pricing:R2"))
	assert.Equal(t, 1, mock.callCount("pricing:R1"))
	assert.Equal(t, 1, mock.callCount("pricing:R3"))
}

// When a room stays empty even after retry the result reports the shortfall
// instead of failing.
func TestExtractReportsPersistentGap(t *testing.T) {
	s := gridStructure(4, 3, 2)
	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case req.Operation == "pricing:R2":
				return pricingJSON(t, nil), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, entriesForRoom(s, roomCodeFromOp(req.Operation))), nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	assert.Equal(t, 67, result.Validation.Completeness)
	assert.Len(t, result.Validation.MissingEntries, 8)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[len(result.Warnings)-1], "extraction incomplete")
	assert.Less(t, result.Confidence, 1.0)
}

// Above the retry ceiling no further upstream calls are made; the shortfall
// is reported as-is.
func TestExtractSkipsRetryAboveCeiling(t *testing.T) {
	// 6 periods x 3 rooms x 2 meal plans = 36 expected, all missing.
	s := gridStructure(6, 3, 2)
	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, nil), nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Validation.Completeness)
	assert.Len(t, result.Validation.MissingEntries, 36)
	// One call per room, no retry round.
	assert.Equal(t, 3, mock.callCount("pricing:"))

	joined := strings.Join(result.Warnings, "\n")
	assert.Contains(t, joined, "retry ceiling")
	assert.Contains(t, joined, "extraction incomplete")
}

// A single pricing response that repeats a cell must not leak duplicate grid
// keys into the final set; the first value wins and the conflict is reported.
func TestExtractDropsDuplicateCellsWithinOneResponse(t *testing.T) {
	s := gridStructure(1, 1, 1)
	entry := fullGrid(s)[0]
	conflicting := entry
	conflicting.PricePerNight = 999

	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, []model.PricingEntry{entry, conflicting}), nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	require.Len(t, result.Pricing, 1)
	assert.Equal(t, 100.0, result.Pricing[0].PricePerNight)
	assert.Equal(t, 100, result.Validation.Completeness)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "P1/R1/M1")
	assert.Contains(t, result.Warnings[0], "kept the original")
}

// A 2x2x1 grid with one cell never extracted: completeness 75 and the gap is
// enumerated exactly, even after the retry pass re-tries the room.
func TestExtractReportsSingleMissingCell(t *testing.T) {
	s := gridStructure(2, 2, 1)
	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case req.Operation == "pricing:R2":
				// R2 only ever yields its P1 price.
				var partial []model.PricingEntry
				for _, e := range entriesForRoom(s, "R2") {
					if e.PeriodCode == "P1" {
						partial = append(partial, e)
					}
				}
				return pricingJSON(t, partial), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, entriesForRoom(s, roomCodeFromOp(req.Operation))), nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	assert.Equal(t, 75, result.Validation.Completeness)
	require.Len(t, result.Validation.MissingEntries, 1)
	assert.Equal(t, model.MissingEntry{
		PeriodCode:   "P2",
		RoomCode:     "R2",
		MealPlanCode: "M1",
	}, result.Validation.MissingEntries[0])
	// The gap was small enough to retry the room once.
	assert.Equal(t, 2, mock.callCount("pricing:R2"))
	assert.Equal(t, 1, mock.callCount("pricing:R1"))
}

// A per_person_multiplier contract triggers the multiplier pass and the
// factors come back normalized to decimals.
func TestExtractMultiplierContract(t *testing.T) {
	s := gridStructure(2, 1, 1)
	s.ContractInfo.PricingType = model.PricingPerPersonMultiplier

	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, entriesForRoom(s, roomCodeFromOp(req.Operation))), nil
			case req.Operation == "multipliers":
				return `{
					"adultMultipliers": {"1": "80%", "2": 1.0, "3": 135},
					"childMultipliers": {"1": {"CH": "50%", "INF": "free"}},
					"roundingRule": "nearest"
				}`, nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	require.NotNil(t, result.MultiplierData)
	assert.Equal(t, 1, mock.callCount("multipliers"))
	assert.InDelta(t, 0.8, result.MultiplierData.AdultMultipliers["1"], 1e-9)
	assert.InDelta(t, 1.0, result.MultiplierData.AdultMultipliers["2"], 1e-9)
	assert.InDelta(t, 1.35, result.MultiplierData.AdultMultipliers["3"], 1e-9)
	assert.InDelta(t, 0.5, result.MultiplierData.ChildMultipliers["1"]["CH"], 1e-9)
	assert.Zero(t, result.MultiplierData.ChildMultipliers["1"]["INF"])
	assert.Equal(t, model.RoundNearest, result.MultiplierData.RoundingRule)
}

// A failed multiplier pass degrades to a warning; pricing survives.
func TestExtractMultiplierFailureIsWarning(t *testing.T) {
	s := gridStructure(2, 1, 1)
	s.ContractInfo.PricingType = model.PricingPerPersonMultiplier

	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, entriesForRoom(s, roomCodeFromOp(req.Operation))), nil
			case req.Operation == "multipliers":
				return "no table in this contract, sorry", nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	assert.Nil(t, result.MultiplierData)
	assert.Equal(t, 100, result.Validation.Completeness)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "multiplier")
}

// A structure payload that stays unparsable fails the whole extraction.
func TestExtractMalformedStructureIsFatal(t *testing.T) {
	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			return "I'm sorry, I cannot read this document.", nil
		},
	}

	ex := New(mock, Options{})
	_, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformedResponse))
	assert.Equal(t, 0, mock.callCount("pricing:"))
}

func TestExtractUpstreamFailureIsFatal(t *testing.T) {
	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			return "", eris.Wrap(invoker.ErrUpstreamUnavailable, "circuit open")
		},
	}

	ex := New(mock, Options{})
	_, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, invoker.ErrUpstreamUnavailable))
}

func TestExtractEmptyDocument(t *testing.T) {
	ex := New(&mockInvoker{}, Options{})
	_, err := ex.Extract(context.Background(), Document{}, model.ExtractionContext{})
	assert.Error(t, err)
}

func TestExtractBatchingBoundsConcurrency(t *testing.T) {
	s := gridStructure(1, 7, 1)
	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			switch {
			case req.Operation == "structure":
				return structureJSON(t, s), nil
			case strings.HasPrefix(req.Operation, "pricing:"):
				return pricingJSON(t, entriesForRoom(s, roomCodeFromOp(req.Operation))), nil
			}
			return "", eris.Errorf("unexpected operation %s", req.Operation)
		},
	}

	ex := New(mock, Options{BatchSize: 2})
	result, err := ex.Extract(context.Background(), testDoc, model.ExtractionContext{})
	require.NoError(t, err)

	assert.Equal(t, 7, mock.callCount("pricing:"))
	assert.Equal(t, 100, result.Validation.Completeness)
}

func TestExtractCancelledContext(t *testing.T) {
	s := gridStructure(2, 2, 2)
	ctx, cancel := context.WithCancel(context.Background())

	mock := &mockInvoker{
		respond: func(req invoker.Request) (string, error) {
			if req.Operation == "structure" {
				cancel() // cancel after the first pass completes
				return structureJSON(t, s), nil
			}
			return pricingJSON(t, nil), nil
		},
	}

	ex := New(mock, Options{})
	_, err := ex.Extract(ctx, testDoc, model.ExtractionContext{})
	require.Error(t, err)
	assert.Equal(t, 0, mock.callCount("pricing:"))
}
