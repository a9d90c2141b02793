package extractor

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadCleanJSON(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, decodePayload(`{"a": 7}`, "test", &v))
	assert.Equal(t, 7, v.A)
}

func TestDecodePayloadFencedWithProse(t *testing.T) {
	raw := "Sure, here is the data:\n```json\n{\"a\": 7}\n```\nLet me know if you need more."
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, decodePayload(raw, "test", &v))
	assert.Equal(t, 7, v.A)
}

func TestDecodePayloadRepairsTruncation(t *testing.T) {
	raw := `{"pricing": [{"periodCode": "P1", "roomCode": "DBL", "mealPlanCode": "BB", "pricePerNight": 120}, {"periodCode": "P2", "roomCo`
	var v pricingPayload
	require.NoError(t, decodePayload(raw, "test", &v))
	require.Len(t, v.Pricing, 2)
	assert.Equal(t, "P1", v.Pricing[0].PeriodCode)
	assert.Equal(t, 120.0, v.Pricing[0].PricePerNight)
}

func TestDecodePayloadMalformed(t *testing.T) {
	var v struct{}
	err := decodePayload("I could not find any pricing information in this document.", "test", &v)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformedResponse))
}
