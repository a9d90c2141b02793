package model

import "time"

// RunStatus represents the state of an extraction run in the audit store.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// TokenUsage accumulates upstream token consumption across passes.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// ContractExtractionResult is the final artifact handed to the
// rate-management collaborator. It is assembled once per request and never
// persisted by the pipeline itself (the audit store keeps a copy for review,
// not for the rate engine).
type ContractExtractionResult struct {
	Structure      ContractStructure `json:"structure"`
	Pricing        []PricingEntry    `json:"pricing"`
	MultiplierData *MultiplierTable  `json:"multiplierData,omitempty"`
	Validation     ValidationResult  `json:"validation"`
	Warnings       []string          `json:"warnings,omitempty"`
	Confidence     float64           `json:"confidence"`
	TokenUsage     TokenUsage        `json:"tokenUsage"`
}

// Run is one extraction request as recorded in the audit store.
type Run struct {
	ID           string                    `json:"id"`
	HotelName    string                    `json:"hotel_name"`
	Status       RunStatus                 `json:"status"`
	Completeness int                       `json:"completeness"`
	Result       *ContractExtractionResult `json:"result,omitempty"`
	Error        string                    `json:"error,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}
