package invoker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rategrid/contract-extractor/internal/resilience"
	"github.com/rategrid/contract-extractor/pkg/anthropic"
)

// fakeClient scripts responses and records requests.
type fakeClient struct {
	mu       sync.Mutex
	requests []anthropic.MessageRequest
	respond  func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 500, OutputTokens: 200},
	}
}

func fastOpts() Options {
	return Options{
		Model:             "claude-sonnet-4-5-20250929",
		RequestsPerSecond: 1000,
		Burst:             1000,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	}
}

func TestNewRequiresClientAndModel(t *testing.T) {
	_, err := New(nil, Options{Model: "m"})
	assert.True(t, eris.Is(err, ErrUpstreamUnavailable))

	_, err = New(&fakeClient{}, Options{})
	assert.True(t, eris.Is(err, ErrUpstreamUnavailable))
}

func TestInvokePassesDocumentAndPrompt(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"ok": true}`), nil
		},
	}
	inv, err := New(client, fastOpts())
	require.NoError(t, err)

	resp, err := inv.Invoke(context.Background(), Request{
		Operation:     "structure",
		System:        "you extract contracts",
		Prompt:        "extract the structure",
		DocumentBytes: []byte("%PDF-1.4"),
		MIMEType:      "application/pdf",
		MaxTokens:     4096,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok": true}`, resp.Text)
	assert.False(t, resp.Truncated)
	assert.Equal(t, 500, resp.Usage.InputTokens)
	assert.Equal(t, 200, resp.Usage.OutputTokens)

	require.Len(t, client.requests, 1)
	sent := client.requests[0]
	assert.Equal(t, "claude-sonnet-4-5-20250929", sent.Model)
	assert.Equal(t, int64(4096), sent.MaxTokens)
	require.Len(t, sent.System, 1)
	assert.Equal(t, "you extract contracts", sent.System[0].Text)
	require.NotNil(t, sent.Document)
	assert.Equal(t, "application/pdf", sent.Document.MIMEType)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "extract the structure", sent.Messages[0].Content)
}

func TestInvokeRetriesTransientFailures(t *testing.T) {
	calls := 0
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			calls++
			if calls < 3 {
				return nil, resilience.NewTransientError(eris.New("overloaded"), 529)
			}
			return textResponse("ok"), nil
		},
	}
	inv, err := New(client, fastOpts())
	require.NoError(t, err)

	resp, err := inv.Invoke(context.Background(), Request{Operation: "pricing:DBL", Prompt: "p", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, calls)
}

func TestInvokeDoesNotRetryPermanentFailures(t *testing.T) {
	calls := 0
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			calls++
			return nil, eris.New("invalid_request_error: bad schema")
		},
	}
	inv, err := New(client, fastOpts())
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), Request{Operation: "structure", Prompt: "p", MaxTokens: 100})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestInvokeReportsTruncation(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return &anthropic.MessageResponse{
				Content:    []anthropic.ContentBlock{{Type: "text", Text: `{"partial`}},
				StopReason: "max_tokens",
			}, nil
		},
	}
	inv, err := New(client, fastOpts())
	require.NoError(t, err)

	resp, err := inv.Invoke(context.Background(), Request{Operation: "pricing:DBL", Prompt: "p", MaxTokens: 10})
	require.NoError(t, err)
	assert.True(t, resp.Truncated)
}

func TestInvokeOpenCircuitMapsToUpstreamUnavailable(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return nil, resilience.NewTransientError(eris.New("connection reset by peer"), 0)
		},
	}
	opts := fastOpts()
	opts.Retry.MaxAttempts = 1
	opts.Circuit = resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}

	inv, err := New(client, opts)
	require.NoError(t, err)

	ctx := context.Background()
	req := Request{Operation: "structure", Prompt: "p", MaxTokens: 100}

	_, err = inv.Invoke(ctx, req)
	require.Error(t, err)
	_, err = inv.Invoke(ctx, req)
	require.Error(t, err)

	// Circuit is now open; the failure becomes a fatal upstream error.
	_, err = inv.Invoke(ctx, req)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUpstreamUnavailable))
}

func TestInvokeHonorsContextCancellation(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("ok"), nil
		},
	}
	inv, err := New(client, fastOpts())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = inv.Invoke(ctx, Request{Operation: "structure", Prompt: "p", MaxTokens: 100})
	assert.Error(t, err)
}
