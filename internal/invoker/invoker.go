// Package invoker provides the single narrow capability the pipeline uses to
// reach the text-generation backend. The orchestrator receives an Invoker at
// construction time; rate limiting, retries, circuit breaking, and per-call
// deadlines all live behind this interface.
package invoker

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rategrid/contract-extractor/internal/model"
	"github.com/rategrid/contract-extractor/internal/resilience"
	"github.com/rategrid/contract-extractor/pkg/anthropic"
)

// ErrUpstreamUnavailable means the backend is not configured or not
// reachable. It is fatal for the whole request; callers must not retry.
var ErrUpstreamUnavailable = eris.New("model backend unavailable")

// Request is one bounded sub-task sent to the backend: a prompt plus the
// source document travelling inline.
type Request struct {
	Operation     string // for logs and retry attribution
	System        string
	Prompt        string
	DocumentBytes []byte
	MIMEType      string
	MaxTokens     int64
}

// Response is the raw outcome of one backend call. Text carries no schema
// guarantee; Truncated is set when output stopped at the token limit.
type Response struct {
	Text      string
	Truncated bool
	Usage     model.TokenUsage
}

// Invoker sends one request to the text-generation backend.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Options tunes the Anthropic-backed invoker.
type Options struct {
	Model             string
	Timeout           time.Duration // per-call deadline; 0 disables
	RequestsPerSecond float64
	Burst             int
	Retry             resilience.RetryConfig
	Circuit           resilience.CircuitBreakerConfig
}

// AnthropicInvoker implements Invoker on the wrapped SDK client.
type AnthropicInvoker struct {
	client  anthropic.Client
	opts    Options
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// New creates an invoker around an already-constructed client.
func New(client anthropic.Client, opts Options) (*AnthropicInvoker, error) {
	if client == nil {
		return nil, ErrUpstreamUnavailable
	}
	if opts.Model == "" {
		return nil, eris.Wrap(ErrUpstreamUnavailable, "invoker: no model configured")
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 5
	}

	return &AnthropicInvoker{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: resilience.NewCircuitBreaker(opts.Circuit),
	}, nil
}

// Invoke sends the request through the rate limiter, circuit breaker, and
// retry policy. A deadline expiry inside a call surfaces as a transient
// error so the uniform retry policy treats it like any other upstream fault.
func (a *AnthropicInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	retryCfg := a.opts.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger(req.Operation)
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.call(ctx, req)
		})
	})
	if err != nil {
		if eris.Is(err, resilience.ErrCircuitOpen) {
			return nil, eris.Wrap(ErrUpstreamUnavailable, "invoker: circuit open")
		}
		return nil, eris.Wrapf(err, "invoker: %s", req.Operation)
	}

	resp.Usage.LogCost(a.opts.Model, req.Operation)

	out := &Response{
		Text:      resp.Text(),
		Truncated: resp.Truncated(),
		Usage: model.TokenUsage{
			InputTokens:         int(resp.Usage.InputTokens),
			OutputTokens:        int(resp.Usage.OutputTokens),
			CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
		},
	}
	if out.Truncated {
		zap.L().Warn("upstream response truncated at token limit",
			zap.String("operation", req.Operation),
			zap.Int64("max_tokens", req.MaxTokens),
		)
	}
	return out, nil
}

func (a *AnthropicInvoker) call(ctx context.Context, req Request) (*anthropic.MessageResponse, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	msgReq := anthropic.MessageRequest{
		Model:     a.opts.Model,
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.System != "" {
		msgReq.System = []anthropic.SystemBlock{{Text: req.System}}
	}
	if len(req.DocumentBytes) > 0 {
		msgReq.Document = &anthropic.Document{
			Bytes:    req.DocumentBytes,
			MIMEType: req.MIMEType,
		}
	}

	return a.client.CreateMessage(ctx, msgReq)
}
