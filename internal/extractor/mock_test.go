package extractor

import (
	"context"
	"strings"
	"sync"

	"github.com/rategrid/contract-extractor/internal/invoker"
	"github.com/rategrid/contract-extractor/internal/model"
)

// mockInvoker scripts backend responses per operation and records every call.
type mockInvoker struct {
	mu      sync.Mutex
	calls   []string
	respond func(req invoker.Request) (string, error)
}

func (m *mockInvoker) Invoke(_ context.Context, req invoker.Request) (*invoker.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Operation)
	m.mu.Unlock()

	text, err := m.respond(req)
	if err != nil {
		return nil, err
	}
	return &invoker.Response{
		Text:  text,
		Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func (m *mockInvoker) callCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
