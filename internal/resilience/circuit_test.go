package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failingCall(_ context.Context) (int, error) {
	return 0, NewTransientError(errors.New("upstream down"), 503)
}

func okCall(_ context.Context) (int, error) {
	return 42, nil
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = ExecuteVal(context.Background(), cb, failingCall)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after 3 failures, got %v", cb.State())
	}

	_, err := ExecuteVal(context.Background(), cb, okCall)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_NonTransientDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		_, _ = ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
			return 0, errors.New("invalid request body")
		})
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after non-transient failures, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	// Advance past the reset timeout; the next call is a half-open probe.
	now = now.Add(2 * time.Minute)

	val, err := ExecuteVal(context.Background(), cb, okCall)
	if err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if val != 42 {
		t.Errorf("expected value 42, got %d", val)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	now = now.Add(2 * time.Minute)

	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	if cb.State() != CircuitOpen {
		t.Errorf("expected open after failed probe, got %v", cb.State())
	}

	// And calls are rejected again without reaching upstream.
	called := false
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("open circuit must not call upstream")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	_, _ = ExecuteVal(context.Background(), cb, okCall)
	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	_, _ = ExecuteVal(context.Background(), cb, failingCall)

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed (streak broken by success), got %v", cb.State())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_, _ = ExecuteVal(context.Background(), cb, failingCall)

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("expected [closed->open], got %v", transitions)
	}
}
