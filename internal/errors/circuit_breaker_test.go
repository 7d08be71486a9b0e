package errors

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("advisor", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          10 * time.Second,
	}).WithClock(clock.Now)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("open circuit must not invoke the function")
	}
	if !errors.Is(err, ErrCircuitOpen) || !IsDegraded(err) {
		t.Fatalf("expected degraded circuit-open error, got %v", err)
	}

	clock.Advance(11 * time.Second)
	value, err := ExecuteFunc(cb, context.Background(), func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || value != "ok" {
		t.Fatalf("half-open probe failed: %q %v", value, err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("gemini", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second}).WithClock(clock.Now)

	cb.Mark(errors.New("fail"))
	clock.Advance(2 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open probe to be allowed, got %v", err)
	}
	cb.Mark(errors.New("still failing"))
	if cb.State() != StateOpen {
		t.Fatalf("expected reopened circuit, got %s", cb.State())
	}

	cb.Reset()
	m := cb.Metrics()
	if m.State != StateClosed || m.FailureCount != 0 || m.Name != "gemini" {
		t.Fatalf("unexpected metrics after reset: %+v", m)
	}
}
