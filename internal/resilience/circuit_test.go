package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("fail")
		})
	}
}

func TestCircuitBreaker_ClosedState_PassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("llm"))

	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "llm", FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(cb, 3)

	if cb.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "llm", FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(cb, 2)
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	failN(cb, 2)

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "llm", FailureThreshold: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	failN(cb, 1)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	now = now.Add(2 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	if err := cb.Execute(context.Background(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "llm", FailureThreshold: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	failN(cb, 1)
	now = now.Add(2 * time.Second)
	failN(cb, 1)

	if cb.State() != CircuitOpen {
		t.Errorf("expected reopened circuit, got %s", cb.State())
	}
}

func TestCircuitBreaker_ShouldTripFilter(t *testing.T) {
	errIgnored := errors.New("bad input")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "llm",
		FailureThreshold: 1,
		ShouldTrip:       func(err error) bool { return err != nil && !errors.Is(err, errIgnored) },
	})
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errIgnored })

	if cb.State() != CircuitClosed {
		t.Errorf("ignored errors should not trip the breaker, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAdmitsOneProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "llm", FailureThreshold: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	failN(cb, 1)
	now = now.Add(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(_ context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("second call should be rejected while the probe runs")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen during probe, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "llm", FailureThreshold: 1})
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return context.Canceled })

	if cb.State() != CircuitClosed {
		t.Errorf("caller cancellation should not trip the breaker, got %s", cb.State())
	}
}

func TestCircuitState_String(t *testing.T) {
	if CircuitHalfOpen.String() != "half-open" || CircuitState(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
