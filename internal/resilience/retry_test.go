package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("temporary"), 503)
		}
		return "report", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "report" {
		t.Errorf("expected value %q, got %q", "report", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonTransientNotRetried(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return errors.New("bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-transient error, got %d", calls)
	}
}

func TestDo_StopsWhenDeadlineTooClose(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var calls int
	start := time.Now()
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("overloaded"), 529)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("retry slept past the deadline")
	}
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, fastRetry(5), func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("temporary"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancel, got %d", calls)
	}
}

func TestDo_OnRetryCalled(t *testing.T) {
	cfg := fastRetry(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("temporary"), 503)
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected OnRetry attempts [1 2], got %v", attempts)
	}
}

func TestWithAttempts(t *testing.T) {
	cfg := DefaultRetryConfig().WithAttempts(2)
	if cfg.MaxAttempts != 2 {
		t.Errorf("expected 2 attempts, got %d", cfg.MaxAttempts)
	}
	if DefaultRetryConfig().WithAttempts(0).MaxAttempts != 3 {
		t.Error("zero attempts should keep the default")
	}
}

func TestDelay_Capped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second, Multiplier: 10}.normalized()
	if d := cfg.delay(3, errors.New("x")); d != 2*time.Second {
		t.Errorf("expected capped backoff 2s, got %s", d)
	}
}

func TestDelay_HonorsRetryAfter(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Second}.normalized()
	cfg.JitterFraction = 0

	h := http.Header{}
	h.Set("Retry-After", "3")
	err := NewTransientError(errors.New("rate limited"), http.StatusTooManyRequests).WithRetryAfter(h)
	if d := cfg.delay(0, err); d != 3*time.Second {
		t.Errorf("expected Retry-After delay 3s, got %s", d)
	}

	h.Set("Retry-After", "60")
	err = NewTransientError(errors.New("rate limited"), http.StatusTooManyRequests).WithRetryAfter(h)
	if d := cfg.delay(0, err); d != 5*time.Second {
		t.Errorf("expected Retry-After capped at 5s, got %s", d)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":                              0,
		"7":                             7 * time.Second,
		"-1":                            0,
		"Wed, 21 Oct 2026 07:28:00 GMT": 0,
	}
	for v, want := range tests {
		h := http.Header{}
		if v != "" {
			h.Set("Retry-After", v)
		}
		if got := ParseRetryAfter(h); got != want {
			t.Errorf("ParseRetryAfter(%q) = %s, want %s", v, got, want)
		}
	}
}
