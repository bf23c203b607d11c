// Package resilience guards calls to model, embedding and reader APIs with
// retries and circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // calls flow through
	CircuitOpen                         // calls are rejected
	CircuitHalfOpen                     // one probe call is let through
)

var circuitStateNames = map[CircuitState]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if n, ok := circuitStateNames[s]; ok {
		return n
	}
	return "unknown"
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Name             string        // service name used in logs and errors
	FailureThreshold int           // consecutive failures that open the circuit
	ResetTimeout     time.Duration // time spent open before a probe

	// ShouldTrip decides which errors count as failures. The default counts
	// every error except the caller's own cancellation.
	ShouldTrip func(err error) bool
}

// DefaultCircuitBreakerConfig returns defaults for a named service.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

func tripOnServiceFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CircuitBreaker fails fast once a service has failed FailureThreshold
// times in a row, then lets a single probe through after ResetTimeout.
// It is safe for concurrent use; one breaker is shared by every run.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker, filling zero config fields
// from DefaultCircuitBreakerConfig.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = tripOnServiceFailure
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs fn through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal runs fn through the breaker and returns its value.
// Returns ErrCircuitOpen without calling fn while the circuit is open.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.admit(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	cb.settle(err)
	return val, err
}

// State returns the current circuit state. An open circuit whose reset
// timeout has passed reports half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cooledDown() {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case cb.state == CircuitClosed:
		return nil
	case cb.state == CircuitOpen && cb.cooledDown():
		cb.setState(CircuitHalfOpen)
		cb.probing = true
		return nil
	case cb.state == CircuitHalfOpen && !cb.probing:
		cb.probing = true
		return nil
	}
	return eris.Wrapf(ErrCircuitOpen, "resilience: %s", cb.cfg.Name)
}

func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.state == CircuitHalfOpen
	cb.probing = false

	if !cb.cfg.ShouldTrip(err) {
		cb.failures = 0
		if wasProbe {
			cb.setState(CircuitClosed)
		}
		return
	}

	cb.failures++
	if wasProbe || cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.now()
		cb.setState(CircuitOpen)
	}
}

func (cb *CircuitBreaker) setState(to CircuitState) {
	if cb.state == to {
		return
	}
	zap.L().Info("circuit breaker state change",
		zap.String("service", cb.cfg.Name),
		zap.String("from", cb.state.String()),
		zap.String("to", to.String()),
	)
	cb.state = to
}
