// Package resilience is the opt-in retry and circuit breaker layer around the
// active AI adapter.
//
// [Guard] wraps an [aiprovider.Adapter] so that each call passes through a
// shared [CircuitBreaker] inside a [Retry] loop. Only connection failures
// count: a backend that answered, even with an error status, is neither
// retried nor held against the breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/sooshi/pkg/provider"
)

// ErrCircuitOpen rejects calls while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select the
// defaults noted per field.
type CircuitBreakerConfig struct {
	// Name labels log lines. Default: "".
	Name string

	// MaxFailures is the run of consecutive failures that opens the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is the cool-down before an open breaker admits probes.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probes admitted after the cool-down; that
	// many must succeed to close the breaker. Default: 3.
	HalfOpenMax int

	// IsFailure selects the errors that count against the breaker.
	// Default: [provider.IsRetryable].
	IsFailure func(error) bool

	// OnStateChange runs after every transition while the breaker lock is
	// held. It must not call back into the breaker.
	OnStateChange func(from, to State)
}

// CircuitBreaker stops calls to a backend after a run of connection failures
// and lets a few probes through once a cool-down has passed. It is safe for
// concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // start of the current cool-down
	probes   int       // probes admitted in half-open
	passed   int       // probes that succeeded in half-open
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = provider.IsRetryable
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow asks to make one call. When admitted, the caller must report the
// call's outcome through done exactly once. A rejected call gets
// [ErrCircuitOpen] and a nil done.
func (cb *CircuitBreaker) Allow() (done func(error), err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.probes, cb.passed = 0, 0
		cb.transition(StateHalfOpen)
	}
	switch cb.state {
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMax {
			return nil, ErrCircuitOpen
		}
		cb.probes++
		return cb.finishProbe, nil
	}
	return cb.finishCall, nil
}

func (cb *CircuitBreaker) finishCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil || !cb.cfg.IsFailure(err) {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
		cb.open()
	}
}

func (cb *CircuitBreaker) finishProbe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateHalfOpen {
		return
	}
	if err != nil && cb.cfg.IsFailure(err) {
		cb.open()
		return
	}
	cb.passed++
	if cb.passed >= cb.cfg.HalfOpenMax {
		cb.failures = 0
		cb.transition(StateClosed)
	}
}

// open starts a new cool-down. Must be called with cb.mu held.
func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.transition(StateOpen)
}

// State reports the current state. An open breaker whose cool-down has passed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures, cb.probes, cb.passed = 0, 0, 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to

	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		"name", cb.cfg.Name,
		"from", from.String(),
		"to", to.String(),
		"consecutive_failures", cb.failures,
	)
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
