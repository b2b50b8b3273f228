package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/sooshi/pkg/provider"
)

// Default retry parameters.
const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 2 * time.Second
)

// RetryConfig configures [Retry].
type RetryConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxAttempts is the total number of tries including the first. Values
	// below 2 disable retrying.
	MaxAttempts int

	// BaseDelay is the backoff ceiling before the second attempt. It doubles
	// every attempt up to MaxDelay. Defaults to 200ms if zero.
	BaseDelay time.Duration

	// MaxDelay caps the backoff ceiling. Defaults to 2s if zero.
	MaxDelay time.Duration

	// ShouldRetry decides which errors are worth another attempt. Default:
	// connection failures that did not come from an open circuit breaker.
	ShouldRetry func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = retryable
	}
	return c
}

// retryable reports whether err is a connection failure worth repeating.
func retryable(err error) bool {
	return provider.IsRetryable(err) && !errors.Is(err, ErrCircuitOpen)
}

// Retry calls fn until it succeeds, returns an error cfg.ShouldRetry rejects,
// or cfg.MaxAttempts is exhausted. Between attempts it sleeps a uniformly
// random duration in (0, ceiling], where ceiling doubles from BaseDelay up to
// MaxDelay. The last error is returned unchanged. A cancelled ctx stops the
// loop and returns ctx.Err() joined with the last error.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	ceiling := cfg.BaseDelay

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.ShouldRetry(err) {
			return zero, err
		}

		delay := jitter(ceiling)
		slog.Warn("retrying after connection failure",
			"name", cfg.Name,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
			"err", err,
		)
		if serr := sleep(ctx, delay); serr != nil {
			return zero, errors.Join(serr, err)
		}
		ceiling = min(ceiling*2, cfg.MaxDelay)
	}
}

// jitter returns a random duration in (0, d].
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d) + 1
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
