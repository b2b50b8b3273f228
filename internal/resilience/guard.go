package resilience

import (
	"context"

	"github.com/MrWong99/sooshi/internal/aiprovider"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/types"
)

const breakerName = "ai-provider"

// Guard wraps an [aiprovider.Adapter] with retries and an optional circuit
// breaker. Kind and Name are passed through unchanged.
type Guard struct {
	next    aiprovider.Adapter
	breaker *CircuitBreaker
	retry   RetryConfig
}

// NewGuard wraps next. breaker may be nil to disable circuit breaking; it may
// also be shared between several guards.
func NewGuard(next aiprovider.Adapter, breaker *CircuitBreaker, retry RetryConfig) *Guard {
	if retry.Name == "" {
		retry.Name = next.Name()
	}
	return &Guard{next: next, breaker: breaker, retry: retry}
}

// Middleware returns an [aiprovider.Middleware] configured from cfg. All
// adapters it wraps share one breaker, so a backend that is down stays
// tripped across freshly built adapters. It returns nil when cfg enables
// neither retries nor the breaker. Breaker transitions are counted on m; a nil
// m uses [observe.DefaultMetrics].
func Middleware(cfg config.RetryConfig, m *observe.Metrics) aiprovider.Middleware {
	if cfg.MaxAttempts <= 1 && cfg.BreakerThreshold <= 0 {
		return nil
	}
	var breaker *CircuitBreaker
	if cfg.BreakerThreshold > 0 {
		if m == nil {
			m = observe.DefaultMetrics()
		}
		breaker = NewCircuitBreaker(CircuitBreakerConfig{
			Name:         breakerName,
			MaxFailures:  cfg.BreakerThreshold,
			ResetTimeout: cfg.BreakerReset,
			OnStateChange: func(_, to State) {
				m.RecordBreakerTransition(context.Background(), breakerName, to.String())
			},
		})
	}
	retry := RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
	return func(a aiprovider.Adapter) aiprovider.Adapter {
		return NewGuard(a, breaker, retry)
	}
}

// Unwrap returns the wrapped adapter.
func (g *Guard) Unwrap() aiprovider.Adapter { return g.next }

// Kind implements aiprovider.Adapter.
func (g *Guard) Kind() config.ProviderKind { return g.next.Kind() }

// Name implements aiprovider.Adapter.
func (g *Guard) Name() string { return g.next.Name() }

// GenerateText implements aiprovider.Adapter.
func (g *Guard) GenerateText(ctx context.Context, req types.GenerationRequest) (string, error) {
	return guarded(ctx, g, "generate", func(ctx context.Context) (string, error) {
		return g.next.GenerateText(ctx, req)
	})
}

// SynthesizeSpeech implements aiprovider.Adapter.
func (g *Guard) SynthesizeSpeech(ctx context.Context, req types.SpeechRequest) ([]byte, error) {
	return guarded(ctx, g, "synthesize", func(ctx context.Context) ([]byte, error) {
		return g.next.SynthesizeSpeech(ctx, req)
	})
}

// TranscribeSpeech implements aiprovider.Adapter.
func (g *Guard) TranscribeSpeech(ctx context.Context, audio []byte) (types.Transcript, error) {
	return guarded(ctx, g, "transcribe", func(ctx context.Context) (types.Transcript, error) {
		return g.next.TranscribeSpeech(ctx, audio)
	})
}

// guarded runs fn through the breaker inside the retry loop. A rejected call
// surfaces as a connection error so callers see a single error taxonomy.
func guarded[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	return Retry(ctx, g.retry, func(ctx context.Context) (T, error) {
		if g.breaker == nil {
			return fn(ctx)
		}
		done, err := g.breaker.Allow()
		if err != nil {
			var zero T
			return zero, provider.Connection(g.next.Name(), op, err)
		}
		v, err := fn(ctx)
		done(err)
		return v, err
	})
}

var _ aiprovider.Adapter = (*Guard)(nil)
