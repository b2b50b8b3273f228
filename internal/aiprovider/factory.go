package aiprovider

import (
	"errors"
	"fmt"

	"github.com/MrWong99/sooshi/internal/config"
)

// Middleware decorates an adapter, e.g. with retries or a circuit breaker.
type Middleware func(Adapter) Adapter

// Factory selects and builds the adapter for the configured provider. The
// selection is fixed for the life of the Factory.
type Factory struct {
	cfg      *config.Config
	kind     config.ProviderKind
	registry *Registry
	opts     []Option
	wrap     []Middleware
}

// FactoryOption configures a [Factory].
type FactoryOption func(*Factory)

// WithRegistry replaces [DefaultRegistry].
func WithRegistry(r *Registry) FactoryOption {
	return func(f *Factory) {
		if r != nil {
			f.registry = r
		}
	}
}

// WithAdapterOptions passes opts to every adapter the factory builds.
func WithAdapterOptions(opts ...Option) FactoryOption {
	return func(f *Factory) {
		f.opts = append(f.opts, opts...)
	}
}

// WithMiddleware wraps every built adapter. Middlewares apply in order, so
// the first one listed is the innermost. Nil entries are skipped.
func WithMiddleware(mw ...Middleware) FactoryOption {
	return func(f *Factory) {
		for _, m := range mw {
			if m != nil {
				f.wrap = append(f.wrap, m)
			}
		}
	}
}

// NewFactory returns a Factory for cfg.Provider. It fails when the kind is
// unknown or has no registered builder, so a misconfigured process never
// starts serving.
func NewFactory(cfg *config.Config, opts ...FactoryOption) (*Factory, error) {
	if cfg == nil {
		return nil, errors.New("aiprovider: config must not be nil")
	}
	if !cfg.Provider.IsValid() {
		return nil, fmt.Errorf("aiprovider: provider %q is invalid; valid values: %s, %s",
			cfg.Provider, config.ProviderLocal, config.ProviderCloud)
	}
	f := &Factory{cfg: cfg, kind: cfg.Provider}
	for _, o := range opts {
		o(f)
	}
	if f.registry == nil {
		f.registry = DefaultRegistry()
	}
	if !f.registry.Has(f.kind) {
		return nil, fmt.Errorf("aiprovider: %w: %q; registered: %v", ErrProviderNotRegistered, f.kind, f.registry.Kinds())
	}
	return f, nil
}

// ActiveProvider returns the configured provider kind.
func (f *Factory) ActiveProvider() config.ProviderKind { return f.kind }

// BuildAdapter constructs a fresh adapter for the active provider. Calling it
// repeatedly yields independent adapters of the same kind.
func (f *Factory) BuildAdapter() (Adapter, error) {
	a, err := f.registry.Build(f.kind, f.cfg, f.opts...)
	if err != nil {
		return nil, err
	}
	for _, mw := range f.wrap {
		a = mw(a)
	}
	return a, nil
}
