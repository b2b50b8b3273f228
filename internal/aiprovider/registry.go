package aiprovider

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/sooshi/internal/config"
)

// ErrProviderNotRegistered is returned by [Registry.Build] when no builder is
// registered for the requested kind.
var ErrProviderNotRegistered = errors.New("provider not registered")

// Builder constructs an [Adapter] from the loaded configuration.
type Builder func(cfg *config.Config, opts ...Option) (Adapter, error)

// Registry maps a [config.ProviderKind] to the [Builder] that constructs it.
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[config.ProviderKind]Builder
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[config.ProviderKind]Builder)}
}

// DefaultRegistry returns a Registry with the local and cloud builders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.ProviderLocal, BuildLocal)
	r.Register(config.ProviderCloud, BuildCloud)
	return r
}

// Register installs b for kind, replacing any previous builder.
func (r *Registry) Register(kind config.ProviderKind, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = b
}

// Has reports whether a builder is registered for kind.
func (r *Registry) Has(kind config.ProviderKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []config.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]config.ProviderKind, 0, len(r.builders))
	for k := range r.builders {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Build constructs the adapter registered for kind.
func (r *Registry) Build(kind config.ProviderKind, cfg *config.Config, opts ...Option) (Adapter, error) {
	r.mu.RLock()
	b, ok := r.builders[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("aiprovider: %w: %q", ErrProviderNotRegistered, kind)
	}
	a, err := b(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("aiprovider: build %s: %w", kind, err)
	}
	return a, nil
}
