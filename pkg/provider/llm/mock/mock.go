// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that callers send correct
// GenerationRequests and to feed controlled responses without a live backend.
// All fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{Reply: "Hello!"}
//	text, err := p.Generate(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sooshi/pkg/provider/llm"
	"github.com/MrWong99/sooshi/pkg/types"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Req is the GenerationRequest passed to Generate.
	Req types.GenerationRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// BackendName is returned by Name. Defaults to "mock-llm".
	BackendName string

	// Reply is returned by Generate.
	Reply string

	// Err, if non-nil, is returned as the error from Generate.
	Err error

	// OnGenerate, if set, is called with each request before returning. It
	// lets tests record cross-provider call order.
	OnGenerate func(req types.GenerationRequest)

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall
}

// Generate records the call and returns Reply, Err.
func (p *Provider) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	p.mu.Lock()
	msgs := make([]types.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Req: req})
	hook := p.OnGenerate
	reply, err := p.Reply, p.Err
	p.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Name returns BackendName or "mock-llm".
func (p *Provider) Name() string {
	if p.BackendName != "" {
		return p.BackendName
	}
	return "mock-llm"
}

// Calls returns a snapshot of the recorded calls. Thread-safe.
func (p *Provider) Calls() []GenerateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]GenerateCall, len(p.GenerateCalls))
	copy(out, p.GenerateCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
