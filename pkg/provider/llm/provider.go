// Package llm defines the Provider interface for text generation backends.
//
// An LLM provider wraps a remote or local model API (a self-hosted Ollama
// instance or the hosted OpenAI chat-completion API) and exposes one
// blocking call that turns an ordered conversation into reply text. The
// provider is responsible for adapting the conversation to its backend's wire
// format; callers always pass structured [types.Message] values.
//
// Implementations must be safe for concurrent use and must not retry: a
// failure is reported once as a *provider.Error.
package llm

import (
	"context"

	"github.com/MrWong99/sooshi/pkg/types"
)

// Provider is the abstraction over any text generation backend.
type Provider interface {
	// Generate sends req to the model and waits for the full reply. The reply
	// text is returned verbatim, including when it is empty; shape validation
	// belongs to the caller.
	//
	// Returns a *provider.Error wrapping provider.ErrInvalidInput when req
	// fails validation, and a *provider.Error of kind connection or response
	// for backend failures.
	Generate(ctx context.Context, req types.GenerationRequest) (string, error)

	// Name returns the backend identifier used in errors and metrics.
	Name() string
}
