// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (a self-hosted Coqui TTS
// server or the hosted OpenAI speech endpoint) and turns one complete piece of
// text into one encoded audio payload. Synthesis is batch: the caller waits for
// the whole clip.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/sooshi/pkg/types"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts req.Text to encoded audio (WAV for every backend
	// shipped in this module). An empty req.Voice selects the backend's
	// configured default voice.
	//
	// Returns a *provider.Error wrapping provider.ErrInvalidInput when
	// req.Text is empty, without contacting the backend.
	Synthesize(ctx context.Context, req types.SpeechRequest) ([]byte, error)

	// Name returns the backend identifier used in errors and metrics.
	Name() string
}
