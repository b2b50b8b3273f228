// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service: one complete audio
// clip goes in and one transcript comes out. Both the local and the cloud
// stacks share the same remote Whisper endpoint for this capability.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/sooshi/pkg/types"
)

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe uploads audio and returns what was said. A transcript with
	// empty Text means the backend detected no speech and is not an error.
	//
	// Returns a *provider.Error wrapping provider.ErrInvalidInput when audio
	// is empty, without contacting the backend.
	Transcribe(ctx context.Context, audio []byte) (types.Transcript, error)

	// Name returns the backend identifier used in errors and metrics.
	Name() string
}
