// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Text: "hello"}
//	tr, _ := p.Transcribe(ctx, clip)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sooshi/pkg/provider/stt"
	"github.com/MrWong99/sooshi/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is a copy of the clip passed to Transcribe.
	Audio []byte
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// BackendName is returned by Name. Defaults to "mock-stt".
	BackendName string

	// Text is returned as the transcript text.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// OnTranscribe, if set, is called with each clip before returning.
	OnTranscribe func(audio []byte)

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Text, Err.
func (p *Provider) Transcribe(ctx context.Context, audio []byte) (types.Transcript, error) {
	p.mu.Lock()
	clip := make([]byte, len(audio))
	copy(clip, audio)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: clip})
	hook := p.OnTranscribe
	text, err := p.Text, p.Err
	p.mu.Unlock()

	if hook != nil {
		hook(clip)
	}
	if err != nil {
		return types.Transcript{}, err
	}
	return types.Transcript{Text: text}, nil
}

// Name returns BackendName or "mock-stt".
func (p *Provider) Name() string {
	if p.BackendName != "" {
		return p.BackendName
	}
	return "mock-stt"
}

// Calls returns a snapshot of the recorded calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
