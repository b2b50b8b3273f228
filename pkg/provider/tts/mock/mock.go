// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio to consumers and to verify the text
// and voice passed to the TTS backend.
//
// Example:
//
//	p := &mock.Provider{Audio: []byte("RIFF...")}
//	wav, err := p.Synthesize(ctx, types.SpeechRequest{Text: "hi"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sooshi/pkg/provider/tts"
	"github.com/MrWong99/sooshi/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the SpeechRequest passed to Synthesize.
	Req types.SpeechRequest
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// BackendName is returned by Name. Defaults to "mock-tts".
	BackendName string

	// Audio is returned by Synthesize.
	Audio []byte

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// OnSynthesize, if set, is called with each request before returning.
	OnSynthesize func(req types.SpeechRequest)

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns a copy of Audio, or Err.
func (p *Provider) Synthesize(ctx context.Context, req types.SpeechRequest) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Req: req})
	hook := p.OnSynthesize
	err := p.Err
	audio := make([]byte, len(p.Audio))
	copy(audio, p.Audio)
	p.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// Name returns BackendName or "mock-tts".
func (p *Provider) Name() string {
	if p.BackendName != "" {
		return p.BackendName
	}
	return "mock-tts"
}

// Calls returns a snapshot of the recorded calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
