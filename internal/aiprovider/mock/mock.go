// Package mock provides a scriptable test double for aiprovider.Adapter.
//
// Every call is appended to a shared Log so tests can assert the relative
// order of transcription, generation, and synthesis.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sooshi/internal/aiprovider"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/pkg/types"
)

// Adapter is a mock implementation of aiprovider.Adapter.
type Adapter struct {
	mu sync.Mutex

	// AdapterKind is returned by Kind. Defaults to config.ProviderLocal.
	AdapterKind config.ProviderKind

	// DisplayName is returned by Name. Defaults to "mock".
	DisplayName string

	// Reply and GenerateErr are returned by GenerateText.
	Reply       string
	GenerateErr error

	// Audio and SynthesizeErr are returned by SynthesizeSpeech.
	Audio         []byte
	SynthesizeErr error

	// Transcript and TranscribeErr are returned by TranscribeSpeech.
	Transcript    string
	TranscribeErr error

	// Log records the capability name of every call in order: "stt", "llm",
	// or "tts".
	Log []string

	// GenerateRequests records every request passed to GenerateText.
	GenerateRequests []types.GenerationRequest

	// SpeechRequests records every request passed to SynthesizeSpeech.
	SpeechRequests []types.SpeechRequest

	// AudioInputs records every payload passed to TranscribeSpeech.
	AudioInputs [][]byte
}

// Kind returns AdapterKind or config.ProviderLocal.
func (a *Adapter) Kind() config.ProviderKind {
	if a.AdapterKind != "" {
		return a.AdapterKind
	}
	return config.ProviderLocal
}

// Name returns DisplayName or "mock".
func (a *Adapter) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return "mock"
}

// GenerateText records the request and returns Reply, GenerateErr.
func (a *Adapter) GenerateText(_ context.Context, req types.GenerationRequest) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs := make([]types.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	a.Log = append(a.Log, aiprovider.CapabilityGenerate)
	a.GenerateRequests = append(a.GenerateRequests, req)
	if a.GenerateErr != nil {
		return "", a.GenerateErr
	}
	return a.Reply, nil
}

// SynthesizeSpeech records the request and returns Audio, SynthesizeErr.
func (a *Adapter) SynthesizeSpeech(_ context.Context, req types.SpeechRequest) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Log = append(a.Log, aiprovider.CapabilitySynthesize)
	a.SpeechRequests = append(a.SpeechRequests, req)
	if a.SynthesizeErr != nil {
		return nil, a.SynthesizeErr
	}
	out := make([]byte, len(a.Audio))
	copy(out, a.Audio)
	return out, nil
}

// TranscribeSpeech records the payload and returns Transcript, TranscribeErr.
func (a *Adapter) TranscribeSpeech(_ context.Context, audio []byte) (types.Transcript, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Log = append(a.Log, aiprovider.CapabilityTranscribe)
	a.AudioInputs = append(a.AudioInputs, append([]byte(nil), audio...))
	if a.TranscribeErr != nil {
		return types.Transcript{}, a.TranscribeErr
	}
	return types.Transcript{Text: a.Transcript}, nil
}

// Calls returns a snapshot of Log. Thread-safe.
func (a *Adapter) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.Log...)
}

// Reset clears all recorded calls. Thread-safe.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Log = nil
	a.GenerateRequests = nil
	a.SpeechRequests = nil
	a.AudioInputs = nil
}

var _ aiprovider.Adapter = (*Adapter)(nil)
