// Package aiprovider binds one backend stack to the fixed capability contract
// used by the rest of Sooshi: generate text, synthesize speech, transcribe
// speech.
//
// Two variants exist. [LocalAdapter] drives a self-hosted Ollama server and a
// Coqui TTS server; [CloudAdapter] drives the OpenAI chat and speech APIs.
// Both share the same remote Whisper endpoint for transcription. Which variant
// is active is decided once at startup by a [Factory] reading
// [config.Config.Provider]; there is no runtime switching.
//
// Adapters never retry. Every failure is a *provider.Error; see package
// resilience for the opt-in retry layer.
package aiprovider

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/provider/llm"
	"github.com/MrWong99/sooshi/pkg/provider/stt"
	"github.com/MrWong99/sooshi/pkg/provider/tts"
	"github.com/MrWong99/sooshi/pkg/types"
)

// Adapter is the capability contract implemented by every backend stack.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Kind reports which stack this adapter drives.
	Kind() config.ProviderKind

	// Name returns a human-readable label such as "Local (Ollama + Coqui TTS)".
	Name() string

	// GenerateText returns the model's reply to req.Messages.
	GenerateText(ctx context.Context, req types.GenerationRequest) (string, error)

	// SynthesizeSpeech returns encoded audio for req.Text.
	SynthesizeSpeech(ctx context.Context, req types.SpeechRequest) ([]byte, error)

	// TranscribeSpeech returns what was said in audio. Empty text is a valid
	// result.
	TranscribeSpeech(ctx context.Context, audio []byte) (types.Transcript, error)
}

// Capability names used as the "capability" metric attribute.
const (
	CapabilityGenerate   = "llm"
	CapabilitySynthesize = "tts"
	CapabilityTranscribe = "stt"
)

// Option configures a [LocalAdapter] or [CloudAdapter].
type Option func(*stack)

// WithMetrics records provider metrics into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *stack) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithName overrides the display name.
func WithName(name string) Option {
	return func(s *stack) {
		if name != "" {
			s.name = name
		}
	}
}

// stack is the capability plumbing shared by both variants. The variants
// differ only in which providers they are built from.
type stack struct {
	kind    config.ProviderKind
	name    string
	llm     llm.Provider
	tts     tts.Provider
	stt     stt.Provider
	metrics *observe.Metrics
}

func newStack(kind config.ProviderKind, name string, gen llm.Provider, speech tts.Provider, transcriber stt.Provider, opts []Option) stack {
	s := stack{
		kind: kind,
		name: name,
		llm:  gen,
		tts:  speech,
		stt:  transcriber,
	}
	for _, o := range opts {
		o(&s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

func (s *stack) Kind() config.ProviderKind { return s.kind }

func (s *stack) Name() string { return s.name }

func (s *stack) GenerateText(ctx context.Context, req types.GenerationRequest) (string, error) {
	start := time.Now()
	reply, err := s.llm.Generate(ctx, req)
	s.record(ctx, CapabilityGenerate, s.llm.Name(), start, err)
	if err != nil {
		return "", err
	}
	observe.Logger(ctx).Debug("text generated",
		"provider", s.llm.Name(),
		"messages", len(req.Messages),
		"reply_chars", len(reply),
	)
	return reply, nil
}

func (s *stack) SynthesizeSpeech(ctx context.Context, req types.SpeechRequest) ([]byte, error) {
	start := time.Now()
	audio, err := s.tts.Synthesize(ctx, req)
	s.record(ctx, CapabilitySynthesize, s.tts.Name(), start, err)
	if err != nil {
		return nil, err
	}
	observe.Logger(ctx).Debug("speech synthesized",
		"provider", s.tts.Name(),
		"chars", len(req.Text),
		"audio_bytes", len(audio),
	)
	return audio, nil
}

func (s *stack) TranscribeSpeech(ctx context.Context, audio []byte) (types.Transcript, error) {
	start := time.Now()
	tr, err := s.stt.Transcribe(ctx, audio)
	s.record(ctx, CapabilityTranscribe, s.stt.Name(), start, err)
	if err != nil {
		return types.Transcript{}, err
	}
	observe.Logger(ctx).Debug("speech transcribed",
		"provider", s.stt.Name(),
		"audio_bytes", len(audio),
		"chars", len(tr.Text),
	)
	return tr, nil
}

// record updates the backend call instruments.
func (s *stack) record(ctx context.Context, capability, backend string, start time.Time, err error) {
	kind := ""
	if err != nil {
		kind = ErrorKind(err)
	}
	s.metrics.RecordProviderCall(ctx, backend, capability, kind, time.Since(start))
}

// ErrorKind returns a short label for err suitable for metrics and logs.
func ErrorKind(err error) string {
	var pe *provider.Error
	switch {
	case errors.As(err, &pe):
		return pe.Kind.String()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}

// LocalAdapter serves text generation from Ollama and speech synthesis from
// Coqui TTS.
type LocalAdapter struct {
	stack
}

// NewLocal assembles a LocalAdapter from already constructed providers.
func NewLocal(gen llm.Provider, speech tts.Provider, transcriber stt.Provider, opts ...Option) *LocalAdapter {
	return &LocalAdapter{stack: newStack(config.ProviderLocal, config.ProviderLocal.DisplayName(), gen, speech, transcriber, opts)}
}

// CloudAdapter serves text generation and speech synthesis from OpenAI.
type CloudAdapter struct {
	stack
}

// NewCloud assembles a CloudAdapter from already constructed providers.
func NewCloud(gen llm.Provider, speech tts.Provider, transcriber stt.Provider, opts ...Option) *CloudAdapter {
	return &CloudAdapter{stack: newStack(config.ProviderCloud, config.ProviderCloud.DisplayName(), gen, speech, transcriber, opts)}
}

// Compile-time interface assertions.
var (
	_ Adapter = (*LocalAdapter)(nil)
	_ Adapter = (*CloudAdapter)(nil)
)
