// Package assistant is the single entry point callers use for AI work. It
// hides which backend stack is active behind plain text and audio calls and
// composes them into the voice conversation pipeline.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/sooshi/internal/aiprovider"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/types"
)

// ErrEmptyText is returned by [Service.TextToSpeech] for empty input. It
// matches [provider.ErrInvalidInput].
var ErrEmptyText = fmt.Errorf("assistant: %w: text must not be empty", provider.ErrInvalidInput)

const (
	defaultMaxTokens   = 500
	defaultTemperature = 0.7
)

// Service delegates every call to one [aiprovider.Adapter]. It holds no
// mutable state and is safe for concurrent use.
type Service struct {
	adapter     aiprovider.Adapter
	maxTokens   int
	temperature float64
	metrics     *observe.Metrics
}

// Option configures a [Service].
type Option func(*Service)

// WithGeneration sets the process-wide token ceiling and default temperature.
// Non-positive MaxTokens keeps the built-in default.
func WithGeneration(gc config.GenerationConfig) Option {
	return func(s *Service) {
		if gc.MaxTokens > 0 {
			s.maxTokens = gc.MaxTokens
		}
		s.temperature = gc.Temperature
	}
}

// WithMetrics records pipeline metrics into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns a Service backed by adapter.
func New(adapter aiprovider.Adapter, opts ...Option) (*Service, error) {
	if adapter == nil {
		return nil, errors.New("assistant: adapter must not be nil")
	}
	s := &Service{
		adapter:     adapter,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// ChatOption customises a single [Service.Chat] call.
type ChatOption func(*chatOptions)

type chatOptions struct {
	history      []types.Message
	systemPrompt string
	temperature  *float64
	jsonResponse bool
}

// WithHistory supplies prior turns, oldest first. They are sent between the
// system prompt and the new user message in the given order.
func WithHistory(history []types.Message) ChatOption {
	return func(o *chatOptions) { o.history = history }
}

// WithSystemPrompt prepends a system message. Empty means none.
func WithSystemPrompt(prompt string) ChatOption {
	return func(o *chatOptions) { o.systemPrompt = prompt }
}

// WithTemperature overrides the configured sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(o *chatOptions) { o.temperature = &t }
}

// WithJSONResponse asks the backend for a reply that is a single JSON object.
func WithJSONResponse() ChatOption {
	return func(o *chatOptions) { o.jsonResponse = true }
}

// Chat sends [system?] + history + [user] to the active backend and returns
// the reply exactly as produced. An empty userMessage is sent as an empty user
// turn.
func (s *Service) Chat(ctx context.Context, userMessage string, opts ...ChatOption) (string, error) {
	var o chatOptions
	for _, opt := range opts {
		opt(&o)
	}
	temperature := s.temperature
	if o.temperature != nil {
		temperature = *o.temperature
	}
	return s.adapter.GenerateText(ctx, types.GenerationRequest{
		Messages:     buildMessages(o.systemPrompt, o.history, userMessage),
		Temperature:  temperature,
		MaxTokens:    s.maxTokens,
		JSONResponse: o.jsonResponse,
	})
}

func buildMessages(systemPrompt string, history []types.Message, userMessage string) []types.Message {
	msgs := make([]types.Message, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, types.Message{Role: types.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history...)
	return append(msgs, types.Message{Role: types.RoleUser, Content: userMessage})
}

// TextToSpeech synthesizes text. voice may be empty to use the backend's
// configured default.
func (s *Service) TextToSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return s.adapter.SynthesizeSpeech(ctx, types.SpeechRequest{Text: text, Voice: voice})
}

// SpeechToText transcribes audio. Silence yields "" and a nil error.
func (s *Service) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	tr, err := s.adapter.TranscribeSpeech(ctx, audio)
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}

// ActiveProviderName returns the display name of the active backend stack.
func (s *Service) ActiveProviderName() string { return s.adapter.Name() }

// ActiveProvider returns the kind of the active backend stack.
func (s *Service) ActiveProvider() config.ProviderKind { return s.adapter.Kind() }
