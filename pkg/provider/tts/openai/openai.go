// Package openai provides a TTS provider backed by the OpenAI speech endpoint.
// Audio is always requested as WAV so that both backends in this module return
// the same container.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"

	"github.com/MrWong99/sooshi/pkg/provider"
	llmopenai "github.com/MrWong99/sooshi/pkg/provider/llm/openai"
	"github.com/MrWong99/sooshi/pkg/provider/tts"
	"github.com/MrWong99/sooshi/pkg/types"
)

const (
	backendName = "openai-tts"

	// DefaultModel and DefaultVoice are used when the options leave them empty.
	DefaultModel = "tts-1"
	DefaultVoice = "nova"

	maxAudioBytes = 64 << 20
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

type config struct {
	baseURL    string
	model      string
	voice      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the speech model (e.g. "tts-1", "tts-1-hd").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice sets the default voice used when a request names none.
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New constructs an OpenAI speech Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai-tts: apiKey must not be empty")
	}
	cfg := &config{model: DefaultModel, voice: DefaultVoice}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.model == "" {
		cfg.model = DefaultModel
	}
	if cfg.voice == "" {
		cfg.voice = DefaultVoice
	}

	client := oai.NewClient(llmopenai.RequestOptions(apiKey, cfg.baseURL, "", cfg.timeout, cfg.httpClient)...)
	return &Provider{client: client, model: cfg.model, voice: cfg.voice}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return backendName }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req types.SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, provider.Invalid(backendName, "synthesize", errors.New("text must not be empty"))
	}
	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return nil, provider.Response(backendName, "synthesize", apiErr.StatusCode, err)
		}
		return nil, provider.Connection(backendName, "synthesize", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, provider.Connection(backendName, "synthesize", fmt.Errorf("read body: %w", err))
	}
	if len(audio) == 0 {
		return nil, provider.Response(backendName, "synthesize", resp.StatusCode, errors.New("empty audio payload"))
	}
	return audio, nil
}
