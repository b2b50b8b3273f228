// Package coqui provides a TTS provider backed by a self-hosted Coqui TTS
// server. Each call issues one POST /api/tts carrying the text together with
// the configured model and vocoder identifiers; the server answers with a
// complete WAV file which is returned unchanged.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithModel("tts_models/en/ljspeech/tacotron2-DDC"),
//	    coqui.WithVocoder("vocoder_models/en/ljspeech/hifigan_v2"),
//	    coqui.WithTimeout(30*time.Second),
//	)
//	wav, err := p.Synthesize(ctx, types.SpeechRequest{Text: "Hello"})
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/provider/tts"
	"github.com/MrWong99/sooshi/pkg/types"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	backendName    = "coqui"
	defaultTimeout = 30 * time.Second
	apiTTSEndpoint = "/api/tts"

	// DefaultModel and DefaultVocoder match the models shipped in the stock
	// tts-cpu image.
	DefaultModel   = "tts_models/en/ljspeech/tacotron2-DDC"
	DefaultVocoder = "vocoder_models/en/ljspeech/hifigan_v2"

	// maxAudioBytes caps a single synthesised clip.
	maxAudioBytes = 64 << 20
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithModel sets the model_name sent with every request.
func WithModel(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.model = name
		}
	}
}

// WithVocoder sets the vocoder_name sent with every request.
func WithVocoder(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.vocoder = name
		}
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s if not set.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements tts.Provider backed by a Coqui TTS server.
// It is safe for concurrent use.
type Provider struct {
	serverURL  string
	model      string
	vocoder    string
	httpClient *http.Client
}

// New creates a new Coqui Provider that targets the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		model:      DefaultModel,
		vocoder:    DefaultVocoder,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /api/tts.
type ttsRequest struct {
	Text      string `json:"text"`
	ModelName string `json:"model_name"`
	Vocoder   string `json:"vocoder_name"`
	SpeakerID string `json:"speaker_id,omitempty"`
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return backendName }

// Synthesize implements tts.Provider. req.Voice, when set, is forwarded as the
// speaker_id for multi-speaker models.
func (p *Provider) Synthesize(ctx context.Context, req types.SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, provider.Invalid(backendName, "synthesize", errors.New("text must not be empty"))
	}

	body, err := json.Marshal(ttsRequest{
		Text:      req.Text,
		ModelName: p.model,
		Vocoder:   p.vocoder,
		SpeakerID: req.Voice,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+apiTTSEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, provider.Connection(backendName, "synthesize", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.StatusError(backendName, "synthesize", resp)
	}

	wav, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, provider.Connection(backendName, "synthesize", fmt.Errorf("read body: %w", err))
	}
	if err := checkWAV(wav); err != nil {
		return nil, provider.Response(backendName, "synthesize", resp.StatusCode, err)
	}

	slog.Debug("coqui: synthesis complete",
		"chars", len(req.Text),
		"bytes", len(wav),
		"duration", time.Since(start),
	)
	return wav, nil
}

// checkWAV verifies that data is a RIFF/WAVE container with a data chunk.
func checkWAV(data []byte) error {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return errors.New("response is not a WAV file")
	}
	if findWAVDataOffset(data) < 0 {
		return errors.New("WAV file has no data chunk")
	}
	return nil
}

// findWAVDataOffset walks the RIFF sub-chunks and returns the offset of the
// first byte of the "data" chunk payload, or -1 when none is found.
func findWAVDataOffset(data []byte) int {
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		if id == "data" {
			return pos + 8
		}
		pos += 8 + size
		if size%2 == 1 {
			pos++
		}
	}
	return -1
}
