// Package whisper provides an STT provider that uploads audio to a remote
// Whisper transcription endpoint.
//
// The endpoint accepts a multipart/form-data POST with the clip in a field
// named "audio" and answers with {"text": "..."}. An optional API key is sent
// as a bearer token. The configured URL is the full endpoint address; no path
// is appended.
//
// Usage:
//
//	p, err := whisper.New("https://stt.example.com/api/v1/whisper/transcribe",
//	    whisper.WithAPIKey(key),
//	    whisper.WithTimeout(30*time.Second),
//	)
//	transcript, err := p.Transcribe(ctx, clip)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/provider/stt"
	"github.com/MrWong99/sooshi/pkg/types"
)

const (
	backendName    = "whisper"
	defaultTimeout = 30 * time.Second

	// The endpoint expects the upload under these names.
	formField       = "audio"
	formFilename    = "audio.m4a"
	formContentType = "audio/m4a"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithAPIKey sets the bearer token. When empty no Authorization header is
// sent.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithTimeout sets the HTTP client timeout. Defaults to 30 s.
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

// Provider implements stt.Provider against a remote Whisper endpoint.
type Provider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New creates a Provider that uploads to endpoint. endpoint must be non-empty.
func New(endpoint string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("whisper: endpoint must not be empty")
	}
	p := &Provider{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return backendName }

// Transcribe implements stt.Provider. A reply without a "text" key yields an
// empty transcript.
func (p *Provider) Transcribe(ctx context.Context, audio []byte) (types.Transcript, error) {
	if len(audio) == 0 {
		return types.Transcript{}, provider.Invalid(backendName, "transcribe", errors.New("audio must not be empty"))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formField, formFilename))
	h.Set("Content-Type", formContentType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create form part: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: write audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Transcript{}, provider.Connection(backendName, "transcribe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.Transcript{}, provider.StatusError(backendName, "transcribe", resp)
	}

	var out types.Transcript
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.Transcript{}, provider.Response(backendName, "transcribe", resp.StatusCode, fmt.Errorf("parse JSON response: %w", err))
	}

	slog.Debug("whisper: transcription complete",
		"audio_bytes", len(audio),
		"chars", len(out.Text),
		"duration", time.Since(start),
	)
	return out, nil
}
