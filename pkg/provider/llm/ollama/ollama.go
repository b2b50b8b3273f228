// Package ollama provides an LLM provider backed by a self-hosted Ollama
// server's /api/generate endpoint.
//
// The generate endpoint takes a single prompt string rather than a message
// array, so the conversation is flattened into role-annotated lines followed by
// a trailing "Assistant:" cue that elicits the model's continuation:
//
//	System: You are Sooshi.
//
//	User: hello
//
//	Assistant:
//
// Usage:
//
//	p, err := ollama.New("http://localhost:11434", "llama3.1:latest",
//	    ollama.WithTimeout(120*time.Second),
//	)
//	reply, err := p.Generate(ctx, req)
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/provider/llm"
	"github.com/MrWong99/sooshi/pkg/types"
)

const (
	backendName = "ollama"

	// generateEndpoint is the non-chat completion path of the Ollama API.
	generateEndpoint = "/api/generate"

	// defaultTimeout is generous because local generation on commodity
	// hardware is slow.
	defaultTimeout = 120 * time.Second

	// assistantCue is appended after the flattened history.
	assistantCue = "Assistant:"
)

// Compile-time assertion that Provider implements llm.Provider.
var _ llm.Provider = (*Provider)(nil)

// generateRequest is the JSON body sent to /api/generate. Temperature and
// MaxTokens are sent at the top level as documented for this deployment and
// mirrored in Options, which is where upstream Ollama reads them.
type generateRequest struct {
	Model       string          `json:"model"`
	Prompt      string          `json:"prompt"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream"`
	Format      string          `json:"format,omitempty"`
	Options     generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// generateResponse is the subset of the /api/generate reply we consume.
type generateResponse struct {
	Response string `json:"response"`
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the HTTP client timeout for generation requests.
// Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client entirely. The client's Timeout is
// left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements llm.Provider against an Ollama server.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a Provider for the Ollama server at baseURL using model.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("ollama: baseURL must not be empty")
	}
	if model == "" {
		return nil, errors.New("ollama: model must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return backendName }

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", provider.Invalid(backendName, "generate", err)
	}

	gr := generateRequest{
		Model:       p.model,
		Prompt:      FlattenMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.JSONResponse {
		gr.Format = "json"
	}
	body, err := json.Marshal(gr)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+generateEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", provider.Connection(backendName, "generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", provider.StatusError(backendName, "generate", resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", provider.Response(backendName, "generate", resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	slog.Debug("ollama: generation complete",
		"model", p.model,
		"messages", len(req.Messages),
		"duration", time.Since(start),
	)
	return out.Response, nil
}

// FlattenMessages renders messages as one role-annotated prompt ending in an
// "Assistant:" cue. Each turn becomes "<Role>: <content>\n" and turns are
// joined by a newline, so consecutive turns are separated by a blank line.
func FlattenMessages(messages []types.Message) string {
	parts := make([]string, 0, len(messages)+1)
	for _, m := range messages {
		var label string
		switch m.Role {
		case types.RoleSystem:
			label = "System"
		case types.RoleUser:
			label = "User"
		case types.RoleAssistant:
			label = "Assistant"
		default:
			continue
		}
		parts = append(parts, label+": "+m.Content+"\n")
	}
	parts = append(parts, assistantCue)
	return strings.Join(parts, "\n")
}
