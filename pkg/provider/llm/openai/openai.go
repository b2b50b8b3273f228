// Package openai provides an LLM provider backed by the OpenAI chat
// completion API. Messages are sent as the native structured array; no
// flattening takes place.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/provider/llm"
	"github.com/MrWong99/sooshi/pkg/types"
)

const backendName = "openai"

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	httpClient   *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient sets the HTTP client used for all requests. A timeout set via
// WithTimeout takes precedence and is applied to a fresh client instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New constructs a new OpenAI LLM Provider. The SDK's automatic retries are
// disabled; retry policy belongs to the caller.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	client := oai.NewClient(RequestOptions(apiKey, cfg.baseURL, cfg.organization, cfg.timeout, cfg.httpClient)...)
	return &Provider{client: client, model: model}, nil
}

// RequestOptions assembles the SDK options shared by the chat and speech
// providers.
func RequestOptions(apiKey, baseURL, organization string, timeout time.Duration, hc *http.Client) []option.RequestOption {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(organization))
	}
	switch {
	case timeout > 0:
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	case hc != nil:
		reqOpts = append(reqOpts, option.WithHTTPClient(hc))
	}
	return reqOpts
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return backendName }

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", provider.Invalid(backendName, "chat", err)
	}
	params, err := p.buildParams(req)
	if err != nil {
		return "", provider.Invalid(backendName, "chat", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", ClassifyError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.Response(backendName, "chat", 0, errors.New("empty choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// ClassifyError maps an SDK error to a *provider.Error. API errors carry a
// status code and count as response errors; anything else never got an
// answer from the server.
func ClassifyError(op string, err error) *provider.Error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return provider.Response(backendName, op, apiErr.StatusCode, err)
	}
	return provider.Connection(backendName, op, err)
}

// buildParams converts a GenerationRequest into OpenAI SDK params, keeping the
// message order intact.
func (p *Provider) buildParams(req types.GenerationRequest) (oai.ChatCompletionNewParams, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    messages,
		Temperature: param.NewOpt(req.Temperature),
		MaxTokens:   param.NewOpt(int64(req.MaxTokens)),
	}
	if req.JSONResponse {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params, nil
}

// convertMessage converts a types.Message to an OpenAI SDK message param.
func convertMessage(m types.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case types.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case types.RoleUser:
		return oai.UserMessage(m.Content), nil
	case types.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)
