// Package config provides the configuration schema and loader for the Sooshi
// conversational-AI core.
//
// Configuration is read once at startup from an optional YAML file, then
// overlaid with environment variables, then validated. The resulting [Config]
// is treated as immutable: switching the active provider requires a restart.
package config

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel controls log verbosity for the Sooshi server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ProviderKind selects which backend stack serves text generation and speech
// synthesis.
type ProviderKind string

const (
	// ProviderLocal uses a self-hosted Ollama server and a Coqui TTS server.
	ProviderLocal ProviderKind = "local"

	// ProviderCloud uses the hosted OpenAI chat and speech APIs.
	ProviderCloud ProviderKind = "cloud"
)

// IsValid reports whether k is a recognised provider kind.
func (k ProviderKind) IsValid() bool {
	return k == ProviderLocal || k == ProviderCloud
}

// DisplayName returns the human-readable label of the stack k selects.
func (k ProviderKind) DisplayName() string {
	switch k {
	case ProviderLocal:
		return "Local (Ollama + Coqui TTS)"
	case ProviderCloud:
		return "OpenAI (GPT-4 + TTS)"
	}
	return string(k)
}

// ParseProviderKind maps a configured string onto a [ProviderKind]. Matching is
// case-insensitive and "openai" is accepted as a legacy spelling of "cloud".
// Any other value is an error; there is no silent default.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return ProviderLocal, nil
	case "cloud", "openai":
		return ProviderCloud, nil
	}
	return "", fmt.Errorf("provider %q is invalid; valid values: local, cloud", s)
}

// UnmarshalText lets YAML and environment decoding share the alias rules of
// [ParseProviderKind].
func (k *ProviderKind) UnmarshalText(text []byte) error {
	parsed, err := ParseProviderKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Config is the root configuration structure for Sooshi.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Provider   ProviderKind     `yaml:"provider"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Coqui      CoquiConfig      `yaml:"coqui"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	Generation GenerationConfig `yaml:"generation"`
	Retry      RetryConfig      `yaml:"retry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the API server (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the TCP address of the Prometheus and health endpoints.
	// Empty disables the separate listener.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadBytes caps request bodies, audio uploads included.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// OllamaConfig holds connection parameters for the local text backend.
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// CoquiConfig holds connection parameters for the local speech backend.
type CoquiConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Vocoder string        `yaml:"vocoder"`
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIConfig holds credentials and model selection for the cloud stack.
type OpenAIConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Organization string        `yaml:"organization"`
	Model        string        `yaml:"model"`
	TTSModel     string        `yaml:"tts_model"`
	TTSVoice     string        `yaml:"tts_voice"`
	Timeout      time.Duration `yaml:"timeout"`
}

// WhisperConfig points at the shared transcription endpoint used by both
// stacks.
type WhisperConfig struct {
	// URL is the full endpoint address that receives the multipart upload.
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// GenerationConfig holds the process-wide defaults applied to every chat call.
type GenerationConfig struct {
	// MaxTokens is the reply length ceiling sent with every generation request.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is used when a caller does not choose one.
	Temperature float64 `yaml:"temperature"`
}

// RetryConfig enables bounded retries of connection failures around the
// active adapter. MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`

	// BreakerThreshold is the number of consecutive connection failures that
	// opens the circuit breaker. Zero disables the breaker.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// Default returns a Config populated with the built-in defaults. Credentials
// and the transcription endpoint have no default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8000",
			MetricsAddr:    ":9090",
			LogLevel:       LogInfo,
			MaxUploadBytes: 25 << 20,
		},
		Provider: ProviderLocal,
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1:latest",
			Timeout: 120 * time.Second,
		},
		Coqui: CoquiConfig{
			URL:     "http://localhost:5002",
			Model:   "tts_models/en/ljspeech/tacotron2-DDC",
			Vocoder: "vocoder_models/en/ljspeech/hifigan_v2",
			Timeout: 30 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:    "gpt-4-turbo-preview",
			TTSModel: "tts-1",
			TTSVoice: "nova",
			Timeout:  60 * time.Second,
		},
		Whisper: WhisperConfig{
			Timeout: 30 * time.Second,
		},
		Generation: GenerationConfig{
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Retry: RetryConfig{
			MaxAttempts:      1,
			BaseDelay:        200 * time.Millisecond,
			MaxDelay:         2 * time.Second,
			BreakerThreshold: 0,
			BreakerReset:     30 * time.Second,
		},
	}
}
