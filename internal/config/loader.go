package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds the startup configuration: defaults, then the YAML file at
// path, then environment overrides read through lookup, then validation.
// A missing file is tolerated when optional is true.
func Resolve(path string, optional bool, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if cfg, err = decode(f); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		case optional && errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using defaults and environment", "path", path)
		default:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must not be negative"))
	}

	// Active provider and its backends
	switch cfg.Provider {
	case ProviderLocal:
		errs = append(errs, requireURL("ollama.base_url", cfg.Ollama.BaseURL))
		if cfg.Ollama.Model == "" {
			errs = append(errs, errors.New("ollama.model is required when provider is local"))
		}
		errs = append(errs, requireURL("coqui.url", cfg.Coqui.URL))
	case ProviderCloud:
		if cfg.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required when provider is cloud"))
		}
		if cfg.OpenAI.Model == "" {
			errs = append(errs, errors.New("openai.model is required when provider is cloud"))
		}
		if cfg.OpenAI.BaseURL != "" {
			errs = append(errs, requireURL("openai.base_url", cfg.OpenAI.BaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("provider %q is invalid; valid values: local, cloud", cfg.Provider))
	}

	// Shared transcription endpoint
	errs = append(errs, requireURL("whisper.url", cfg.Whisper.URL))

	for _, tc := range []struct {
		name string
		d    time.Duration
	}{
		{"ollama.timeout", cfg.Ollama.Timeout},
		{"coqui.timeout", cfg.Coqui.Timeout},
		{"openai.timeout", cfg.OpenAI.Timeout},
		{"whisper.timeout", cfg.Whisper.Timeout},
	} {
		if tc.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", tc.name))
		}
	}

	// Generation defaults
	if cfg.Generation.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("generation.max_tokens %d must be positive", cfg.Generation.MaxTokens))
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generation.temperature %.2f is out of range [0, 2]", cfg.Generation.Temperature))
	}

	// Retry
	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts %d must be at least 1", cfg.Retry.MaxAttempts))
	}
	if cfg.Retry.MaxAttempts > 1 && cfg.Retry.BaseDelay <= 0 {
		errs = append(errs, errors.New("retry.base_delay must be positive when retries are enabled"))
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		errs = append(errs, fmt.Errorf("retry.max_delay %v is shorter than retry.base_delay %v", cfg.Retry.MaxDelay, cfg.Retry.BaseDelay))
	}
	if cfg.Retry.BreakerThreshold < 0 {
		errs = append(errs, errors.New("retry.breaker_threshold must not be negative"))
	}
	if cfg.Retry.BreakerThreshold > 0 && cfg.Retry.BreakerReset <= 0 {
		errs = append(errs, errors.New("retry.breaker_reset must be positive when the breaker is enabled"))
	}

	if cfg.Provider == ProviderLocal && cfg.OpenAI.APIKey != "" {
		slog.Warn("openai.api_key is set but provider is local; the key is ignored")
	}

	return errors.Join(errs...)
}

// requireURL returns an error unless raw is an absolute http(s) URL. A nil
// return is dropped by errors.Join.
func requireURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", field, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", field, raw)
	}
	return nil
}
