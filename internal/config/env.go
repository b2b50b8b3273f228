package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Unset or empty variables
// leave the current value untouched. Values that fail to parse are collected
// and returned as one joined error.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	e := envReader{lookup: lookup}

	if v, ok := e.get("PROVIDER"); ok {
		kind, err := ParseProviderKind(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("PROVIDER: %w", err))
		} else {
			cfg.Provider = kind
		}
	}

	e.str("LISTEN_ADDR", &cfg.Server.ListenAddr)
	e.str("METRICS_ADDR", &cfg.Server.MetricsAddr)
	if v, ok := e.get("LOG_LEVEL"); ok {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}

	e.str("OLLAMA_BASE_URL", &cfg.Ollama.BaseURL)
	e.str("OLLAMA_MODEL", &cfg.Ollama.Model)
	e.duration("OLLAMA_TIMEOUT", &cfg.Ollama.Timeout)

	e.str("COQUI_TTS_URL", &cfg.Coqui.URL)
	e.str("COQUI_MODEL", &cfg.Coqui.Model)
	e.str("COQUI_VOCODER", &cfg.Coqui.Vocoder)
	e.duration("COQUI_TIMEOUT", &cfg.Coqui.Timeout)

	e.str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	e.str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	e.str("OPENAI_ORGANIZATION", &cfg.OpenAI.Organization)
	e.str("OPENAI_MODEL", &cfg.OpenAI.Model)
	e.str("OPENAI_TTS_MODEL", &cfg.OpenAI.TTSModel)
	e.str("OPENAI_TTS_VOICE", &cfg.OpenAI.TTSVoice)
	e.duration("OPENAI_TIMEOUT", &cfg.OpenAI.Timeout)

	e.str("WHISPER_API_URL", &cfg.Whisper.URL)
	e.str("WHISPER_API_KEY", &cfg.Whisper.APIKey)
	e.duration("WHISPER_TIMEOUT", &cfg.Whisper.Timeout)

	e.integer("MAX_RESPONSE_LENGTH", &cfg.Generation.MaxTokens)
	e.float("DEFAULT_TEMPERATURE", &cfg.Generation.Temperature)

	e.integer("RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	e.integer("RETRY_BREAKER_THRESHOLD", &cfg.Retry.BreakerThreshold)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return
	}
	*dst = f
}

// duration accepts either a bare number of seconds ("120") or a Go duration
// string ("2m").
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}
