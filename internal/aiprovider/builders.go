package aiprovider

import (
	"fmt"

	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/pkg/provider/llm/ollama"
	llmopenai "github.com/MrWong99/sooshi/pkg/provider/llm/openai"
	"github.com/MrWong99/sooshi/pkg/provider/stt"
	"github.com/MrWong99/sooshi/pkg/provider/stt/whisper"
	"github.com/MrWong99/sooshi/pkg/provider/tts/coqui"
	ttsopenai "github.com/MrWong99/sooshi/pkg/provider/tts/openai"
)

// BuildLocal is the [Builder] for [config.ProviderLocal].
func BuildLocal(cfg *config.Config, opts ...Option) (Adapter, error) {
	gen, err := ollama.New(cfg.Ollama.BaseURL, cfg.Ollama.Model,
		ollama.WithTimeout(cfg.Ollama.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("aiprovider: ollama: %w", err)
	}
	speech, err := coqui.New(cfg.Coqui.URL,
		coqui.WithModel(cfg.Coqui.Model),
		coqui.WithVocoder(cfg.Coqui.Vocoder),
		coqui.WithTimeout(cfg.Coqui.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("aiprovider: coqui: %w", err)
	}
	transcriber, err := buildWhisper(cfg.Whisper)
	if err != nil {
		return nil, err
	}
	return NewLocal(gen, speech, transcriber, opts...), nil
}

// BuildCloud is the [Builder] for [config.ProviderCloud].
func BuildCloud(cfg *config.Config, opts ...Option) (Adapter, error) {
	gen, err := llmopenai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model,
		llmopenai.WithBaseURL(cfg.OpenAI.BaseURL),
		llmopenai.WithOrganization(cfg.OpenAI.Organization),
		llmopenai.WithTimeout(cfg.OpenAI.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("aiprovider: openai: %w", err)
	}
	speech, err := ttsopenai.New(cfg.OpenAI.APIKey,
		ttsopenai.WithBaseURL(cfg.OpenAI.BaseURL),
		ttsopenai.WithModel(cfg.OpenAI.TTSModel),
		ttsopenai.WithVoice(cfg.OpenAI.TTSVoice),
		ttsopenai.WithTimeout(cfg.OpenAI.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("aiprovider: openai tts: %w", err)
	}
	transcriber, err := buildWhisper(cfg.Whisper)
	if err != nil {
		return nil, err
	}
	return NewCloud(gen, speech, transcriber, opts...), nil
}

// buildWhisper constructs the transcription client shared by both stacks.
func buildWhisper(wc config.WhisperConfig) (stt.Provider, error) {
	p, err := whisper.New(wc.URL,
		whisper.WithAPIKey(wc.APIKey),
		whisper.WithTimeout(wc.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("aiprovider: whisper: %w", err)
	}
	return p, nil
}
