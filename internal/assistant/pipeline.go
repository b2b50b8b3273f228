package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/types"
)

// Stage names one step of a voice conversation.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate"
	StageSynthesize Stage = "synthesize"
)

// StageError reports which step of a voice conversation failed. Err is the
// step's error unchanged, typically a *provider.Error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("voice conversation: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// VoiceOptions configures [Service.VoiceConversation].
type VoiceOptions struct {
	// History is passed to generation as prior turns, oldest first.
	History []types.Message

	// SystemPrompt is prepended when non-empty.
	SystemPrompt string

	// WantAudio enables the synthesis step.
	WantAudio bool

	// Voice selects the synthesis voice. Empty uses the backend default.
	Voice string
}

// VoiceResult is the outcome of a complete voice conversation. AIAudio is nil
// unless audio was requested.
type VoiceResult struct {
	UserText string
	AIText   string
	AIAudio  []byte
}

// VoiceConversation runs transcribe, generate and, when opts.WantAudio is
// set, synthesize, strictly in that order. An empty transcript is still sent
// to generation. The first failing step ends the conversation with a
// *[StageError] and no partial result.
func (s *Service) VoiceConversation(ctx context.Context, audio []byte, opts VoiceOptions) (*VoiceResult, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "assistant.voice_conversation",
		trace.WithAttributes(
			attribute.String("provider", string(s.adapter.Kind())),
			attribute.Bool("want_audio", opts.WantAudio),
			attribute.Int("audio_bytes", len(audio)),
		),
	)
	defer span.End()

	s.metrics.ActiveConversations.Add(ctx, 1)
	defer s.metrics.ActiveConversations.Add(ctx, -1)

	res, err := s.runConversation(ctx, audio, opts)

	s.metrics.ConversationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		stage := ""
		var se *StageError
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		observe.FailSpan(span, err)
		s.metrics.RecordConversation(ctx, "error", stage)
		observe.Logger(ctx).Warn("voice conversation failed",
			"stage", stage,
			"duration", time.Since(start),
			"err", err,
		)
		return nil, err
	}
	s.metrics.RecordConversation(ctx, "ok", "")
	observe.Logger(ctx).Info("voice conversation complete",
		"user_chars", len(res.UserText),
		"reply_chars", len(res.AIText),
		"audio_bytes", len(res.AIAudio),
		"duration", time.Since(start),
	)
	return res, nil
}

func (s *Service) runConversation(ctx context.Context, audio []byte, opts VoiceOptions) (*VoiceResult, error) {
	var res VoiceResult

	err := s.stage(ctx, StageTranscribe, func(ctx context.Context) error {
		text, err := s.SpeechToText(ctx, audio)
		if text == "" && err == nil {
			observe.Logger(ctx).Debug("empty transcript, continuing with an empty user turn")
		}
		res.UserText = text
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.stage(ctx, StageGenerate, func(ctx context.Context) error {
		reply, err := s.Chat(ctx, res.UserText,
			WithHistory(opts.History),
			WithSystemPrompt(opts.SystemPrompt),
		)
		res.AIText = reply
		return err
	})
	if err != nil {
		return nil, err
	}

	if !opts.WantAudio {
		return &res, nil
	}
	err = s.stage(ctx, StageSynthesize, func(ctx context.Context) error {
		audio, err := s.TextToSpeech(ctx, res.AIText, opts.Voice)
		res.AIAudio = audio
		return err
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// stage runs fn in a child span and tags its error with name.
func (s *Service) stage(ctx context.Context, name Stage, fn func(context.Context) error) error {
	ctx, span := observe.StartSpan(ctx, "assistant."+string(name))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordStage(ctx, string(name), time.Since(start), err != nil)
	if err != nil {
		observe.FailSpan(span, err)
		return &StageError{Stage: name, Err: err}
	}
	observe.Logger(ctx).Debug("voice stage complete",
		"stage", string(name),
		"duration", time.Since(start),
	)
	return nil
}
