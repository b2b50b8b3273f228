// Package types defines the shared types used across all Sooshi packages.
//
// These types form the lingua franca between providers, adapters, the
// assistant service, and the personalization layer. Cross-cutting data
// structures live here to avoid circular imports.
package types

import (
	"errors"
	"fmt"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the recognised roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single turn in a conversation. A slice of messages is ordered
// chronologically and that order must survive every provider boundary.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest carries everything a text generation backend needs.
type GenerationRequest struct {
	// Messages is the ordered conversation, oldest first. The last message is
	// normally the user turn that drives the reply.
	Messages []Message

	// Temperature controls sampling randomness in the range [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the number of generated tokens. Must be positive.
	MaxTokens int

	// JSONResponse asks the backend to constrain its reply to a JSON object.
	// Backends without such a mode ignore it.
	JSONResponse bool
}

// Validate checks that req can be sent to a backend.
func (req GenerationRequest) Validate() error {
	var errs []error
	if len(req.Messages) == 0 {
		errs = append(errs, errors.New("messages must not be empty"))
	}
	for i, m := range req.Messages {
		if !m.Role.IsValid() {
			errs = append(errs, fmt.Errorf("messages[%d]: unknown role %q", i, m.Role))
		}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f is out of range [0, 2]", req.Temperature))
	}
	if req.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max tokens must be positive, got %d", req.MaxTokens))
	}
	return errors.Join(errs...)
}

// SpeechRequest asks a synthesis backend to speak Text.
type SpeechRequest struct {
	// Text is the content to synthesise. Must not be empty.
	Text string

	// Voice is an optional provider-specific voice identifier. Empty selects
	// the backend's configured default.
	Voice string
}

// Transcript is the result of a speech-to-text call. An empty Text is a valid
// outcome meaning no speech was detected; it is never reported as an error.
type Transcript struct {
	Text string `json:"text"`
}
