package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_IsCategory(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")
	tests := []struct {
		name       string
		err        error
		connection bool
		response   bool
	}{
		{"connection", Connection("ollama", "generate", cause), true, false},
		{"response", Response("coqui", "synthesize", 500, cause), false, true},
		{"wrapped connection", fmt.Errorf("outer: %w", Connection("whisper", "transcribe", cause)), true, false},
		{"plain error", cause, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, ErrConnection); got != tt.connection {
				t.Errorf("errors.Is(ErrConnection) = %v, want %v", got, tt.connection)
			}
			if got := errors.Is(tt.err, ErrResponse); got != tt.response {
				t.Errorf("errors.Is(ErrResponse) = %v, want %v", got, tt.response)
			}
			if got := IsRetryable(tt.err); got != tt.connection {
				t.Errorf("IsRetryable = %v, want %v", got, tt.connection)
			}
		})
	}
}

func TestError_MessageCarriesBackend(t *testing.T) {
	t.Parallel()

	err := Response("openai", "chat", 429, errors.New("rate limited"))
	msg := err.Error()
	for _, want := range []string{"openai", "chat", "429", "rate limited", "response"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not contain %q", msg, want)
		}
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := Connection("coqui", "synthesize", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the underlying cause")
	}
	var pe *Error
	if !errors.As(fmt.Errorf("wrap: %w", err), &pe) {
		t.Fatal("errors.As failed to extract *Error")
	}
	if pe.Backend != "coqui" {
		t.Errorf("Backend = %q, want coqui", pe.Backend)
	}
}
