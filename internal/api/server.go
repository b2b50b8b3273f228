// Package api exposes the assistant and persona layers over HTTP.
//
// Voice routes live under /voice and accept form or multipart bodies. Persona
// routes live under /persona and speak JSON. Every failed AI call answers 500
// with {"error":"internal AI processing error","detail":...}; malformed input
// answers 422.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/sooshi/internal/assistant"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/internal/persona"
	"github.com/MrWong99/sooshi/pkg/provider"
)

const (
	// defaultMaxUploadBytes caps request bodies, audio uploads included.
	defaultMaxUploadBytes = 25 << 20

	// multipartMemory is how much of a multipart body is kept in memory
	// before spilling to temporary files.
	multipartMemory = 8 << 20

	errAIProcessing = "internal AI processing error"
	errInvalidInput = "invalid input"
)

// Server holds the dependencies of all routes. It is safe for concurrent use.
type Server struct {
	svc            *assistant.Service
	personas       *persona.Engine
	metrics        *observe.Metrics
	maxUploadBytes int64
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxUploadBytes overrides the request body limit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMetrics sets the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns a Server.
func New(svc *assistant.Service, personas *persona.Engine, opts ...Option) *Server {
	s := &Server{
		svc:            svc,
		personas:       personas,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds all routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /voice/provider", s.handleProvider)
	mux.HandleFunc("POST /voice/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /voice/text-to-speech", s.handleTextToSpeech)
	mux.HandleFunc("POST /voice/chat", s.handleChat)
	mux.HandleFunc("POST /voice/voice-conversation", s.handleVoiceConversation)
	mux.HandleFunc("POST /voice/test-flow", s.handleTestFlow)

	mux.HandleFunc("GET /persona/{age}", s.handlePersona)
	mux.HandleFunc("POST /persona/system-prompt", s.handleSystemPrompt)
	mux.HandleFunc("POST /persona/extract", s.handleExtract)
	mux.HandleFunc("POST /persona/filter", s.handleFilter)
}

// Handler returns all routes wrapped in the tracing, metrics and request ID
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// inputError marks a request the caller must fix.
type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }

func badInput(msg string) error { return &inputError{msg: msg} }

// writeError maps err to a status code and writes the error body. Caller
// mistakes answer 422; anything else is an AI processing failure and answers
// 500. A failed pipeline stage is always a processing failure, even when the
// stage rejected data produced by an earlier one.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ie *inputError
		se *assistant.StageError
		me *http.MaxBytesError
	)
	staged := errors.As(err, &se)
	switch {
	case errors.As(err, &ie), !staged && errors.Is(err, provider.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: errInvalidInput, Detail: err.Error()})
		return
	case errors.As(err, &me):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: errInvalidInput, Detail: err.Error()})
		return
	}

	body := errorBody{Error: errAIProcessing, Detail: err.Error()}
	if staged {
		body.Stage = string(se.Stage)
	}
	observe.Logger(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"stage", body.Stage,
		"err", err,
	)
	writeJSON(w, http.StatusInternalServerError, body)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
