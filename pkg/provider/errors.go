// Package provider holds the error taxonomy shared by every backend
// implementation under pkg/provider.
//
// Backends never retry. Each failure is reported once as an [*Error] carrying
// the backend name, the operation, and whether the backend could be reached
// at all ([KindConnection]) or answered with something unusable
// ([KindResponse]). Callers test for the category with errors.Is against
// [ErrConnection] and [ErrResponse].
package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Kind categorises a provider failure.
type Kind int

const (
	// KindConnection means the backend could not be reached: DNS, dial,
	// TLS, timeout, or a broken connection mid-response.
	KindConnection Kind = iota + 1

	// KindResponse means the backend answered with a non-success status or
	// with a payload of unexpected shape.
	KindResponse

	// KindInvalidInput means the request failed local validation and was
	// never sent.
	KindInvalidInput
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindResponse:
		return "response"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by [Error.Is].
var (
	ErrConnection = errors.New("provider connection error")
	ErrResponse   = errors.New("provider response error")
)

// ErrInvalidInput is returned before any network I/O when a request fails
// local validation (empty text, empty audio, no messages).
var ErrInvalidInput = errors.New("invalid provider input")

// Error is the single failure type surfaced by backends.
type Error struct {
	// Backend names the service that failed (e.g. "ollama", "coqui").
	Backend string

	// Op is the capability that was being exercised (e.g. "generate").
	Op string

	// Kind distinguishes unreachable backends from bad responses.
	Kind Kind

	// StatusCode is the HTTP status for KindResponse errors, 0 otherwise.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: %s error (status %d): %v", e.Backend, e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s error: %v", e.Backend, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the category sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrResponse:
		return e.Kind == KindResponse
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	}
	return false
}

// Connection builds a [KindConnection] error.
func Connection(backend, op string, err error) *Error {
	return &Error{Backend: backend, Op: op, Kind: KindConnection, Err: err}
}

// Response builds a [KindResponse] error. status may be 0 when the failure is
// a malformed payload rather than a bad status code.
func Response(backend, op string, status int, err error) *Error {
	return &Error{Backend: backend, Op: op, Kind: KindResponse, StatusCode: status, Err: err}
}

// Invalid builds a [KindInvalidInput] error.
func Invalid(backend, op string, err error) *Error {
	return &Error{Backend: backend, Op: op, Kind: KindInvalidInput, Err: err}
}

// IsRetryable reports whether err is a transient connection failure. Response
// errors are never retryable: the backend was reached and said no.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnection)
}

// maxErrorBody bounds how much of a failed response body is copied into an
// error message.
const maxErrorBody = 512

// StatusError builds a [KindResponse] error from a non-2xx HTTP response,
// including a bounded excerpt of the body. It does not close the body.
func StatusError(backend, op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return Response(backend, op, resp.StatusCode, errors.New(msg))
}
