package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUpstream Kind = iota
	KindClient
	KindNotFound
	KindUnavailable
	KindTooManyRequests
)

// Error carries the category of a failure plus a caller-facing message.
// Err is the underlying cause, reported as "details" in responses.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindClient:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusNotImplemented
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// BadRequest reports a missing or malformed request field.
func BadRequest(field, reason string) *Error {
	return &Error{Kind: KindClient, Message: fmt.Sprintf("%s: %s", field, reason)}
}

// Invalid wraps a validation failure of a submitted payload.
func Invalid(message string, err error) *Error {
	return &Error{Kind: KindClient, Message: message, Err: err}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// Upstream wraps failures of extraction, generation or the store.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func Unavailable(message string) *Error {
	return &Error{Kind: KindUnavailable, Message: message}
}

func TooManyRequests(message string) *Error {
	return &Error{Kind: KindTooManyRequests, Message: message}
}

// As extracts an *Error from err. Unknown errors become KindUpstream.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Upstream("internal error", err)
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	return As(err).Status()
}
