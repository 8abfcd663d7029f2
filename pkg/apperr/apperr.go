// Package apperr defines the error taxonomy shared by the booking core and its
// HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the caller is expected to react to it.
type Kind string

const (
	// KindValidation is malformed input, rejected before any state change.
	KindValidation Kind = "VALIDATION"

	// KindConflict is a retryable-by-caller collision with concurrent state.
	KindConflict Kind = "CONFLICT"

	// KindState is a transition attempted from an incompatible state.
	KindState Kind = "STATE"

	// KindNotFound is a referenced resource that does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindInternal is an infrastructure failure.
	KindInternal Kind = "INTERNAL"
)

// Error is a typed domain error. Two errors match under errors.Is when their
// codes are equal, so a sentinel keeps its identity after WithDetail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e whose message carries extra context.
func (e *Error) WithDetail(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = e.Message + ": " + fmt.Sprintf(format, args...)
	return &cp
}

// HTTPStatus maps the error kind onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindState:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error { return New(KindValidation, code, message) }
func Conflict(code, message string) *Error   { return New(KindConflict, code, message) }
func State(code, message string) *Error      { return New(KindState, code, message) }
func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }

// Internal wraps an infrastructure failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Status returns the HTTP status and client-facing message for err.
// Errors outside the taxonomy are reported as 500 without their text.
func Status(err error) (int, string) {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind == KindInternal {
			return http.StatusInternalServerError, ae.Message
		}
		return ae.HTTPStatus(), ae.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
