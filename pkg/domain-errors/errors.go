// Package domainerrors defines the coded error taxonomy shared by all
// custos services. Services construct these at their boundaries; transport
// layers translate them to wire responses without inspecting internals.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies an error for callers. Codes are part of the API contract:
// they determine retryability and the HTTP status a transport maps to.
type Code string

const (
	// CodeValidation marks malformed or missing input. Never retried; the
	// caller must fix the request.
	CodeValidation Code = "validation"
	// CodeNotFound marks a reference to a batch or partner that does not
	// exist.
	CodeNotFound Code = "not_found"
	// CodeUnauthorized marks an actor that does not satisfy the operation's
	// required-actor rule. Surfaced verbatim, never downgraded.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvalidState marks an operation not permitted by the batch's
	// current status, e.g. mutating a completed batch.
	CodeInvalidState Code = "invalid_state"
	// CodeConflict marks a lost concurrency race. Callers may retry after
	// re-reading state.
	CodeConflict Code = "conflict"
	// CodeUnavailable marks an unreachable external collaborator (ledger or
	// content store). Retryable with backoff.
	CodeUnavailable Code = "unavailable"
	// CodeInvariantViolation marks a broken model invariant detected at
	// construction time. Services convert these to CodeValidation before
	// they reach callers.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error carries a taxonomy code plus a human-readable reason.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// GetCode extracts the code from err, falling back to CodeInternal for
// uncoded errors.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may usefully retry the operation.
// Conflicts require a re-read first; unavailable collaborators want backoff.
func Retryable(err error) bool {
	switch GetCode(err) {
	case CodeConflict, CodeUnavailable:
		return true
	default:
		return false
	}
}

// ToHTTPStatus maps a taxonomy code to the HTTP status transports respond
// with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeInvalidState:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
