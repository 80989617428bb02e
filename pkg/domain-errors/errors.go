// Package domainerrors provides code-classified errors shared across the
// engine. Services attach a Code at the point of failure; transports map the
// Code to a wire status without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for callers and the HTTP layer.
type Code string

const (
	// CodeNotFound marks lookups of listings or records that do not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidInput marks rejected caller input: zero edition size, an
	// underpayment, a bid that is not strictly higher, a self-bid, or an
	// escrow deposit the bidder cannot fund.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized marks callers lacking the required operator role.
	CodeUnauthorized Code = "unauthorized"
	// CodeConflict marks state transitions that lost the race: auction
	// already settled, edition sold out, expiry not reached.
	CodeConflict Code = "conflict"
	// CodeDependency marks failures propagated from a collaborator: the
	// registry, the bid oracle, or the exchange.
	CodeDependency Code = "dependency_failure"
	// CodeInternal marks unexpected failures inside the engine.
	CodeInternal Code = "internal"
)

// Error is the concrete domain error carrying a Code and optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the classification of err, defaulting to CodeInternal for
// errors that did not originate in this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// Is is a readability alias for HasCode at call sites that read like
// errors.Is.
func Is(err error, code Code) bool { return HasCode(err, code) }

// ToHTTPStatus maps a code onto the HTTP status the transport should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
