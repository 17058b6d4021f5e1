// Package domainerrors provides code-carrying errors for domain and service
// layers. Stores return sentinel errors for infrastructure facts; services
// translate those into coded errors that transport layers can map to stable
// responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable and safe to expose to
// callers; messages are human-readable detail.
type Code string

const (
	// CodeInvalidInput marks caller-supplied data that fails validation
	// (empty fields, zero addresses, malformed fingerprints, zero limits).
	CodeInvalidInput Code = "invalid_input"

	// CodeUnauthorized marks a caller identity that is not permitted to
	// perform the operation.
	CodeUnauthorized Code = "unauthorized"

	// CodeNotFound marks a referenced entity that does not exist
	// (unregistered issuer, unknown certificate).
	CodeNotFound Code = "not_found"

	// CodeConflict marks an operation that contradicts current state
	// (duplicate registration or fingerprint, already active/inactive,
	// already revoked).
	CodeConflict Code = "conflict"

	// CodeOutOfRange marks a pagination start index past the end of the
	// collection.
	CodeOutOfRange Code = "out_of_range"

	// CodeInvariantViolation marks a state transition the aggregate
	// forbids. Services usually translate it into CodeConflict.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeTimeout marks an aborted transactional boundary.
	CodeTimeout Code = "timeout"

	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It may wrap an underlying cause.
type Error struct {
	Code    Code
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

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err, or a generic message when err
// carries none. Use at trust boundaries to avoid leaking internals.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
