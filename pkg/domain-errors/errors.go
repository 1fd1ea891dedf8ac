// Package domainerrors defines coded errors shared by every service layer.
//
// Services return *Error values so transports can map them to status codes
// without inspecting messages. Stores return sentinel errors (see
// pkg/platform/sentinel) that services translate into codes here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeValidation covers malformed identifiers, out-of-range durations and
	// invalid multipliers.
	CodeValidation Code = "validation_error"
	// CodeUnavailable means the identifier is actively leased, or there is no
	// lease to act on.
	CodeUnavailable Code = "unavailable"
	// CodePaymentRequired means the supplied payment does not cover the fee.
	CodePaymentRequired Code = "payment_required"
	// CodeUnauthorized covers non-owner mutator calls and proof signer mismatches.
	CodeUnauthorized Code = "unauthorized"
	// CodeExpired means a signed response is past its embedded expiry.
	CodeExpired Code = "expired"
	// CodeRefundFailed is fatal: the enclosing operation is aborted.
	CodeRefundFailed Code = "refund_failed"

	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeForbidden          Code = "forbidden"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error. Cause is optional.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
// Returns nil when err is nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Cause: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal for
// errors that carry no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Cause
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// Message returns the client-safe message of the outermost coded error.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
