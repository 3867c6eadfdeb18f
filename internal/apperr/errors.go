// Package apperr defines the error kinds surfaced by tracker operations.
//
// Every failure leaving the tracker is an *Error with one of three codes.
// Transport layers map codes to status values (HTTP 404/400/503, CLI exit
// codes) without inspecting messages.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sprintledger/internal/record"
)

// Code categorizes tracker errors.
type Code string

const (
	// CodeNotFound indicates the operation target does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeValidation indicates malformed input at the boundary
	// (bad date, bad number, unknown field, dangling reference).
	CodeValidation Code = "VALIDATION"

	// CodeStoreUnavailable indicates the store could not complete an operation.
	// When returned after a primary write, that write has already committed.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// Error is a structured tracker error.
type Error struct {
	Code    Code
	Message string

	// Kind and ID identify the affected entity when known.
	Kind string
	ID   string

	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Kind != "" && e.ID != "" {
		msg = fmt.Sprintf("%s (%s=%s)", msg, e.Kind, e.ID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: CodeNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// NotFound creates a NOT_FOUND error for kind/id.
func NotFound(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: kind + " not found",
		Kind:    kind,
		ID:      id,
	}
}

// Validation creates a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationCause wraps a decoding failure as a VALIDATION error.
func ValidationCause(message string, cause error) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: message,
		Cause:   cause,
	}
}

// StoreUnavailable wraps a store failure.
func StoreUnavailable(op string, cause error) *Error {
	return &Error{
		Code:    CodeStoreUnavailable,
		Message: op + " failed",
		Cause:   cause,
	}
}

// FromStore maps a store error for kind/id. record.ErrNotFound becomes
// NOT_FOUND, an existing *Error passes through, anything else becomes
// STORE_UNAVAILABLE.
func FromStore(op, kind, id string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, record.ErrNotFound) {
		nf := NotFound(kind, id)
		nf.Cause = err
		return nf
	}
	if errors.Is(err, record.ErrInvalidField) {
		return ValidationCause(op+": invalid field", err)
	}
	su := StoreUnavailable(op, err)
	su.Kind = kind
	su.ID = id
	return su
}

// CodeOf returns the code of the first *Error in the chain, or "" if none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsValidation reports whether err carries CodeValidation.
func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation
}

// IsStoreUnavailable reports whether err carries CodeStoreUnavailable.
// Context deadline and cancellation count as unavailability.
func IsStoreUnavailable(err error) bool {
	if CodeOf(err) == CodeStoreUnavailable {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
