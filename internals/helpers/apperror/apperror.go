// Package apperror holds the error taxonomy shared by the scholarship services.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error code.
type Kind string

const (
	KindInvalidStateTransition      Kind = "INVALID_STATE_TRANSITION"
	KindStaleState                  Kind = "STALE_STATE"
	KindInsufficientFunds           Kind = "INSUFFICIENT_FUNDS"
	KindValidation                  Kind = "VALIDATION_ERROR"
	KindDownstreamSideEffectFailure Kind = "DOWNSTREAM_SIDE_EFFECT_FAILURE"

	KindNotFound     Kind = "NOT_FOUND"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindConflict     Kind = "CONFLICT"
	KindInternal     Kind = "INTERNAL"
)

// Error is the domain error type. Operation and CurrentStatus give the UI
// enough context to explain why a request was refused.
type Error struct {
	Kind          Kind
	Message       string
	Operation     string
	CurrentStatus string
	Fields        map[string]string
	Meta          map[string]any
	Cause         error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by Kind so callers can write errors.Is(err, apperror.ErrStaleState).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrStaleState             = &Error{Kind: KindStaleState}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrDownstream             = &Error{Kind: KindDownstreamSideEffectFailure}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrConflict               = &Error{Kind: KindConflict}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidTransition(operation, current string) *Error {
	return &Error{
		Kind:          KindInvalidStateTransition,
		Message:       fmt.Sprintf("operation %q is not allowed while status is %q", operation, current),
		Operation:     operation,
		CurrentStatus: current,
	}
}

func StaleState(operation, expected, current string) *Error {
	return &Error{
		Kind:          KindStaleState,
		Message:       fmt.Sprintf("expected status %q but application is %q", expected, current),
		Operation:     operation,
		CurrentStatus: current,
		Meta:          map[string]any{"expected_status": expected},
	}
}

func InsufficientFunds(requested, available int64, budget string) *Error {
	return &Error{
		Kind:    KindInsufficientFunds,
		Message: fmt.Sprintf("requested %d exceeds available balance %d", requested, available),
		Meta: map[string]any{
			"requested": requested,
			"available": available,
			"budget_id": budget,
		},
	}
}

// Validation builds a validation error with field-level detail.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Field is a shorthand for a single-field validation error.
func Field(field, problem string) *Error {
	return Validation(fmt.Sprintf("%s %s", field, problem), map[string]string{field: problem})
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Downstream(step string, cause error) *Error {
	return &Error{
		Kind:    KindDownstreamSideEffectFailure,
		Message: step + " failed",
		Meta:    map[string]any{"step": step},
		Cause:   cause,
	}
}

// WithOperation annotates the error with the attempted operation and status.
func (e *Error) WithOperation(operation, current string) *Error {
	e.Operation = operation
	e.CurrentStatus = current
	return e
}

// KindOf returns the Kind carried by err, KindInternal when err is foreign.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As is errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
