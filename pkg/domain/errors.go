package domain

import (
	"errors"
	"fmt"
)

// Base errors used for classifying domain failures.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable")
)

// DomainError is a typed business error carried across layers. Err holds the
// base classification, Code a stable machine-readable identifier.
type DomainError struct {
	Err     error
	Code    string
	Message string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the base error for errors.Is checks.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a not-found error for an entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewInvalidStateError creates an error for an illegal state transition.
func NewInvalidStateError(current, target string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Code:    "INVALID_STATE",
		Message: fmt.Sprintf("cannot transition from %s to %s", current, target),
	}
}

// NewStateConflictError creates an error for an operation attempted against
// an entity in the wrong state, with a caller-specific code.
func NewStateConflictError(code, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates an error for a concurrent-modification conflict.
func NewConflictError(message string) *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewUnprocessableError creates an error for a request that is well-formed
// but cannot be satisfied under current business rules.
func NewUnprocessableError(code, message string) *DomainError {
	return &DomainError{
		Err:     ErrUnprocessable,
		Code:    code,
		Message: message,
	}
}
