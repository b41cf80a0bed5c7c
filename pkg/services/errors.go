// Package services provides the application layer between the HTTP API and
// the engine, plus standardized error types for service operations.
package services

import (
	"errors"
	"fmt"

	"github.com/publion/publion/pkg/engine"
	"github.com/publion/publion/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest  = errors.New("invalid request")
	ErrURLRequired     = errors.New("url is required")
	ErrUserIDRequired  = errors.New("user id is required")
	ErrInvalidAction   = errors.New("invalid review action")
	ErrInvalidProvider = errors.New("invalid provider")

	// Not found (404).
	ErrExecutionNotFound  = persistence.ErrExecutionNotFound
	ErrConnectionNotFound = persistence.ErrConnectionNotFound

	// Business logic conflicts (409 Conflict).
	ErrExecutionNotSuspended = errors.New("execution is not awaiting input")
	ErrResumeInFlight        = errors.New("a resume for this execution is already being processed")
	ErrExecutionNotResumable = errors.New("execution state is too incomplete to resume")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrURLRequired) ||
		errors.Is(err, ErrUserIDRequired) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInvalidProvider)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrConnectionNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrExecutionNotSuspended) ||
		errors.Is(err, ErrResumeInFlight) ||
		errors.Is(err, ErrExecutionNotResumable)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// mapEngineError translates engine sentinels into their service equivalents.
func mapEngineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrResumeInFlight):
		return ErrResumeInFlight
	case errors.Is(err, engine.ErrNotSuspended):
		return ErrExecutionNotSuspended
	case errors.Is(err, engine.ErrNotResumable):
		return ErrExecutionNotResumable
	default:
		return err
	}
}
