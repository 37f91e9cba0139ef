// Package services provides the deal, pipeline and task operations used by
// the HTTP API, plus standardized error types for them.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidDeal     = errors.New("invalid deal")
	ErrInvalidPipeline = errors.New("invalid pipeline")
	ErrUnknownStage    = errors.New("stage is not part of the pipeline")
	ErrEmptyAccountID  = errors.New("account ID cannot be empty")

	// Business Logic Conflicts (409 Conflict).
	ErrTaskAlreadyCompleted = errors.New("task already completed")
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
		errors.Is(err, ErrInvalidDeal) ||
		errors.Is(err, ErrInvalidPipeline) ||
		errors.Is(err, ErrUnknownStage) ||
		errors.Is(err, ErrEmptyAccountID)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTaskAlreadyCompleted)
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
