// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDealNotFound indicates a deal was not found by the given identifier.
	ErrDealNotFound = errors.New("deal not found")

	// ErrPipelineNotFound indicates no pipeline exists for the account and identifier.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrTaskNotFound indicates a task was not found by the given identifier.
	ErrTaskNotFound = errors.New("task not found")
)

// DealError wraps deal-related errors with additional context.
type DealError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	DealID string // Deal ID if applicable
	Err    error  // Underlying error
}

func (e *DealError) Error() string {
	return fmt.Sprintf("%s operation failed for deal %s: %v", e.Op, e.DealID, e.Err)
}

func (e *DealError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for deal errors.
func (e *DealError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDealError creates a new deal error with context.
func NewDealError(op, dealID string, err error) *DealError {
	return &DealError{Op: op, DealID: dealID, Err: err}
}

// PipelineError wraps pipeline-related errors with additional context.
type PipelineError struct {
	Op         string
	AccountID  string
	PipelineID string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s operation failed for pipeline %s of account %s: %v", e.Op, e.PipelineID, e.AccountID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPipelineError creates a new pipeline error with context.
func NewPipelineError(op, accountID, pipelineID string, err error) *PipelineError {
	return &PipelineError{Op: op, AccountID: accountID, PipelineID: pipelineID, Err: err}
}

// IsDealNotFound checks if an error indicates a deal was not found.
func IsDealNotFound(err error) bool {
	return errors.Is(err, ErrDealNotFound)
}

// IsPipelineNotFound checks if an error indicates a pipeline was not found.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsTaskNotFound checks if an error indicates a task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}
