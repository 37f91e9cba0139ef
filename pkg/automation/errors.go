// Package automation evaluates pipeline automations against deal changes.
package automation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStage indicates an action references a stage absent from the pipeline.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrCycleDetected indicates the automation chain for one event exceeded the hop bound.
	ErrCycleDetected = errors.New("automation cycle detected")

	// ErrStoreUnavailable indicates a deal or pipeline store read/write failed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSideEffectFailed indicates a task, email or notification dispatch failed.
	ErrSideEffectFailed = errors.New("side effect failed")

	// ErrMissingDealID indicates an event that does not name a deal.
	ErrMissingDealID = errors.New("event has no deal id")

	// ErrTemplate indicates an action text could not be rendered.
	ErrTemplate = errors.New("action template failed")
)

// ActionError records the failure of a single action of an automation.
type ActionError struct {
	RuleID      string
	ActionIndex int
	ActionType  string
	Err         error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s) of automation %s failed: %v", e.ActionIndex, e.ActionType, e.RuleID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func (e *ActionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// StoreError wraps a store failure with the operation and deal it concerned.
type StoreError struct {
	Op     string
	DealID string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed for deal %s: %v", e.Op, e.DealID, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func newStoreError(op, dealID string, err error) *StoreError {
	return &StoreError{Op: op, DealID: dealID, Err: err}
}

// IsInvalidStage checks if an error indicates an action referenced an unknown stage.
func IsInvalidStage(err error) bool {
	return errors.Is(err, ErrInvalidStage)
}

// IsCycleDetected checks if an error indicates the re-entrancy bound was exceeded.
func IsCycleDetected(err error) bool {
	return errors.Is(err, ErrCycleDetected)
}

// IsStoreUnavailable checks if an error indicates a store failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsSideEffectFailed checks if an error indicates a side-effect dispatch failure.
func IsSideEffectFailed(err error) bool {
	return errors.Is(err, ErrSideEffectFailed)
}
