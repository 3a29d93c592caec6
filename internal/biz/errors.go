package biz

import (
	"errors"
	"fmt"
	"time"

	"LabSentry/internal/model"
)

// CircuitOpenError is returned when an open breaker fast-fails a call
// without invoking the wrapped operation. It clears on its own once the
// breaker timeout elapses and a probe succeeds.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry in %s", e.Name, e.RetryAfter.Round(time.Second))
}

// IsCircuitOpen reports whether err is a circuit breaker fast-fail.
func IsCircuitOpen(err error) bool {
	var e *CircuitOpenError
	return errors.As(err, &e)
}

// ApprovalNotFoundError is returned when ApproveAction finds no pending
// approval for the given alert id, including the case where a concurrent
// approve already claimed it.
type ApprovalNotFoundError struct {
	AlertID string
}

// Error implements the error interface.
func (e *ApprovalNotFoundError) Error() string {
	return fmt.Sprintf("no pending approval for alert %q", e.AlertID)
}

// IsApprovalNotFound reports whether err is a missing-approval failure.
func IsApprovalNotFound(err error) bool {
	var e *ApprovalNotFoundError
	return errors.As(err, &e)
}

// ExecutionError wraps the failure of a remediation action's executor. It is
// persisted to the audit trail and then swallowed by the engine.
type ExecutionError struct {
	Action model.ActionType
	Err    error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("remediation action %s failed: %v", e.Action, e.Err)
}

// Unwrap returns the underlying executor error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// StepFailure marks one failed step inside a shutdown sequence. It is
// recorded in the sequence audit row and never aborts the remaining steps.
type StepFailure struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *StepFailure) Error() string {
	return fmt.Sprintf("shutdown step %q failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying step error.
func (e *StepFailure) Unwrap() error {
	return e.Err
}
