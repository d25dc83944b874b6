// Package errors provides error types and handling for bootstack.
// Every provisioning failure carries the stage that produced it and a
// stable code for programmatic handling.
package errors

import (
	"errors"
	"fmt"
)

// StageError represents a provisioning failure attributed to a workflow stage.
type StageError struct {
	// Stage is the workflow stage that failed, e.g. "network discovery"
	Stage string
	// Code is a stable error code string for programmatic handling
	Code string
	// Message is a user-friendly error message
	Message string
	// Cause is the underlying error (for error wrapping)
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match StageErrors by code.
func (e *StageError) Is(target error) bool {
	if t, ok := target.(*StageError); ok {
		return e.Code != "" && e.Code == t.Code
	}
	return false
}

// Predefined error codes, one per failure kind in the workflow.
const (
	ErrCodeAuthFailed           = "AUTH_FAILED"
	ErrCodeSecretMissing        = "SECRET_MISSING"
	ErrCodeInsufficientTopology = "INSUFFICIENT_TOPOLOGY"
	ErrCodeStackApplyFailed     = "STACK_APPLY_FAILED"
	ErrCodeOutputMissing        = "OUTPUT_MISSING"
	ErrCodeTriggerFailed        = "TRIGGER_FAILED"
	ErrCodeTimeout              = "TIMEOUT"
)

// Stage names as reported to the operator.
const (
	StageCredentials = "credential check"
	StageSecret      = "secret lookup"
	StageNetwork     = "network discovery"
	StageStack       = "stack apply"
	StageOutputs     = "output resolution"
	StagePipeline    = "pipeline trigger"
)

func newStageError(stage, code, message string, cause error) *StageError {
	return &StageError{
		Stage:   stage,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrAuthFailed reports that no usable identity could be established.
func ErrAuthFailed(message string, cause error) *StageError {
	return newStageError(StageCredentials, ErrCodeAuthFailed, message, cause)
}

// ErrSecretMissing reports that a required secret is absent after remediation.
func ErrSecretMissing(message string, cause error) *StageError {
	return newStageError(StageSecret, ErrCodeSecretMissing, message, cause)
}

// ErrInsufficientTopology reports that the resolved network cannot host the stack.
func ErrInsufficientTopology(message string, cause error) *StageError {
	return newStageError(StageNetwork, ErrCodeInsufficientTopology, message, cause)
}

// ErrStackApplyFailed reports a failed or rejected stack application.
func ErrStackApplyFailed(message string, cause error) *StageError {
	return newStageError(StageStack, ErrCodeStackApplyFailed, message, cause)
}

// ErrOutputMissing reports a requested stack output that is not present.
func ErrOutputMissing(message string, cause error) *StageError {
	return newStageError(StageOutputs, ErrCodeOutputMissing, message, cause)
}

// ErrTriggerFailed reports a rejected pipeline execution request.
func ErrTriggerFailed(message string, cause error) *StageError {
	return newStageError(StagePipeline, ErrCodeTriggerFailed, message, cause)
}

// ErrTimeout reports that waiting for a terminal provider state exceeded the bound.
func ErrTimeout(stage, message string, cause error) *StageError {
	return newStageError(stage, ErrCodeTimeout, message, cause)
}

// GetErrorCode extracts the error code from an error.
// Returns empty string if the error is not a StageError.
func GetErrorCode(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Code
	}
	return ""
}

// GetStage extracts the failing stage from an error.
// Returns empty string if the error is not a StageError.
func GetStage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// GetErrorDetails extracts detailed error information including the underlying cause.
// Returns the underlying error message if available, otherwise returns the main message.
func GetErrorDetails(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		if stageErr.Cause != nil {
			return stageErr.Cause.Error()
		}
		return stageErr.Message
	}
	return err.Error()
}
