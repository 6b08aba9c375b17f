package api

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures. The kind decides whether a
// failure terminates the turn or is converted into a user-visible result.
type ErrorKind string

const (
	// ErrorKindValidation covers empty input and missing credentials.
	// Surfaced immediately, never retried.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindProvisioningTransient covers timeouts and connectivity
	// failures while setting up a sandbox. Retried with back-off.
	ErrorKindProvisioningTransient ErrorKind = "provisioning_transient"

	// ErrorKindProvisioningFatal covers everything else during setup,
	// e.g. rejected credentials. Surfaced immediately, never retried.
	ErrorKindProvisioningFatal ErrorKind = "provisioning_fatal"

	// ErrorKindExecutionTimeout marks a wall-clock timeout during
	// execution. Terminal for the call; the sandbox state is unknown.
	ErrorKindExecutionTimeout ErrorKind = "execution_timeout"

	// ErrorKindGenerationExhausted means every synthesis tier failed.
	ErrorKindGenerationExhausted ErrorKind = "generation_exhausted"

	// ErrorKindNotFound marks a missing stored turn.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindUnauthorized marks missing or rejected credentials.
	ErrorKindUnauthorized ErrorKind = "unauthorized"

	// ErrorKindRateLimited marks a request rejected by rate limiting.
	ErrorKindRateLimited ErrorKind = "rate_limited"

	// ErrorKindInternal covers unexpected server-side failures.
	ErrorKindInternal ErrorKind = "internal"
)

// PipelineError is a categorized pipeline failure with an optional
// remediation hint list for user-visible rendering.
type PipelineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Hints carries short remediation suggestions, never a stack trace.
	Hints []string `json:"hints,omitempty"`

	// Err is the wrapped cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation failure.
func NewValidationError(message string) *PipelineError {
	return &PipelineError{Kind: ErrorKindValidation, Message: message}
}

// NewProvisioningTransientError creates a retryable provisioning failure.
func NewProvisioningTransientError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrorKindProvisioningTransient, Message: message, Err: cause}
}

// NewProvisioningFatalError creates a non-retryable provisioning failure.
func NewProvisioningFatalError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrorKindProvisioningFatal, Message: message, Err: cause}
}

// NewExecutionTimeoutError creates a terminal execution timeout.
func NewExecutionTimeoutError(message string) *PipelineError {
	return &PipelineError{Kind: ErrorKindExecutionTimeout, Message: message}
}

// NewGenerationExhaustedError creates the terminal synthesis failure.
// causes names each failed tier.
func NewGenerationExhaustedError(causes []string) *PipelineError {
	return &PipelineError{
		Kind:    ErrorKindGenerationExhausted,
		Message: "unable to generate code",
		Hints:   causes,
	}
}

// NewNotFoundError creates a missing-resource error.
func NewNotFoundError(message string) *PipelineError {
	return &PipelineError{Kind: ErrorKindNotFound, Message: message}
}

// NewInternalError creates an unexpected internal failure.
func NewInternalError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrorKindInternal, Message: message, Err: cause}
}

// KindOf returns the ErrorKind of err, or ErrorKindInternal when err is
// not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrorKindInternal
}

// TerminatesTurn reports whether err is allowed to terminate a turn with
// an exception. Everything else is converted into a bounded text result.
func TerminatesTurn(err error) bool {
	switch KindOf(err) {
	case ErrorKindValidation, ErrorKindProvisioningFatal, ErrorKindGenerationExhausted:
		return true
	}
	return false
}
