package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeMissingMetadata   = "MISSING_METADATA"
	ErrCodeMalformedDiagram  = "MALFORMED_DIAGRAM"
	ErrCodeUnsupportedBranch = "UNSUPPORTED_BRANCH_STRUCTURE"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeParse             = "PARSE_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeEvaluation        = "EVALUATION_ERROR"
	ErrCodeStore             = "STORE_ERROR"
)

// WorkflowError is the structured error type returned by every read,
// decode, store and evaluation operation.
type WorkflowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	TaskID  string         `json:"task_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *WorkflowError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("[%s] task %s: %s", e.Code, e.TaskID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *WorkflowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new WorkflowError.
func NewError(code, message string) *WorkflowError {
	return &WorkflowError{Code: code, Message: message}
}

// NewErrorf creates a new WorkflowError with a formatted message.
func NewErrorf(code, format string, args ...any) *WorkflowError {
	return &WorkflowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithTask attaches the offending task ID to the error.
func (e *WorkflowError) WithTask(taskID string) *WorkflowError {
	e.TaskID = taskID
	return e
}

// WithCause attaches an underlying cause.
func (e *WorkflowError) WithCause(err error) *WorkflowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *WorkflowError) WithDetails(details map[string]any) *WorkflowError {
	e.Details = details
	return e
}

// Code returns the code of the first WorkflowError in err's chain, or "".
func Code(err error) string {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Code
	}
	return ""
}

// IsCode reports whether err's chain holds a WorkflowError with the given code.
func IsCode(err error, code string) bool {
	return Code(err) == code
}
