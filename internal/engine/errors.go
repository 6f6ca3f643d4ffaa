package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected by the sweep engine or scope.
//
// Runtime errors include:
//   - Invalid configuration: a Config value the sweep cannot work with
//   - Scope closed: a push or run after teardown
//   - Scope running: a second Run on the same scope
//   - Render failed: the renderer rejected a draw instruction
//
// Overflow is NOT an error; it is a frame outcome (ir.OutcomeOverflow).
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending config field (for config errors).
	Field string

	// Seq identifies the frame being drawn (for render errors).
	Seq int64

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidConfig indicates a rejected configuration value.
	ErrCodeInvalidConfig RuntimeErrorCode = "INVALID_CONFIG"

	// ErrCodeScopeClosed indicates the scope has been torn down.
	ErrCodeScopeClosed RuntimeErrorCode = "SCOPE_CLOSED"

	// ErrCodeScopeRunning indicates Run was called twice.
	ErrCodeScopeRunning RuntimeErrorCode = "SCOPE_RUNNING"

	// ErrCodeRenderFailed indicates the renderer returned an error.
	ErrCodeRenderFailed RuntimeErrorCode = "RENDER_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.Seq != 0 {
		msg = fmt.Sprintf("%s (seq=%d)", msg, e.Seq)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	return hasCode(err, ErrCodeInvalidConfig)
}

// IsClosedError returns true if the error reports a torn-down scope.
func IsClosedError(err error) bool {
	return hasCode(err, ErrCodeScopeClosed)
}

// IsRenderError returns true if the error came from the renderer.
func IsRenderError(err error) bool {
	return hasCode(err, ErrCodeRenderFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewConfigError creates a RuntimeError for an invalid config field.
func NewConfigError(field, message string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidConfig,
		Message: message,
		Field:   field,
	}
}

// NewRenderError wraps a renderer failure for the given frame.
func NewRenderError(seq int64, op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRenderFailed,
		Message: op + " failed",
		Seq:     seq,
		Err:     err,
	}
}

// ErrScopeClosed is returned by operations on a torn-down scope.
var ErrScopeClosed = &RuntimeError{
	Code:    ErrCodeScopeClosed,
	Message: "scope has been closed",
}
