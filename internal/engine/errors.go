package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents a failure raised by the store itself rather than
// by a reducer, effect or setter (those are dispatch.StepError).
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ActionID identifies the affected action, when there is one.
	ActionID string

	// Tag is the tag of the affected action, when there is one.
	Tag string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStepPanic indicates a reducer, effect or setter panicked.
	ErrCodeStepPanic RuntimeErrorCode = "STEP_PANIC"

	// ErrCodeStoreClosed indicates a submission after Close.
	ErrCodeStoreClosed RuntimeErrorCode = "STORE_CLOSED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.ActionID != "" {
		return fmt.Sprintf("%s: %s (action=%s, tag=%s)", e.Code, e.Message, e.ActionID, e.Tag)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPanicError reports whether err is a recovered step panic.
// Uses errors.As to handle wrapped errors.
func IsPanicError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStepPanic
	}
	return false
}

// IsClosedError reports whether err was caused by submitting to a closed store.
func IsClosedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStoreClosed
	}
	return false
}

// NewPanicError creates a RuntimeError for a recovered panic.
func NewPanicError(actionID, tag string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeStepPanic,
		Message:  fmt.Sprintf("panic during fold: %v", recovered),
		ActionID: actionID,
		Tag:      tag,
	}
}

// NewClosedError creates a RuntimeError for a submission after Close.
func NewClosedError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStoreClosed,
		Message: "store is closed",
	}
}

// ValidationErrors lists the validation errors reported while folding
// the actions of one submission.
type ValidationErrors []error

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(v), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	return v
}
