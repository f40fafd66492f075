package dispatch

import (
	"errors"
	"fmt"
)

// ErrTreeFrozen is returned when a child is attached to a node whose tree
// has already started dispatching.
var ErrTreeFrozen = errors.New("dispatch: tree is frozen")

// StepErrorCode categorizes transform failures.
type StepErrorCode string

const (
	// ErrCodeReducerFailed indicates an async reducer returned an error.
	ErrCodeReducerFailed StepErrorCode = "REDUCER_FAILED"

	// ErrCodeEffectFailed indicates an async effect returned an error.
	ErrCodeEffectFailed StepErrorCode = "EFFECT_FAILED"

	// ErrCodeSetterFailed indicates a projection setter returned an error.
	ErrCodeSetterFailed StepErrorCode = "SETTER_FAILED"

	// ErrCodeStateType indicates an erased state did not hold the node's type.
	ErrCodeStateType StepErrorCode = "STATE_TYPE"
)

// StepError is a transform failure raised while folding an action.
// It aborts the remainder of that fold.
type StepError struct {
	// Code identifies the failing step kind.
	Code StepErrorCode

	// Node is the path of the failing node, e.g. "root/items".
	Node string

	// Tag is the tag of the action being folded.
	Tag string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: node=%s action=%s: %v", e.Code, e.Node, e.Tag, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}

// IsStepError reports whether err is a StepError with the given code.
// Uses errors.As to handle wrapped errors.
func IsStepError(err error, code StepErrorCode) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
