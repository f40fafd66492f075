package harness

import (
	"github.com/roach88/statetree/internal/ir"
)

// Trace event types.
const (
	EventFold   = "fold"
	EventEffect = "effect"
)

// TraceEvent is one entry of a scenario trace.
//
// An effect event is appended when an effect runs, with the sub-state the
// effect received. A fold event is appended once the whole action has been
// folded, with the root state after it. Effect events therefore precede
// the fold event of their action and share its seq.
type TraceEvent struct {
	Type   string    `json:"type"` // "fold" or "effect"
	Seq    int64     `json:"seq"`
	ID     string    `json:"id,omitempty"`
	Action string    `json:"action"`
	Args   ir.Object `json:"args,omitempty"`
	Node   string    `json:"node,omitempty"`
	State  ir.Object `json:"state,omitempty"`

	// Errors are validation error messages (fold events only).
	Errors []string `json:"errors,omitempty"`

	// Failure is the transform failure message (fold events only).
	Failure string `json:"failure,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every effect call and fold in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the settled root state after the last step.
	State ir.Object `json:"state"`

	// Notifications counts subscriber calls, excluding the replay on
	// subscribe.
	Notifications int `json:"notifications"`

	// ValidationErrors counts validation errors over all folds.
	ValidationErrors int `json:"validation_errors"`

	// Failures counts folds that ended in a transform failure.
	Failures int `json:"failures"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  ir.Object{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Folds returns the fold events of the trace.
func (r *Result) Folds() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventFold {
			out = append(out, ev)
		}
	}
	return out
}
