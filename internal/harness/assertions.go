package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/statetree/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			switch event.Type {
			case EventFold:
				fmt.Fprintf(&buf, "  [%d] seq=%d fold %s\n", i+1, event.Seq, describe(event.Action, event.Args))
			case EventEffect:
				fmt.Fprintf(&buf, "  [%d] seq=%d effect %s at %s\n", i+1, event.Seq, event.Action, event.Node)
			}
		}
	}

	return buf.String()
}

// assertFinalState checks the settled state with subset semantics: only
// the keys in Expect are compared, recursively.
func assertFinalState(result *Result, assertion Assertion) error {
	want, err := ir.FromNativeObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: expect: %w", err)
	}

	if ir.Contains(result.State, want) {
		return nil
	}

	return &AssertionError{
		Type:     AssertFinalState,
		Expected: canonicalText(want),
		Actual:   canonicalText(result.State),
	}
}

// assertTraceOrder checks that fold events of the listed actions appear in
// the given order. Intervening actions are allowed; each listed action
// consumes the next matching fold after the previous one.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Actions {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if ev.Type == EventFold && ev.Action == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("folds in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("no fold of %s after the previous match", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks how many times an action was folded.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == EventFold && ev.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d folds of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d folds", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertEffectCount checks how many times effects of a node ran, optionally
// restricted to one action.
func assertEffectCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type != EventEffect || ev.Node != assertion.Node {
			continue
		}
		if assertion.Action != "" && ev.Action != assertion.Action {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := assertion.Node
		if assertion.Action != "" {
			what += " on " + assertion.Action
		}
		return &AssertionError{
			Type:     AssertEffectCount,
			Expected: fmt.Sprintf("%d effect calls at %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d effect calls", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertCount(kind string, got, want int) error {
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertEffectCount:
			err = assertEffectCount(result.Trace, assertion)
		case AssertNotificationCount:
			err = assertCount(assertion.Type, result.Notifications, assertion.Count)
		case AssertErrorCount:
			err = assertCount(assertion.Type, result.ValidationErrors, assertion.Count)
		case AssertFailureCount:
			err = assertCount(assertion.Type, result.Failures, assertion.Count)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func canonicalText(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
