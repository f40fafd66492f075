package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/statetree/internal/ir"
)

// TraceSnapshot captures the observable outcome of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName  string       `json:"scenario_name"`
	FinalState    ir.Object    `json:"final_state"`
	Notifications int          `json:"notifications"`
	Trace         []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Empty optional fields are left out.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type":   event.Type,
			"seq":    event.Seq,
			"action": event.Action,
		}
		if event.ID != "" {
			eventMap["id"] = event.ID
		}
		if len(event.Args) > 0 {
			eventMap["args"] = event.Args
		}
		if event.Node != "" {
			eventMap["node"] = event.Node
		}
		if event.State != nil {
			eventMap["state"] = event.State
		}
		if len(event.Errors) > 0 {
			errs := make([]any, len(event.Errors))
			for j, e := range event.Errors {
				errs[j] = e
			}
			eventMap["errors"] = errs
		}
		if event.Failure != "" {
			eventMap["failure"] = event.Failure
		}
		traceList[i] = eventMap
	}

	finalState := s.FinalState
	if finalState == nil {
		finalState = ir.Object{}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"final_state":   finalState,
		"notifications": s.Notifications,
		"trace":         traceList,
	}
}

// Marshal returns the canonical JSON form of the snapshot.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// Snapshot builds the snapshot of a result.
func Snapshot(scenarioName string, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName:  scenarioName,
		FinalState:    result.State,
		Notifications: result.Notifications,
		Trace:         result.Trace,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
