package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a state-tree test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the root state before the first step.
	Initial map[string]any `yaml:"initial"`

	// Layer holds the root node's schema, reducers, effects and sub-states.
	Layer `yaml:",inline"`

	// Steps are submitted in order; each step is one batch.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`

	// BatchPrefix prefixes the deterministic batch IDs. Default "step".
	BatchPrefix string `yaml:"batch_prefix,omitempty"`

	// dir is the directory schema_file paths are resolved against.
	dir string
}

// Layer is the behaviour of one node of the dispatcher tree.
type Layer struct {
	// Schema is inline CUE validating this node's state.
	Schema string `yaml:"schema,omitempty"`

	// SchemaFile is a .cue file validating this node's state, relative to
	// the scenario file.
	SchemaFile string `yaml:"schema_file,omitempty"`

	Reducers  []ReducerDef `yaml:"reducers,omitempty"`
	Effects   []EffectDef  `yaml:"effects,omitempty"`
	Substates []Substate   `yaml:"substates,omitempty"`
}

// Substate attaches a child node addressing one entry of a collection.
type Substate struct {
	// Name names the node; its path is parent/name.
	Name string `yaml:"name"`

	// Path is the dotted path of the collection inside the parent state.
	// Empty means the parent state itself is the collection.
	Path string `yaml:"path"`

	// Key is the action argument holding the entry key.
	Key string `yaml:"key"`

	Layer `yaml:",inline"`
}

// ReducerDef is a declarative reducer.
type ReducerDef struct {
	// On is the action type this reducer handles.
	On string `yaml:"on"`

	// Set maps dotted paths to new values.
	Set map[string]any `yaml:"set,omitempty"`

	// Unset lists dotted paths to remove.
	Unset []string `yaml:"unset,omitempty"`

	// Error reports a validation error with this (templated) message.
	Error string `yaml:"error,omitempty"`
}

// EffectDef is a declarative effect. Every effect call is traced.
type EffectDef struct {
	// On restricts the effect to one action type. Empty means every action
	// reaching the node.
	On string `yaml:"on,omitempty"`

	// Fail makes the effect fail with this message, aborting the fold.
	Fail string `yaml:"fail,omitempty"`

	// Dispatch lists follow-up actions, queued behind the current one.
	Dispatch []ActionStep `yaml:"dispatch,omitempty"`
}

// Step is one batch of actions submitted together.
type Step struct {
	Actions []ActionStep `yaml:"actions"`
}

// ActionStep describes one action.
type ActionStep struct {
	// Type is the action tag reducers and effects match on.
	Type string `yaml:"type"`

	// Args contains the action arguments.
	// Values are converted to ir values during execution.
	Args map[string]any `yaml:"args,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type (see the Assert* constants).
	Type string `yaml:"type"`

	// Action is an action type (trace_count, effect_count).
	Action string `yaml:"action,omitempty"`

	// Actions is the expected fold order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Node is a node path such as "root/items" (effect_count).
	Node string `yaml:"node,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count"`

	// Expect is the expected state (final_state). Subset match: only the
	// specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState        = "final_state"
	AssertTraceOrder        = "trace_order"
	AssertTraceCount        = "trace_count"
	AssertEffectCount       = "effect_count"
	AssertNotificationCount = "notification_count"
	AssertErrorCount        = "error_count"
	AssertFailureCount      = "failure_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. schema_file paths resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "reducer:" vs "reducers:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := validateLayer("root", &s.Layer); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if len(step.Actions) == 0 {
			return fmt.Errorf("steps[%d]: actions list is required and must be non-empty", i)
		}
		for j, a := range step.Actions {
			if a.Type == "" {
				return fmt.Errorf("steps[%d].actions[%d]: type is required", i, j)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateLayer checks one node and its sub-states recursively.
func validateLayer(node string, l *Layer) error {
	if l.Schema != "" && l.SchemaFile != "" {
		return fmt.Errorf("%s: schema and schema_file are mutually exclusive", node)
	}

	for i, r := range l.Reducers {
		if r.On == "" {
			return fmt.Errorf("%s.reducers[%d]: on is required", node, i)
		}
		if len(r.Set) == 0 && len(r.Unset) == 0 && r.Error == "" {
			return fmt.Errorf("%s.reducers[%d]: one of set, unset or error is required", node, i)
		}
	}

	for i, e := range l.Effects {
		for j, a := range e.Dispatch {
			if a.Type == "" {
				return fmt.Errorf("%s.effects[%d].dispatch[%d]: type is required", node, i, j)
			}
		}
	}

	seen := make(map[string]bool, len(l.Substates))
	for i := range l.Substates {
		sub := &l.Substates[i]
		if sub.Name == "" {
			return fmt.Errorf("%s.substates[%d]: name is required", node, i)
		}
		if sub.Key == "" {
			return fmt.Errorf("%s.substates[%d]: key is required", node, i)
		}
		if seen[sub.Name] {
			return fmt.Errorf("%s.substates[%d]: duplicate name %q", node, i, sub.Name)
		}
		seen[sub.Name] = true
		if err := validateLayer(node+"/"+sub.Name, &sub.Layer); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
	case AssertEffectCount:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for effect_count", index)
		}
	case AssertNotificationCount, AssertErrorCount, AssertFailureCount:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
