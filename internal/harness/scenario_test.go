package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
initial:
  count: 0
reducers:
  - on: Inc
    set:
      count: ${action.n}
substates:
  - name: item
    path: items
    key: id
    reducers:
      - on: Touch
        unset: [stale]
steps:
  - actions:
      - type: Inc
        args:
          n: 1
assertions:
  - type: trace_count
    action: Inc
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, 0, scenario.Initial["count"])
	require.Len(t, scenario.Reducers, 1)
	assert.Equal(t, "Inc", scenario.Reducers[0].On)
	assert.Equal(t, "${action.n}", scenario.Reducers[0].Set["count"])
	require.Len(t, scenario.Substates, 1)
	assert.Equal(t, "items", scenario.Substates[0].Path)
	assert.Equal(t, []string{"stale"}, scenario.Substates[0].Reducers[0].Unset)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "Inc", scenario.Steps[0].Actions[0].Type)
	assert.Equal(t, filepath.Dir(path), scenario.dir)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "reducer instead of reducers"
reducer:
  - on: X
    set: {a: 1}
steps:
  - actions:
      - type: X
assertions:
  - type: notification_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "reducer")
}

func TestParseScenario_Validation(t *testing.T) {
	const steps = `
steps:
  - actions:
      - type: X
`
	const asserts = `
assertions:
  - type: notification_count
    count: 1
`
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\n" + steps + asserts,
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\n" + steps + asserts,
			want:    "description is required",
		},
		{
			name:    "missing steps",
			content: "name: n\ndescription: d\n" + asserts,
			want:    "steps list is required",
		},
		{
			name:    "empty step",
			content: "name: n\ndescription: d\nsteps:\n  - actions: []\n" + asserts,
			want:    "steps[0]: actions list is required",
		},
		{
			name:    "action without type",
			content: "name: n\ndescription: d\nsteps:\n  - actions:\n      - args: {a: 1}\n" + asserts,
			want:    "steps[0].actions[0]: type is required",
		},
		{
			name:    "missing assertions",
			content: "name: n\ndescription: d\n" + steps,
			want:    "assertions list is required",
		},
		{
			name:    "reducer without on",
			content: "name: n\ndescription: d\nreducers:\n  - set: {a: 1}\n" + steps + asserts,
			want:    "root.reducers[0]: on is required",
		},
		{
			name:    "reducer without operation",
			content: "name: n\ndescription: d\nreducers:\n  - on: X\n" + steps + asserts,
			want:    "one of set, unset or error is required",
		},
		{
			name:    "schema and schema_file",
			content: "name: n\ndescription: d\nschema: \"a: int\"\nschema_file: a.cue\n" + steps + asserts,
			want:    "mutually exclusive",
		},
		{
			name:    "substate without key",
			content: "name: n\ndescription: d\nsubstates:\n  - name: s\n    path: items\n" + steps + asserts,
			want:    "root.substates[0]: key is required",
		},
		{
			name:    "duplicate substate",
			content: "name: n\ndescription: d\nsubstates:\n  - {name: s, key: k}\n  - {name: s, key: k}\n" + steps + asserts,
			want:    `duplicate name "s"`,
		},
		{
			name:    "nested substate error",
			content: "name: n\ndescription: d\nsubstates:\n  - name: s\n    key: k\n    reducers:\n      - on: X\n" + steps + asserts,
			want:    "root/s.reducers[0]",
		},
		{
			name:    "effect dispatch without type",
			content: "name: n\ndescription: d\neffects:\n  - dispatch:\n      - args: {a: 1}\n" + steps + asserts,
			want:    "root.effects[0].dispatch[0]: type is required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\n" + steps + "assertions:\n  - type: bogus\n",
			want:    `unknown assertion type "bogus"`,
		},
		{
			name:    "negative count",
			content: "name: n\ndescription: d\n" + steps + "assertions:\n  - type: error_count\n    count: -1\n",
			want:    "count must be non-negative",
		},
		{
			name:    "final_state without expect",
			content: "name: n\ndescription: d\n" + steps + "assertions:\n  - type: final_state\n",
			want:    "expect is required for final_state",
		},
		{
			name:    "trace_order without actions",
			content: "name: n\ndescription: d\n" + steps + "assertions:\n  - type: trace_order\n",
			want:    "actions list is required for trace_order",
		},
		{
			name:    "trace_count without action",
			content: "name: n\ndescription: d\n" + steps + "assertions:\n  - type: trace_count\n    count: 1\n",
			want:    "action is required for trace_count",
		},
		{
			name:    "effect_count without node",
			content: "name: n\ndescription: d\n" + steps + "assertions:\n  - type: effect_count\n    count: 1\n",
			want:    "node is required for effect_count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_TestdataScenariosAreValid(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
