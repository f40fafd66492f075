package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/config"
)

// execute runs the root command with args and returns what it printed to
// stdout. Logs go to a separate buffer.
func execute(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand(cfg)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const counterScenario = `name: counter
description: Add folds a running total
initial:
  total: 0
reducers:
  - on: Set
    set:
      total: ${action.n}
steps:
  - actions:
      - type: Set
        args: {n: 1}
      - type: Set
        args: {n: 2}
  - actions:
      - type: Set
        args: {n: 5}
assertions:
  - type: final_state
    expect:
      total: 5
  - type: notification_count
    count: 2
`

const failingScenario = `name: failing
description: the final state assertion does not hold
initial:
  total: 0
reducers:
  - on: Set
    set:
      total: ${action.n}
steps:
  - actions:
      - type: Set
        args: {n: 1}
assertions:
  - type: final_state
    expect:
      total: 9
`

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(config.Config{})
	require.NotNil(t, cmd)
	assert.Equal(t, "statetree", cmd.Use)
	assert.Contains(t, cmd.Long, "sub-states")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(config.Config{})
	commands := []string{"run", "test", "validate", "trace", "replay"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(config.Config{})

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestFormatDefaultFromConfig(t *testing.T) {
	cmd := NewRootCommand(config.Config{Format: "json"})
	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "json", formatFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"run", []string{"db", "batch-prefix"}},
		{"test", []string{"update", "filter", "golden-dir"}},
		{"trace", []string{"db", "batch", "since", "action", "failed"}},
		{"replay", []string{"db", "batch-prefix"}},
	}

	cmd := NewRootCommand(config.Config{})
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, config.Config{}, "--format", "invalid", "validate", "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, config.Config{LogLevel: "loud"}, "validate", "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDatabaseResolution(t *testing.T) {
	opts := &RootOptions{Config: config.Config{DB: "env.db"}}
	assert.Equal(t, "env.db", opts.database(""))
	assert.Equal(t, "flag.db", opts.database("flag.db"))
}
