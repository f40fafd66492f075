package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/config"
)

func TestTestCommand_NoGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "counter.yaml", counterScenario)

	out, err := execute(t, config.Config{}, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ counter")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_UpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "counter.yaml", counterScenario)

	out, err := execute(t, config.Config{}, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ counter (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "counter.golden"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(golden), `{"final_state":{"total":5},"notifications":2,"scenario_name":"counter"`),
		"golden: %s", golden)

	out, err = execute(t, config.Config{}, "--format", "json", "test", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data := resp.Data.(map[string]any)
	scenarios := data["scenarios"].([]any)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "match", scenarios[0].(map[string]any)["golden"])
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "counter.yaml", counterScenario)
	writeScenario(t, dir, "golden/counter.golden", `{"scenario_name":"counter","trace":[]}`)

	out, err := execute(t, config.Config{}, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ counter")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_GoldenDirFlag(t *testing.T) {
	dir := t.TempDir()
	goldenDir := filepath.Join(t.TempDir(), "snapshots")
	writeScenario(t, dir, "counter.yaml", counterScenario)

	_, err := execute(t, config.Config{}, "test", dir, "--update", "--golden-dir", goldenDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(goldenDir, "counter.golden"))
	assert.NoDirExists(t, filepath.Join(dir, "golden"))
}

func TestTestCommand_FailuresAndFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "counter.yaml", counterScenario)
	writeScenario(t, dir, "failing.yaml", failingScenario)
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	out, err := execute(t, config.Config{}, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Test Summary: 1 passed, 2 failed, 3 total")
	assert.Contains(t, out, "failed to load scenario")

	out, err = execute(t, config.Config{}, "test", dir, "--filter", "count*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_JSONFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "failing.yaml", failingScenario)

	out, err := execute(t, config.Config{}, "--format", "json", "test", dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
}

func TestTestCommand_EmptyAndMissingDirectories(t *testing.T) {
	out, err := execute(t, config.Config{}, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, err = execute(t, config.Config{}, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles_SkipsGoldenDirectory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", counterScenario)
	writeScenario(t, dir, "nested/b.yml", counterScenario)
	writeScenario(t, dir, "golden/c.yaml", counterScenario)
	writeScenario(t, dir, "notes.txt", "ignored")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "nested", "b.yml"),
	}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}
