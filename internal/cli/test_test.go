package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priorityScenario = `name: priority_created
description: "A high-priority case gets both artifacts"
records:
  - type: incident
    id: case-1
    attributes:
      priority: { option: 2 }
steps:
  - event: created
    record_type: incident
    record_id: case-1
assertions:
  - type: artifact_count
    lookup: caseid
    target: case-1
    count: 2
`

const wrongCountScenario = `name: wrong_count
description: "Expects more artifacts than the rules create"
records:
  - type: incident
    id: case-1
steps:
  - event: created
    record_type: incident
    record_id: case-1
assertions:
  - type: artifact_count
    lookup: caseid
    target: case-1
    count: 5
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, body := range files {
		writeFile(t, filepath.Join(dir, name), body)
	}
	return dir
}

func TestTestCommand_RequiresTwoArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)

	_, err = execute(t, "test", "rules")
	require.Error(t, err)
}

func TestTestCommand_MissingDirectories(t *testing.T) {
	rules := writeRules(t, validRules)
	scenarios := scenarioDir(t, nil)
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := execute(t, "test", missing, scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "rules directory not found")

	_, err = execute(t, "test", rules, missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", writeRules(t, validRules), scenarioDir(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommand_PassingScenario(t *testing.T) {
	scenarios := scenarioDir(t, map[string]string{"priority.yaml": priorityScenario})

	out, err := execute(t, "test", writeRules(t, validRules), scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ priority_created")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	scenarios := scenarioDir(t, map[string]string{
		"priority.yaml": priorityScenario,
		"wrong.yaml":    wrongCountScenario,
	})

	resp, err := executeJSON(t, "test", writeRules(t, validRules), scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	var result TestResult
	decodeData(t, resp, &result)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	for _, s := range result.Scenarios {
		if s.Name == "wrong_count" {
			assert.False(t, s.Pass)
			assert.NotEmpty(t, s.Errors)
		}
	}
}

func TestTestCommand_Filter(t *testing.T) {
	scenarios := scenarioDir(t, map[string]string{
		"priority.yaml": priorityScenario,
		"wrong.yaml":    wrongCountScenario,
	})

	out, err := execute(t, "test", writeRules(t, validRules), scenarios, "--filter", "prio*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_GoldenUpdateThenCompare(t *testing.T) {
	rules := writeRules(t, validRules)
	scenarios := scenarioDir(t, map[string]string{"priority.yaml": priorityScenario})
	golden := filepath.Join(scenarios, "golden", "priority.golden")

	out, err := execute(t, "test", rules, scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ priority_created (golden updated)")
	require.FileExists(t, golden)

	out, err = execute(t, "test", rules, scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ priority_created\n")

	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0644))
	out, err = execute(t, "test", rules, scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "golden file mismatch")
}

func TestTestCommand_InlineRulesOnly(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.MkdirAll(rules, 0755))
	scenarios := scenarioDir(t, map[string]string{"inline.yaml": `name: inline
description: "Rules declared in the scenario"
rules:
  - id: r-inline
    name: Inline rule
    parent_record: incident
records:
  - type: incident
    id: case-1
steps:
  - event: created
    record_type: incident
    record_id: case-1
assertions:
  - type: artifact
    lookup: caseid
    target: case-1
    rule: r-inline
`})

	out, err := execute(t, "test", rules, scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ inline")
}

func TestFindScenarioFiles_SkipsGolden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a.yaml":           "name: a",
		"b.yml":            "name: b",
		"notes.txt":        "ignored",
		"golden/a.golden":  "snapshot",
		"golden/c.yaml":    "name: c",
		"nested/deep.yaml": "name: deep",
	})

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "nested", "deep.yaml"),
	}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "case.golden"), goldenFilePath(filepath.Join("s", "case.yaml")))
}
