package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

const failingScenario = `name: wrong_pen
description: "Expects the wrong pen position"
config:
  window_width_ms: 1000
  value_min: -10
  value_max: 10
batches:
  - samples: [{t: 100, y: 1}]
    expect:
      outcome: continue
      pen: 999
`

const passingScenario = `name: single_point
description: "One sample, one frame"
config:
  window_width_ms: 1000
  value_min: -10
  value_max: 10
batches:
  - samples: [{t: 100, y: 1}]
    expect:
      outcome: continue
      pen: 100
assertions:
  - type: frame_count
    count: 1
`

func testCmd(format string, args ...string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := testCmd("text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := testCmd("text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandRepositoryScenarios(t *testing.T) {
	buf, err := testCmd("text", harnessScenarios)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "✓ first_batch")
	assert.Contains(t, out, "✓ overflow_reset")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
	assert.NotContains(t, out, "no golden file")
}

func TestTestCommandRepositoryScenariosJSON(t *testing.T) {
	buf, err := testCmd("json", harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err)

	result, resp := decodeResponse[TestResult](t, buf.Bytes())
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 6, result.Passed)
	for _, s := range result.Scenarios {
		assert.True(t, s.Pass, s.Name)
		assert.Equal(t, "match", s.Golden, s.Name)
	}
}

func TestTestCommandFilter(t *testing.T) {
	buf, err := testCmd("json", harnessScenarios, "--filter", "overflow*")
	require.NoError(t, err)

	result, _ := decodeResponse[TestResult](t, buf.Bytes())
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "overflow_reset", result.Scenarios[0].Name)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := testCmd("text", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandNoScenarios(t *testing.T) {
	buf, err := testCmd("text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found.")
}

func TestTestCommandUpdateRegeneratesGoldens(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	buf, err := testCmd("text", harnessScenarios, "--golden", goldenDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ tie_at_pen (golden updated)")

	files, err := filepath.Glob(filepath.Join(goldenDir, "*.golden"))
	require.NoError(t, err)
	assert.Len(t, files, 6)

	// regenerated goldens are byte-identical to the checked-in ones
	for _, f := range files {
		got, err := os.ReadFile(f)
		require.NoError(t, err)
		want, err := os.ReadFile(filepath.Join(harnessGolden, filepath.Base(f)))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), filepath.Base(f))
	}
}

func TestTestCommandMissingGoldenStillPasses(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "single_point.yaml", passingScenario)

	buf, err := testCmd("text", dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ single_point (no golden file)")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	writeScenario(t, dir, "single_point.yaml", passingScenario)
	writeScenario(t, filepath.Join(root, "golden"), "single_point.golden", "{}\n")

	buf, err := testCmd("text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ single_point")
	assert.Contains(t, buf.String(), "does not match golden file")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "wrong_pen.yaml", failingScenario)
	writeScenario(t, dir, "single_point.yaml", passingScenario)

	buf, err := testCmd("json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	result, resp := decodeResponse[TestResult](t, buf.Bytes())
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)

	var failed ScenarioResult
	for _, s := range result.Scenarios {
		if !s.Pass {
			failed = s
		}
	}
	assert.Equal(t, "wrong_pen", failed.Name)
	require.NotEmpty(t, failed.Errors)
	assert.Contains(t, failed.Errors[0], "pen")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	buf, err := testCmd("text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}
