package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sweeptrace/internal/ir"
)

// TraceSnapshot captures the frames of a scenario execution.
// All lines use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Frames       []ir.Frame
	Final        FinalState
}

// Marshal renders the snapshot as canonical JSON lines: a header, one line
// per frame, and the final state.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	header, err := ir.MarshalCanonical(map[string]any{
		"scenario_name": s.ScenarioName,
		"frames":        len(s.Frames),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for _, f := range s.Frames {
		line, err := ir.MarshalCanonical(f)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	final := map[string]any{
		"final":    true,
		"left":     ir.PointsValue(s.Final.Left),
		"right":    ir.PointsValue(s.Final.Right),
		"mask":     ir.RectValue(s.Final.Mask),
		"prev_pen": s.Final.PrevPen,
	}
	if s.Final.Highlight != nil {
		final["highlight"] = ir.PointValue(*s.Final.Highlight)
	}
	line, err := ir.MarshalCanonical(final)
	if err != nil {
		return nil, err
	}
	buf.Write(line)
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its frames against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's frames against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Frames:       result.Frames,
		Final:        result.Final,
	}
	data, err := snapshot.Marshal()
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
