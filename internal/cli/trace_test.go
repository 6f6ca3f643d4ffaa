package cli

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/store"
)

func traceCmd(opts *RootOptions, args ...string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTraceListsSessions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)
	writeSession(t, dbPath, "b", testBatches()[:1], nil)

	buf, err := traceCmd(&RootOptions{Format: "json"}, "--db", dbPath)
	require.NoError(t, err)

	sessions, resp := decodeResponse[[]SessionSummary](t, buf.Bytes())
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, sessions, 2)

	a := sessions[0]
	assert.Equal(t, "a", a.SessionID)
	assert.Equal(t, "bed-a", a.Name)
	assert.Equal(t, 3, a.Frames)
	assert.Equal(t, 6, a.Samples)
	assert.Equal(t, 1, a.Rollovers)
	assert.Zero(t, a.Overflows)
	assert.True(t, a.Ended)
	assert.Equal(t, 14000.0, a.WindowMs)

	assert.Equal(t, 1, sessions[1].Frames)
}

func TestTraceListsSessionsText(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := traceCmd(&RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "bed-a")
	assert.Contains(t, buf.String(), "3 frames")
	assert.Contains(t, buf.String(), "ended")
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")

	buf, err := traceCmd(&RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No sessions found")
}

func TestTraceSessionTimeline(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := traceCmd(&RootOptions{Format: "json"}, "--db", dbPath, "--session", "a")
	require.NoError(t, err)

	result, _ := decodeResponse[TraceResult](t, buf.Bytes())
	assert.Equal(t, "a", result.Session.SessionID)
	require.Len(t, result.Timeline, 3)

	outcomes := make([]ir.Outcome, len(result.Timeline))
	for i, ev := range result.Timeline {
		outcomes[i] = ev.Outcome
	}
	assert.Equal(t, []ir.Outcome{ir.OutcomeContinue, ir.OutcomeRollover, ir.OutcomeContinue}, outcomes)

	first := result.Timeline[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, 3, first.Samples)
	assert.Equal(t, 200.0, first.Pen)
	require.NotNil(t, first.FirstMs)
	assert.Equal(t, 0.0, *first.FirstMs)
	assert.Equal(t, 200.0, *first.LastMs)
	assert.Empty(t, first.Frame, "frames are only included in verbose mode")

	assert.Equal(t, 100.0, result.Timeline[1].Pen)
}

func TestTraceOutcomeFilter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := traceCmd(&RootOptions{Format: "json"}, "--db", dbPath, "--session", "a", "--outcome", "rollover")
	require.NoError(t, err)

	result, _ := decodeResponse[TraceResult](t, buf.Bytes())
	require.Len(t, result.Timeline, 1)
	assert.Equal(t, int64(2), result.Timeline[0].Seq)
	// the summary still covers the whole session
	assert.Equal(t, 3, result.Session.Frames)
}

func TestTraceVerboseText(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := traceCmd(&RootOptions{Format: "text", Verbose: true}, "--db", dbPath, "--session", "a")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Session: a (bed-a, source file)")
	assert.Contains(t, out, "Timeline:")
	assert.Contains(t, out, "↻ [2] rollover")
	assert.Contains(t, out, `"outcome":"rollover"`)
}

func TestTraceUnknownOutcome(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")

	_, err := traceCmd(&RootOptions{Format: "text"}, "--db", dbPath, "--session", "a", "--outcome", "sideways")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown outcome")
}

func TestTraceOutcomeNeedsSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")

	_, err := traceCmd(&RootOptions{Format: "text"}, "--db", dbPath, "--outcome", "overflow")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceUnknownSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := traceCmd(&RootOptions{Format: "json"}, "--db", dbPath, "--session", "zzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, resp := decodeResponse[TraceResult](t, buf.Bytes())
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSession, resp.Error.Code)
}

func TestBuildTimelineSkipsNonFiniteTimestamps(t *testing.T) {
	records := []store.FrameRecord{{
		Seq:     1,
		Outcome: ir.OutcomeContinue,
		Pen:     40,
		Dropped: 1,
		Samples: []ir.Sample{{TimestampMs: math.NaN()}, {TimestampMs: 20}, {TimestampMs: 40}},
		Frame:   `{"seq":1}`,
	}}

	timeline := buildTimeline(records, false)
	require.Len(t, timeline, 1)
	assert.Equal(t, 3, timeline[0].Samples)
	assert.Equal(t, 1, timeline[0].Dropped)
	assert.Equal(t, 20.0, *timeline[0].FirstMs)
	assert.Equal(t, 40.0, *timeline[0].LastMs)
	assert.Empty(t, timeline[0].Frame)

	assert.Equal(t, `{"seq":1}`, buildTimeline(records, true)[0].Frame)
}

func TestTraceSeqRangeAndLimit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := traceCmd(&RootOptions{Format: "json"}, "--db", dbPath, "--session", "a", "--from", "2", "--limit", "1")
	require.NoError(t, err)

	result, _ := decodeResponse[TraceResult](t, buf.Bytes())
	require.Len(t, result.Timeline, 1)
	assert.Equal(t, int64(2), result.Timeline[0].Seq)

	buf, err = traceCmd(&RootOptions{Format: "json"}, "--db", dbPath, "--session", "a", "--to", "2")
	require.NoError(t, err)
	result, _ = decodeResponse[TraceResult](t, buf.Bytes())
	assert.Len(t, result.Timeline, 2)
}

func TestTraceNegativeLimit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")

	_, err := traceCmd(&RootOptions{Format: "text"}, "--db", dbPath, "--session", "a", "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "limit must not be negative")
}
