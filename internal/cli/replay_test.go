package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/store"
)

// testBatches produce continue, rollover, continue on the default config.
func testBatches() [][]ir.Sample {
	return [][]ir.Sample{
		{{TimestampMs: 0, Value: 10}, {TimestampMs: 100, Value: 20}, {TimestampMs: 200, Value: 30}},
		{{TimestampMs: 13900, Value: 40}, {TimestampMs: 14100, Value: 50}},
		{{TimestampMs: 14300, Value: 60}},
	}
}

// writeSession records batches through a fresh sweep. tamper, when set,
// may alter a frame before it is stored.
func writeSession(t *testing.T, dbPath, id string, batches [][]ir.Sample, tamper func(*ir.Frame)) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	cfg := engine.DefaultConfig()
	require.NoError(t, st.WriteSession(ctx, store.Session{
		ID:            id,
		Name:          "bed-" + id,
		Source:        "file",
		Config:        cfg,
		EngineVersion: ir.EngineVersion,
		FrameVersion:  ir.FrameVersion,
	}))

	sweep, err := engine.NewSweep(cfg)
	require.NoError(t, err)
	for _, batch := range batches {
		frame, ok := sweep.Process(batch)
		require.True(t, ok)
		if tamper != nil {
			tamper(&frame)
		}
		require.NoError(t, st.WriteFrame(ctx, id, batch, frame))
	}
	require.NoError(t, st.EndSession(ctx, id))
}

func replayCmd(format string, args ...string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format, Verbose: format == "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestReplayDeterministic(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := replayCmd("text", "--db", dbPath)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Replay Summary: 1 session(s)")
	assert.Contains(t, out, "✓ Session: a (bed-a)")
	assert.Contains(t, out, "Frames: 3 recorded, 3 replayed")
	assert.Contains(t, out, "✓ All sessions verified deterministic")
}

func TestReplayDeterministicJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)
	writeSession(t, dbPath, "b", testBatches()[:1], nil)

	buf, err := replayCmd("json", "--db", dbPath)
	require.NoError(t, err)

	result, resp := decodeResponse[ReplayResult](t, buf.Bytes())
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	assert.Equal(t, 2, result.TotalSessions)
	require.Len(t, result.Sessions, 2)
	assert.Equal(t, "a", result.Sessions[0].SessionID)
	assert.Equal(t, 3, result.Sessions[0].Replayed)
	assert.True(t, result.Sessions[0].Ended)
	assert.Equal(t, 1, result.Sessions[1].Recorded)
}

func TestReplayRecordedRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	summary := recordSession(t, dbPath, "live", sampleLines(400, 50))

	buf, err := replayCmd("json", "--db", dbPath, "--session", "live")
	require.NoError(t, err)

	result, _ := decodeResponse[ReplayResult](t, buf.Bytes())
	require.Len(t, result.Sessions, 1)
	assert.True(t, result.Sessions[0].Deterministic)
	assert.Equal(t, int(summary.Frames), result.Sessions[0].Replayed)
}

func TestReplayDetectsMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), func(f *ir.Frame) {
		if f.Seq == 2 {
			f.Pen += 1
		}
	})

	buf, err := replayCmd("text", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✗ Session: a")
	assert.Contains(t, out, "1 frame(s) differ: [2]")
	assert.Contains(t, out, "-recorded +replayed")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplayMismatchJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), func(f *ir.Frame) {
		f.Rollovers = 9
	})

	buf, err := replayCmd("json", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	result, resp := decodeResponse[ReplayResult](t, buf.Bytes())
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)
	assert.False(t, result.AllDeterministic)
	assert.Equal(t, []int64{1, 2, 3}, result.Sessions[0].Mismatches)
}

func TestReplayWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)
	pngPath := filepath.Join(dir, "a.png")
	htmlPath := filepath.Join(dir, "a.html")

	_, err := replayCmd("text", "--db", dbPath, "--session", "a", "--png", pngPath, "--html", htmlPath)
	require.NoError(t, err)
	assert.FileExists(t, pngPath)
	assert.FileExists(t, htmlPath)
}

func TestReplaySnapshotNeedsSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")

	_, err := replayCmd("text", "--db", dbPath, "--png", "out.png")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayUnknownSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")
	writeSession(t, dbPath, "a", testBatches(), nil)

	buf, err := replayCmd("json", "--db", dbPath, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, resp := decodeResponse[ReplayResult](t, buf.Bytes())
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSession, resp.Error.Code)
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweeptrace.db")

	buf, err := replayCmd("text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No sessions found")
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := replayCmd("text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
