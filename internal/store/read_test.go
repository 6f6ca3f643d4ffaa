package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/queryir"
	"github.com/roach88/sweeptrace/internal/testutil"
)

// recordBatches runs batches through a fresh default sweep and stores them.
func recordBatches(t *testing.T, s *Store, sessionID string, batches ...[]ir.Sample) []ir.Frame {
	t.Helper()
	sw, err := engine.NewSweep(engine.DefaultConfig())
	require.NoError(t, err)

	var frames []ir.Frame
	for _, batch := range batches {
		frame, ok := sw.Process(batch)
		require.True(t, ok)
		require.NoError(t, s.WriteFrame(context.Background(), sessionID, batch, frame))
		frames = append(frames, frame)
	}
	return frames
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReadSession_PreservesConfig(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	cfg := engine.Config{WindowWidthMs: 2500.5, ValueMin: -1.25, ValueMax: 3, LeadMargin: 0.1, MaxAppendChunk: 7}
	require.NoError(t, s.WriteSession(ctx, Session{ID: "s", Name: "custom", Config: cfg}))

	sess, err := s.ReadSession(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, cfg, sess.Config)
	assert.False(t, sess.Ended)
}

func TestListSessions_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	createTestSession(t, s, "b")
	createTestSession(t, s, "a")
	createTestSession(t, s, "c")

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	var ids []string
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestReadFrames_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "s")

	recordBatches(t, s, "s",
		testutil.Samples(100, 1),
		testutil.Samples(13900, 2),
		testutil.Samples(14050, 3),
	)

	frames, err := s.ReadFrames(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, int64(i+1), f.Seq)
	}
	assert.Equal(t, ir.OutcomeRollover, frames[2].Outcome)
}

func TestReadFrames_Empty(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "s")

	frames, err := s.ReadFrames(context.Background(), "s")
	require.NoError(t, err)
	assert.NotNil(t, frames)
	assert.Empty(t, frames)
}

func TestReadFramesByOutcome(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "s")

	recordBatches(t, s, "s",
		testutil.Samples(100, 1),
		testutil.Samples(13900, 2),
		testutil.Samples(14050, 3),
		testutil.Samples(20000, 4, 28010, 5, 30000, 6, 42020, 7),
	)

	rollovers, err := s.ReadFramesByOutcome(context.Background(), "s", ir.OutcomeRollover)
	require.NoError(t, err)
	require.Len(t, rollovers, 1)
	assert.Equal(t, int64(3), rollovers[0].Seq)

	overflows, err := s.ReadFramesByOutcome(context.Background(), "s", ir.OutcomeOverflow)
	require.NoError(t, err)
	require.Len(t, overflows, 1)
	assert.Equal(t, int64(4), overflows[0].Seq)
}

func TestQueryFrames(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "s")
	createTestSession(t, s, "other")

	recordBatches(t, s, "s",
		testutil.Samples(100, 1),
		testutil.Samples(13900, 2),
		testutil.Samples(14050, 3),
		testutil.Samples(20000, 4, 28010, 5, 30000, 6, 42020, 7),
	)
	recordBatches(t, s, "other", testutil.Samples(100, 1))
	ctx := context.Background()

	t.Run("seq range", func(t *testing.T) {
		frames, err := s.QueryFrames(ctx, "s", queryir.Select{Filter: queryir.SeqRange(2, 3)})
		require.NoError(t, err)
		require.Len(t, frames, 2)
		assert.Equal(t, int64(2), frames[0].Seq)
		assert.Equal(t, int64(3), frames[1].Seq)
	})

	t.Run("pen and limit", func(t *testing.T) {
		frames, err := s.QueryFrames(ctx, "s", queryir.Select{
			Filter: queryir.Compare{Field: queryir.FieldPen, Op: queryir.OpGE, Value: 1000},
			Limit:  1,
		})
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, int64(2), frames[0].Seq)
	})

	t.Run("rollovers", func(t *testing.T) {
		frames, err := s.QueryFrames(ctx, "s", queryir.Select{
			Filter: queryir.Compare{Field: queryir.FieldRollovers, Op: queryir.OpGT, Value: 1},
		})
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, ir.OutcomeOverflow, frames[0].Outcome)
	})

	t.Run("scoped to session", func(t *testing.T) {
		frames, err := s.QueryFrames(ctx, "other", queryir.Select{})
		require.NoError(t, err)
		assert.Len(t, frames, 1)
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := s.QueryFrames(ctx, "s", queryir.Select{Filter: queryir.OutcomeIs("sideways")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid query")
	})
}
