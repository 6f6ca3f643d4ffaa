package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/testutil"
)

// drive runs batches through a sweep and applies every frame to the scene.
func drive(t *testing.T, scene *Scene, cfg engine.Config, batches ...[]ir.Sample) *engine.Sweep {
	t.Helper()
	sw, err := engine.NewSweep(cfg)
	require.NoError(t, err)
	for _, batch := range batches {
		frame, ok := sw.Process(batch)
		require.True(t, ok)
		require.NoError(t, engine.Apply(scene, frame, cfg.MaxAppendChunk))
	}
	return sw
}

func TestScene_MirrorsSweepState(t *testing.T) {
	cfg := engine.DefaultConfig()
	scene := NewScene("ecg", cfg)

	sw := drive(t, scene, cfg,
		testutil.Samples(100, 1, 200, 2),
		testutil.Samples(13900, 3),
		testutil.Samples(14050, 4, 14100, 5),
	)

	snap := scene.Snapshot()
	assert.Equal(t, sw.Left(), snap.Left)
	assert.Equal(t, sw.Right(), snap.Right)
	assert.Equal(t, sw.Mask(), snap.Mask)
	hl, _ := sw.Highlight()
	require.NotNil(t, snap.Highlight)
	assert.Equal(t, hl, *snap.Highlight)
	assert.Equal(t, int64(3), snap.Frames)
	assert.Equal(t, "ecg", snap.Title)
}

func TestScene_OverflowClears(t *testing.T) {
	cfg := engine.DefaultConfig()
	scene := NewScene("ecg", cfg)

	drive(t, scene, cfg,
		testutil.Samples(100, 1),
		testutil.Samples(13000, 1, 1000, 1, 13000, 1, 2000, 1),
	)

	snap := scene.Snapshot()
	assert.Empty(t, snap.Left)
	assert.Empty(t, snap.Right)
	assert.Nil(t, snap.Highlight)
	assert.Zero(t, snap.Mask.Width())
}

func TestScene_SnapshotIsDetached(t *testing.T) {
	cfg := engine.DefaultConfig()
	scene := NewScene("ecg", cfg)
	drive(t, scene, cfg, testutil.Samples(100, 1))

	snap := scene.Snapshot()
	snap.Left[0].Y = 99
	snap.Highlight.Y = 99

	again := scene.Snapshot()
	assert.Equal(t, 1.0, again.Left[0].Y)
	assert.Equal(t, 1.0, again.Highlight.Y)
}

func TestScene_HoverHighlightsBothTraces(t *testing.T) {
	scene := NewScene("ecg", engine.DefaultConfig())

	var leftEvents, rightEvents int
	scene.Left.OnHighlight(func(bool) { leftEvents++ })
	scene.Right.OnHighlight(func(bool) { rightEvents++ })

	// Hovering the right trace.
	scene.Right.SetHighlighted(true)

	assert.True(t, scene.Left.Highlighted())
	assert.True(t, scene.Right.Highlighted())
	assert.Equal(t, int64(1), scene.Sync.Mirrored())
	assert.Equal(t, 1, leftEvents)
	assert.Equal(t, 2, rightEvents, "the hover itself plus the mirrored set")

	scene.Left.SetHighlighted(false)
	assert.False(t, scene.Left.Highlighted())
	assert.False(t, scene.Right.Highlighted())
	assert.Equal(t, int64(2), scene.Sync.Mirrored())
}

func TestSnapshot_VisibleRight(t *testing.T) {
	snap := Snapshot{
		Right: testutil.Points(100, 1, 500, 2, 900, 3),
		Mask:  ir.Rect{X1: 0, X2: 600, Y1: -1, Y2: 1},
	}
	assert.Equal(t, testutil.Points(900, 3), snap.VisibleRight())

	snap.Mask = ir.Rect{Y1: -1, Y2: 1}
	assert.Len(t, snap.VisibleRight(), 3, "a collapsed mask hides nothing")
}

func TestScene_Names(t *testing.T) {
	scene := NewScene("ecg", engine.DefaultConfig())
	assert.Equal(t, "left", scene.Left.Name())
	assert.Equal(t, "right", scene.Right.Name())
}
