package render

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleSnapshot(t *testing.T) Snapshot {
	t.Helper()
	cfg := engine.DefaultConfig()
	scene := NewScene("ward 3", cfg)
	drive(t, scene, cfg,
		testutil.Samples(0, 0, 4000, 800, 8000, -600, 13900, 100),
		testutil.Samples(14050, 10, 16000, 1200, 18000, -300),
	)
	return scene.Snapshot()
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, sampleSnapshot(t), DefaultPNGWidth, DefaultPNGHeight))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestWritePNG_EmptyScene(t *testing.T) {
	snap := NewScene("empty", engine.DefaultConfig()).Snapshot()

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, snap, DefaultPNGWidth, DefaultPNGHeight))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestNewPlot_KeepsWindowRange(t *testing.T) {
	snap := sampleSnapshot(t)
	p, err := NewPlot(snap)
	require.NoError(t, err)

	assert.Equal(t, 0.0, p.X.Min)
	assert.Equal(t, snap.Config.WindowWidthMs, p.X.Max)
	assert.Equal(t, snap.Config.ValueMin, p.Y.Min)
	assert.Equal(t, snap.Config.ValueMax, p.Y.Max)
}

func TestNewPlot_SkipsNonFinite(t *testing.T) {
	snap := Snapshot{
		Config:    engine.DefaultConfig(),
		Left:      []ir.Point{{X: 1, Y: math.NaN()}, {X: 2, Y: 3}},
		Highlight: &ir.Point{X: 1, Y: math.Inf(1)},
	}
	_, err := NewPlot(snap)
	assert.NoError(t, err)
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.png")
	require.NoError(t, SavePNG(path, sampleSnapshot(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleSnapshot(t)))

	html := buf.String()
	assert.Contains(t, html, "ward 3")
	assert.Contains(t, html, `"name":"right"`)
	assert.Contains(t, html, `"name":"left"`)
	assert.Contains(t, html, `"name":"highlight"`)
	assert.Contains(t, html, "markArea")
}

func TestSaveHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.html")
	require.NoError(t, SaveHTML(path, sampleSnapshot(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")
}
