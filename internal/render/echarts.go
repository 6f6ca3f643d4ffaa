package render

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/roach88/sweeptrace/internal/ir"
)

// EChartsAssetsHost is where the generated page loads echarts.js from.
var EChartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// NewChart builds an interactive line chart of a snapshot.
//
// The mask is drawn as a mark area on the right trace, so it hides exactly
// the right-trace data underneath it. The pen marker is an overlaid
// scatter series.
func NewChart(snap Snapshot) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  snap.Title,
			Width:      "1400px",
			Height:     "500px",
			AssetsHost: EChartsAssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    snap.Title,
			Subtitle: fmt.Sprintf("frames=%d left=%d right=%d", snap.Frames, len(snap.Left), len(snap.Right)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "value",
			Name: "window (ms)",
			Min:  0,
			Max:  snap.Config.WindowWidthMs,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Name: "value",
			Min:  snap.Config.ValueMin,
			Max:  snap.Config.ValueMax,
		}),
	)

	traceOpts := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
	traceStyle := charts.WithLineStyleOpts(opts.LineStyle{Color: "#1a9e3a", Width: 1})

	rightOpts := []charts.SeriesOpts{traceOpts, traceStyle}
	if snap.Mask.Width() > 0 {
		m := snap.Mask
		rightOpts = append(rightOpts, charts.WithMarkAreaNameCoordItemOpts(opts.MarkAreaNameCoordItem{
			Name:        "mask",
			Coordinate0: []interface{}{m.X1, m.Y2},
			Coordinate1: []interface{}{m.X2, m.Y1},
			ItemStyle:   &opts.ItemStyle{Color: "#ffffff"},
		}))
	}
	line.AddSeries("right", lineData(snap.Right), rightOpts...)
	line.AddSeries("left", lineData(snap.Left), traceOpts, traceStyle)

	if hl := snap.Highlight; hl != nil && finite(*hl) {
		marker := charts.NewScatter()
		marker.AddSeries("highlight",
			[]opts.ScatterData{{Value: []interface{}{hl.X, hl.Y}}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}),
		)
		line.Overlap(marker)
	}

	return line
}

// WriteHTML renders a snapshot as a standalone HTML page.
func WriteHTML(w io.Writer, snap Snapshot) error {
	if err := NewChart(snap).Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// SaveHTML writes an HTML snapshot to path.
func SaveHTML(path string, snap Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := WriteHTML(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func lineData(points []ir.Point) []opts.LineData {
	data := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		if finite(p) {
			data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
		}
	}
	return data
}
