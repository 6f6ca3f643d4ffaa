package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/roach88/sweeptrace/internal/ir"
)

// Default PNG dimensions.
const (
	DefaultPNGWidth  = 14 * vg.Inch
	DefaultPNGHeight = 5 * vg.Inch
)

var (
	traceColor     = color.RGBA{R: 0x1a, G: 0x9e, B: 0x3a, A: 0xff}
	highlightColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	maskColor      = color.White
)

// NewPlot builds a gonum plot of a snapshot.
//
// Layering follows the sweep display: the right trace first, the mask over
// it, then the left trace and the pen marker on top. Non-finite values
// cannot be plotted and are skipped.
func NewPlot(snap Snapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = snap.Title
	p.X.Label.Text = "window (ms)"
	p.Y.Label.Text = "value"
	p.X.Min = 0
	p.X.Max = snap.Config.WindowWidthMs
	p.Y.Min = snap.Config.ValueMin
	p.Y.Max = snap.Config.ValueMax

	if right := plotXYs(snap.Right); len(right) > 0 {
		line, err := plotter.NewLine(right)
		if err != nil {
			return nil, fmt.Errorf("right trace: %w", err)
		}
		line.Color = traceColor
		line.Width = vg.Points(1)
		p.Add(line)
	}

	if snap.Mask.Width() > 0 {
		m := snap.Mask
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: m.X1, Y: m.Y1},
			{X: m.X2, Y: m.Y1},
			{X: m.X2, Y: m.Y2},
			{X: m.X1, Y: m.Y2},
		})
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		poly.Color = maskColor
		poly.LineStyle.Width = 0
		p.Add(poly)
	}

	if left := plotXYs(snap.Left); len(left) > 0 {
		line, err := plotter.NewLine(left)
		if err != nil {
			return nil, fmt.Errorf("left trace: %w", err)
		}
		line.Color = traceColor
		line.Width = vg.Points(1)
		p.Add(line)
	}

	if hl := snap.Highlight; hl != nil && finite(*hl) {
		marker, err := plotter.NewScatter(plotter.XYs{{X: hl.X, Y: hl.Y}})
		if err != nil {
			return nil, fmt.Errorf("highlight: %w", err)
		}
		marker.GlyphStyle = draw.GlyphStyle{
			Color:  highlightColor,
			Radius: vg.Points(3),
			Shape:  draw.CircleGlyph{},
		}
		p.Add(marker)
	}

	// The mask polygon extends the data range; keep the window fixed.
	p.X.Min, p.X.Max = 0, snap.Config.WindowWidthMs
	p.Y.Min, p.Y.Max = snap.Config.ValueMin, snap.Config.ValueMax

	return p, nil
}

// WritePNG renders a snapshot as PNG.
func WritePNG(w io.Writer, snap Snapshot, width, height vg.Length) error {
	p, err := NewPlot(snap)
	if err != nil {
		return fmt.Errorf("plot snapshot: %w", err)
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("plot snapshot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG writes a PNG snapshot at the default size.
func SavePNG(path string, snap Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := WritePNG(f, snap, DefaultPNGWidth, DefaultPNGHeight); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func plotXYs(points []ir.Point) plotter.XYs {
	xys := make(plotter.XYs, 0, len(points))
	for _, p := range points {
		if finite(p) {
			xys = append(xys, plotter.XY{X: p.X, Y: p.Y})
		}
	}
	return xys
}

func finite(p ir.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
