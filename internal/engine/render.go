package engine

import (
	"github.com/roach88/sweeptrace/internal/ir"
)

// Renderer draws sweep geometry. Every method replaces or extends drawable
// content; styling, axes and the drawing itself belong to the renderer.
//
// Implementations must copy point slices they retain.
type Renderer interface {
	// AppendLeft extends the left (current cycle) trace.
	AppendLeft(points []ir.Point) error

	// ReplaceLeft sets the left trace contents.
	ReplaceLeft(points []ir.Point) error

	// ReplaceRight sets the right (previous cycle) trace contents.
	ReplaceRight(points []ir.Point) error

	// SetHighlight moves the pen marker; nil hides it.
	SetHighlight(p *ir.Point) error

	// SetMask moves the rectangle hiding not-yet-overdrawn right trace data.
	SetMask(r ir.Rect) error
}

// Apply issues a frame's draw instructions to a renderer.
//
// The right trace is replaced before the left one so a rollover never shows
// an empty background under the fresh cycle. Point lists longer than
// maxChunk are split into several calls: a replacement becomes one
// ReplaceLeft with the first chunk followed by AppendLeft calls.
//
// The first failing call aborts the frame and is returned as a render error.
func Apply(r Renderer, f ir.Frame, maxChunk int) error {
	if maxChunk <= 0 {
		maxChunk = DefaultMaxAppendChunk
	}

	if f.ReplaceRight {
		if err := r.ReplaceRight(f.Right); err != nil {
			return NewRenderError(f.Seq, "replace right", err)
		}
	}

	if f.ReplaceLeft {
		first, rest := splitChunk(f.Left, maxChunk)
		if err := r.ReplaceLeft(first); err != nil {
			return NewRenderError(f.Seq, "replace left", err)
		}
		if err := appendChunked(r, rest, maxChunk); err != nil {
			return NewRenderError(f.Seq, "append left", err)
		}
	} else if err := appendChunked(r, f.LeftAppend, maxChunk); err != nil {
		return NewRenderError(f.Seq, "append left", err)
	}

	if err := r.SetHighlight(f.Highlight); err != nil {
		return NewRenderError(f.Seq, "set highlight", err)
	}
	if err := r.SetMask(f.Mask); err != nil {
		return NewRenderError(f.Seq, "set mask", err)
	}
	return nil
}

func appendChunked(r Renderer, points []ir.Point, maxChunk int) error {
	for len(points) > 0 {
		var chunk []ir.Point
		chunk, points = splitChunk(points, maxChunk)
		if err := r.AppendLeft(chunk); err != nil {
			return err
		}
	}
	return nil
}

func splitChunk(points []ir.Point, n int) (head, tail []ir.Point) {
	if len(points) <= n {
		return points, nil
	}
	return points[:n], points[n:]
}
