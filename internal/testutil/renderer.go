package testutil

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/sweeptrace/internal/ir"
)

// RenderCall is one recorded renderer invocation.
type RenderCall struct {
	Op     string
	Points []ir.Point
	Point  *ir.Point
	Rect   ir.Rect
}

// RecordingRenderer records every draw call and keeps the resulting traces.
//
// It implements engine.Renderer. FailOn makes the named operation return an
// error, for exercising render failure paths.
//
// Thread-safety: All methods are safe for concurrent use.
type RecordingRenderer struct {
	mu        sync.Mutex
	calls     []RenderCall
	left      []ir.Point
	right     []ir.Point
	highlight *ir.Point
	mask      ir.Rect
	failOn    string
}

// NewRecordingRenderer creates an empty renderer.
func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{}
}

// FailOn makes op ("append_left", "replace_left", "replace_right",
// "set_highlight", "set_mask") fail. Empty clears the failure.
func (r *RecordingRenderer) FailOn(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn = op
}

func (r *RecordingRenderer) record(c RenderCall) error {
	r.calls = append(r.calls, c)
	if r.failOn == c.Op {
		return fmt.Errorf("%s: injected failure", c.Op)
	}
	return nil
}

// AppendLeft implements engine.Renderer.
func (r *RecordingRenderer) AppendLeft(points []ir.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(RenderCall{Op: "append_left", Points: slices.Clone(points)}); err != nil {
		return err
	}
	r.left = append(r.left, points...)
	return nil
}

// ReplaceLeft implements engine.Renderer.
func (r *RecordingRenderer) ReplaceLeft(points []ir.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(RenderCall{Op: "replace_left", Points: slices.Clone(points)}); err != nil {
		return err
	}
	r.left = slices.Clone(points)
	return nil
}

// ReplaceRight implements engine.Renderer.
func (r *RecordingRenderer) ReplaceRight(points []ir.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(RenderCall{Op: "replace_right", Points: slices.Clone(points)}); err != nil {
		return err
	}
	r.right = slices.Clone(points)
	return nil
}

// SetHighlight implements engine.Renderer.
func (r *RecordingRenderer) SetHighlight(p *ir.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cp *ir.Point
	if p != nil {
		v := *p
		cp = &v
	}
	if err := r.record(RenderCall{Op: "set_highlight", Point: cp}); err != nil {
		return err
	}
	r.highlight = cp
	return nil
}

// SetMask implements engine.Renderer.
func (r *RecordingRenderer) SetMask(rect ir.Rect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(RenderCall{Op: "set_mask", Rect: rect}); err != nil {
		return err
	}
	r.mask = rect
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *RecordingRenderer) Calls() []RenderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Ops returns the recorded operation names in order.
func (r *RecordingRenderer) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.calls))
	for i, c := range r.calls {
		ops[i] = c.Op
	}
	return ops
}

// Left returns the drawn left trace.
func (r *RecordingRenderer) Left() []ir.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.left)
}

// Right returns the drawn right trace.
func (r *RecordingRenderer) Right() []ir.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.right)
}

// Highlight returns the drawn highlight, nil when hidden.
func (r *RecordingRenderer) Highlight() *ir.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.highlight == nil {
		return nil
	}
	v := *r.highlight
	return &v
}

// Mask returns the drawn mask.
func (r *RecordingRenderer) Mask() ir.Rect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mask
}

// Samples builds a batch from (timestamp, value) pairs.
func Samples(pairs ...float64) []ir.Sample {
	out := make([]ir.Sample, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ir.Sample{TimestampMs: pairs[i], Value: pairs[i+1]})
	}
	return out
}

// Points builds a point list from (x, y) pairs.
func Points(pairs ...float64) []ir.Point {
	out := make([]ir.Point, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ir.Point{X: pairs[i], Y: pairs[i+1]})
	}
	return out
}
