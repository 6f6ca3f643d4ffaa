// Package render holds drawable targets for sweep frames: an in-memory
// scene implementing engine.Renderer, and exporters turning a scene
// snapshot into a PNG (gonum/plot) or an interactive HTML page (go-echarts).
package render

import (
	"slices"
	"sync"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
)

// Series is one drawable trace. Highlight changes fire the series' own
// listeners, the way a chart series raises hover events.
type Series struct {
	name string

	mu          sync.Mutex
	points      []ir.Point
	highlighted bool
	listeners   []func(on bool)
}

func newSeries(name string) *Series {
	return &Series{name: name}
}

// Name returns the series name.
func (s *Series) Name() string {
	return s.name
}

// Points returns a copy of the series data.
func (s *Series) Points() []ir.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.points)
}

// Highlighted reports the highlight state.
func (s *Series) Highlighted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlighted
}

// OnHighlight registers a listener for highlight changes.
func (s *Series) OnHighlight(fn func(on bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetHighlighted implements engine.Highlighter. Listeners run after the
// lock is released so they may call back into the series.
func (s *Series) SetHighlighted(on bool) {
	s.mu.Lock()
	s.highlighted = on
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(on)
	}
}

func (s *Series) replace(points []ir.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = slices.Clone(points)
}

func (s *Series) append(points []ir.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, points...)
}

// Snapshot is an immutable copy of everything drawn in a scene.
type Snapshot struct {
	Title     string
	Config    engine.Config
	Left      []ir.Point
	Right     []ir.Point
	Highlight *ir.Point
	Mask      ir.Rect
	Frames    int64
}

// VisibleRight returns the right-trace points not hidden by the mask.
func (s Snapshot) VisibleRight() []ir.Point {
	visible := make([]ir.Point, 0, len(s.Right))
	for _, p := range s.Right {
		if s.Mask.Width() > 0 && s.Mask.Covers(p.X) {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}

// Scene is an in-memory drawing surface for one sweep.
//
// Left and right traces are separate series linked by a HighlightSync, so
// hovering either highlights both. Scene implements engine.Renderer and is
// safe for concurrent use: the scope draws while exporters take snapshots.
type Scene struct {
	title string
	cfg   engine.Config
	Left  *Series
	Right *Series
	Sync  *engine.HighlightSync

	mu        sync.Mutex
	highlight *ir.Point
	mask      ir.Rect
	frames    int64
}

// NewScene creates an empty scene for the given sweep window.
func NewScene(title string, cfg engine.Config) *Scene {
	left := newSeries("left")
	right := newSeries("right")
	hs := engine.NewHighlightSync(left, right)
	left.OnHighlight(hs.OnHighlight)
	right.OnHighlight(hs.OnHighlight)

	return &Scene{
		title: title,
		cfg:   cfg,
		Left:  left,
		Right: right,
		Sync:  hs,
	}
}

// AppendLeft implements engine.Renderer.
func (s *Scene) AppendLeft(points []ir.Point) error {
	s.Left.append(points)
	return nil
}

// ReplaceLeft implements engine.Renderer.
func (s *Scene) ReplaceLeft(points []ir.Point) error {
	s.Left.replace(points)
	return nil
}

// ReplaceRight implements engine.Renderer.
func (s *Scene) ReplaceRight(points []ir.Point) error {
	s.Right.replace(points)
	return nil
}

// SetHighlight implements engine.Renderer.
func (s *Scene) SetHighlight(p *ir.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.highlight = nil
		return nil
	}
	v := *p
	s.highlight = &v
	return nil
}

// SetMask implements engine.Renderer. SetMask is the last call of every
// frame, so it also counts frames.
func (s *Scene) SetMask(r ir.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mask = r
	s.frames++
	return nil
}

// Snapshot copies the current scene contents.
func (s *Scene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Title:  s.title,
		Config: s.cfg,
		Left:   s.Left.Points(),
		Right:  s.Right.Points(),
		Mask:   s.mask,
		Frames: s.frames,
	}
	if s.highlight != nil {
		v := *s.highlight
		snap.Highlight = &v
	}
	return snap
}
