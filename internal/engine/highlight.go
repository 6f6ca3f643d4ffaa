package engine

import "sync/atomic"

// Highlighter is a drawable whose highlight state can be set.
// Setting the state may synchronously fire the drawable's own highlight
// callbacks, which is exactly the feedback HighlightSync guards against.
type Highlighter interface {
	SetHighlighted(on bool)
}

// HighlightSync mirrors highlight state across drawables that show one
// signal, such as the left and right traces.
//
// Register OnHighlight as the highlight callback of every linked drawable.
// When one of them reports a change, the value is pushed to all of them
// once. Pushing it re-fires their callbacks; those nested calls see the
// in-flight flag and return immediately, so the chain never recurses.
//
// Example feedback chain without the guard:
//
//	left hovered → OnHighlight(true) → right.SetHighlighted(true)
//	→ right fires OnHighlight(true) → left.SetHighlighted(true) → ...
type HighlightSync struct {
	targets  []Highlighter
	changing atomic.Bool // single in-flight flag
	mirrored atomic.Int64
}

// NewHighlightSync links the given drawables.
func NewHighlightSync(targets ...Highlighter) *HighlightSync {
	return &HighlightSync{targets: targets}
}

// Link adds a drawable to the synchronized set.
// Not safe to call while a highlight change is in flight.
func (h *HighlightSync) Link(t Highlighter) {
	h.targets = append(h.targets, t)
}

// OnHighlight propagates a highlight change to every linked drawable.
// Re-entrant calls made while propagating are ignored.
func (h *HighlightSync) OnHighlight(on bool) {
	if !h.changing.CompareAndSwap(false, true) {
		return
	}
	defer h.changing.Store(false)

	for _, t := range h.targets {
		t.SetHighlighted(on)
	}
	h.mirrored.Add(1)
}

// Mirrored returns how many interactions have been propagated.
func (h *HighlightSync) Mirrored() int64 {
	return h.mirrored.Load()
}
