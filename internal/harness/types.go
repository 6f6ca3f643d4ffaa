package harness

import (
	"github.com/roach88/sweeptrace/internal/ir"
)

// FinalState is the sweep as drawn after the last batch, read back from
// the renderer.
type FinalState struct {
	Left      []ir.Point `json:"left"`
	Right     []ir.Point `json:"right"`
	Highlight *ir.Point  `json:"highlight,omitempty"`
	Mask      ir.Rect    `json:"mask"`
	PrevPen   float64    `json:"prev_pen"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expectation and assertion held.
	Pass bool `json:"pass"`

	// Frames are the frames produced, in order. Batches that produced no
	// frame are absent.
	Frames []ir.Frame `json:"frames"`

	// Final is the state after the last batch.
	Final FinalState `json:"final"`

	// SessionID is the recorded session the run was written to.
	SessionID string `json:"session_id"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Frames: []ir.Frame{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Outcomes returns the outcome of every frame, in order.
func (r *Result) Outcomes() []ir.Outcome {
	out := make([]ir.Outcome, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = f.Outcome
	}
	return out
}
