package ir

import "fmt"

// Sample is one timestamped measurement pushed by a data source.
type Sample struct {
	TimestampMs float64 `json:"t" yaml:"t"`
	Value       float64 `json:"y" yaml:"y"`
}

// Point is a window-relative point: X is the position inside the sweep
// window, Y the sample value.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// String renders the point as "(x,y)".
func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Rect is an axis-aligned rectangle in window coordinates.
type Rect struct {
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y2 float64 `json:"y2" yaml:"y2"`
}

// Width returns X2-X1.
func (r Rect) Width() float64 {
	return r.X2 - r.X1
}

// Covers reports whether x lies inside the rectangle's X extent.
func (r Rect) Covers(x float64) bool {
	return x >= r.X1 && x <= r.X2
}

// Outcome classifies what a processed batch did to the sweep.
type Outcome string

const (
	// OutcomeContinue means the batch extended the current sweep.
	OutcomeContinue Outcome = "continue"

	// OutcomeRollover means the pen crossed the right edge exactly once:
	// the completed cycle became the right trace.
	OutcomeRollover Outcome = "rollover"

	// OutcomeOverflow means more than one sweep elapsed within the batch.
	// All traces were cleared and the batch was dropped.
	OutcomeOverflow Outcome = "overflow"
)

// Frame is the set of draw instructions produced by processing one batch.
//
// Exactly one of LeftAppend / Left is meaningful, selected by ReplaceLeft.
// Right is only meaningful when ReplaceRight is set. A nil Highlight clears
// the highlight marker.
type Frame struct {
	Seq       int64   `json:"seq"`
	Outcome   Outcome `json:"outcome"`
	Rollovers int     `json:"rollovers"`
	Pen       float64 `json:"pen"`
	Dropped   int     `json:"dropped,omitempty"`

	LeftAppend   []Point `json:"left_append,omitempty"`
	ReplaceLeft  bool    `json:"replace_left,omitempty"`
	Left         []Point `json:"left,omitempty"`
	ReplaceRight bool    `json:"replace_right,omitempty"`
	Right        []Point `json:"right,omitempty"`

	Highlight *Point `json:"highlight,omitempty"`
	Mask      Rect   `json:"mask"`
}
