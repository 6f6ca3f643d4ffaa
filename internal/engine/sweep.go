package engine

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/sweeptrace/internal/ir"
)

// Defaults for optional Config fields.
const (
	// DefaultLeadMargin is the fraction of the window the mask runs ahead of the pen.
	DefaultLeadMargin = 0.03

	// DefaultMaxAppendChunk is the soft limit on points per renderer append call.
	// Larger appends are split into chunks rather than handed over in one call.
	DefaultMaxAppendChunk = 10000
)

// Config is the immutable sweep configuration.
type Config struct {
	// WindowWidthMs is the duration covered by one sweep.
	WindowWidthMs float64

	// ValueMin and ValueMax are the fixed Y range; the mask spans it fully.
	ValueMin float64
	ValueMax float64

	// LeadMargin is the mask lead as a fraction of WindowWidthMs.
	LeadMargin float64

	// MaxAppendChunk bounds the number of points per renderer append.
	MaxAppendChunk int
}

// DefaultConfig returns the 14 second ECG configuration.
func DefaultConfig() Config {
	return Config{
		WindowWidthMs:  14000,
		ValueMin:       -2500,
		ValueMax:       2500,
		LeadMargin:     DefaultLeadMargin,
		MaxAppendChunk: DefaultMaxAppendChunk,
	}
}

// Validate checks the configuration for values the sweep cannot work with.
func (c Config) Validate() error {
	switch {
	case !(c.WindowWidthMs > 0) || math.IsInf(c.WindowWidthMs, 0):
		return NewConfigError("window_width_ms", fmt.Sprintf("must be positive and finite, got %v", c.WindowWidthMs))
	case math.IsNaN(c.ValueMin) || math.IsNaN(c.ValueMax) || !(c.ValueMin < c.ValueMax):
		return NewConfigError("value_min", fmt.Sprintf("must be below value_max (%v >= %v)", c.ValueMin, c.ValueMax))
	case !(c.LeadMargin >= 0 && c.LeadMargin < 1):
		return NewConfigError("lead_margin", fmt.Sprintf("must be in [0, 1), got %v", c.LeadMargin))
	case c.MaxAppendChunk <= 0:
		return NewConfigError("max_append_chunk", fmt.Sprintf("must be positive, got %d", c.MaxAppendChunk))
	}
	return nil
}

// State is everything the sweep carries from one batch to the next.
//
// The left trace always equals Cache: both start empty, both get the same
// appends, and both are replaced by the same new-cycle points on rollover.
type State struct {
	// PrevPen is the pen position after the last processed batch.
	PrevPen float64

	// Cache holds the points of the in-progress sweep (the left trace).
	Cache []ir.Point

	// Right holds the frozen previous cycle.
	Right []ir.Point

	// Highlight is the current pen marker, nil before any data.
	Highlight *ir.Point

	// Mask is the last emitted mask rectangle.
	Mask ir.Rect
}

// WrapX maps an absolute timestamp onto the sweep window, in [0, width).
func WrapX(width, timestampMs float64) float64 {
	x := math.Mod(timestampMs, width)
	if x < 0 {
		x += width
	}
	// A tiny negative remainder can round up to width itself.
	if x >= width {
		x = 0
	}
	return x
}

// Wrap converts a batch into window-relative points.
// Samples with a non-finite timestamp have no window position; they are
// dropped and counted.
func Wrap(width float64, batch []ir.Sample) (points []ir.Point, dropped int) {
	points = make([]ir.Point, 0, len(batch))
	for _, s := range batch {
		if math.IsNaN(s.TimestampMs) || math.IsInf(s.TimestampMs, 0) {
			dropped++
			continue
		}
		points = append(points, ir.Point{X: WrapX(width, s.TimestampMs), Y: s.Value})
	}
	return points, dropped
}

// CountRollovers counts wrap-downs against the previous pen position.
//
// A point is "wrapped down" when its X is below prevPen. Only transitions
// into the wrapped-down state count, so a run of wrapped-down points is one
// rollover. A point exactly at prevPen is never wrapped down.
func CountRollovers(points []ir.Point, prevPen float64) int {
	rollovers := 0
	wrapped := false
	for _, p := range points {
		down := p.X < prevPen
		if down && !wrapped {
			rollovers++
		}
		wrapped = down
	}
	return rollovers
}

// SplitCycle partitions a batch holding one rollover by window position.
// Points past prevPen finish the old cycle; points at or before it belong
// to the new one. Batch order is kept within each part.
func SplitCycle(points []ir.Point, prevPen float64) (tail, fresh []ir.Point) {
	for _, p := range points {
		if p.X > prevPen {
			tail = append(tail, p)
		} else {
			fresh = append(fresh, p)
		}
	}
	return tail, fresh
}

// MaskFor returns the mask rectangle for a pen position.
func MaskFor(cfg Config, pen float64) ir.Rect {
	return ir.Rect{
		X1: 0,
		Y1: cfg.ValueMin,
		X2: pen + cfg.LeadMargin*cfg.WindowWidthMs,
		Y2: cfg.ValueMax,
	}
}

// Process runs one sweep step: it consumes a batch and returns the next
// state together with the draw instructions for the frame.
//
// Process takes ownership of st: the returned State may share st's slices,
// so callers must not use st afterwards. The returned Frame never aliases
// state slices except LeftAppend, which is freshly allocated.
//
// ok is false for a batch with no usable samples; state is then returned
// unchanged and no frame must be drawn. The frame's Seq is left zero for
// the caller to assign.
func Process(cfg Config, st State, batch []ir.Sample) (next State, frame ir.Frame, ok bool) {
	points, dropped := Wrap(cfg.WindowWidthMs, batch)
	if len(points) == 0 {
		return st, ir.Frame{}, false
	}

	pen := math.Max(0, points[len(points)-1].X)
	rollovers := CountRollovers(points, st.PrevPen)

	frame = ir.Frame{
		Rollovers: rollovers,
		Pen:       pen,
		Dropped:   dropped,
	}
	next = State{PrevPen: pen}

	switch {
	case rollovers > 1:
		// Two segments cannot represent more than one elapsed sweep.
		// Clear everything and drop the batch.
		frame.Outcome = ir.OutcomeOverflow
		frame.ReplaceLeft = true
		frame.Left = []ir.Point{}
		frame.ReplaceRight = true
		frame.Right = []ir.Point{}
		next.Mask = ir.Rect{Y1: cfg.ValueMin, Y2: cfg.ValueMax}
		frame.Mask = next.Mask
		return next, frame, true

	case rollovers == 1:
		tail, fresh := SplitCycle(points, st.PrevPen)

		right := make([]ir.Point, 0, len(st.Cache)+len(tail))
		right = append(right, st.Cache...)
		right = append(right, tail...)

		next.Right = right
		next.Cache = fresh

		frame.Outcome = ir.OutcomeRollover
		frame.ReplaceRight = true
		frame.Right = slices.Clone(right)
		frame.ReplaceLeft = true
		frame.Left = slices.Clone(fresh)

	default:
		next.Right = st.Right
		next.Cache = append(st.Cache, points...)

		frame.Outcome = ir.OutcomeContinue
		frame.LeftAppend = points
	}

	hl := points[len(points)-1]
	if len(next.Cache) > 0 {
		hl = next.Cache[len(next.Cache)-1]
	}
	next.Highlight = &hl
	frameHL := hl
	frame.Highlight = &frameHL

	next.Mask = MaskFor(cfg, pen)
	frame.Mask = next.Mask

	return next, frame, true
}

// Sweep owns a sweep state and assigns frame sequence numbers.
//
// Sweep is not safe for concurrent use. Scope serializes all calls through
// its Run loop.
type Sweep struct {
	cfg    Config
	state  State
	seq    int64
	logger *slog.Logger
}

// SweepOption configures a Sweep.
type SweepOption func(*Sweep)

// WithLogger sets the logger used for rollover and overflow reports.
func WithLogger(l *slog.Logger) SweepOption {
	return func(s *Sweep) {
		s.logger = l
	}
}

// WithState starts the sweep from a previously captured state.
// Used by scenarios and replay to resume mid-cycle.
func WithState(st State) SweepOption {
	return func(s *Sweep) {
		s.state = cloneState(st)
	}
}

// WithSeq starts frame numbering after seq.
func WithSeq(seq int64) SweepOption {
	return func(s *Sweep) {
		s.seq = seq
	}
}

// NewSweep creates a sweep with empty state.
func NewSweep(cfg Config, opts ...SweepOption) (*Sweep, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sweep{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process consumes a batch and returns its frame.
// Returns false, without touching state, when the batch is empty.
func (s *Sweep) Process(batch []ir.Sample) (ir.Frame, bool) {
	next, frame, ok := Process(s.cfg, s.state, batch)
	if !ok {
		return ir.Frame{}, false
	}

	s.seq++
	frame.Seq = s.seq
	s.state = next

	switch frame.Outcome {
	case ir.OutcomeOverflow:
		s.logger.Info("sweep overflow: traces reset",
			"seq", frame.Seq,
			"rollovers", frame.Rollovers,
			"dropped_samples", len(batch),
			"pen", frame.Pen,
		)
	case ir.OutcomeRollover:
		s.logger.Debug("sweep rollover",
			"seq", frame.Seq,
			"right_points", len(frame.Right),
			"left_points", len(frame.Left),
		)
	}
	if frame.Dropped > 0 {
		s.logger.Debug("dropped samples without finite timestamp",
			"seq", frame.Seq,
			"count", frame.Dropped,
		)
	}

	return frame, true
}

// Config returns the sweep configuration.
func (s *Sweep) Config() Config {
	return s.cfg
}

// Seq returns the sequence number of the last emitted frame.
func (s *Sweep) Seq() int64 {
	return s.seq
}

// State returns a deep copy of the current state.
func (s *Sweep) State() State {
	return cloneState(s.state)
}

// Left returns a copy of the left trace.
func (s *Sweep) Left() []ir.Point {
	return slices.Clone(s.state.Cache)
}

// Right returns a copy of the right trace.
func (s *Sweep) Right() []ir.Point {
	return slices.Clone(s.state.Right)
}

// Highlight returns the highlighted point, if any.
func (s *Sweep) Highlight() (ir.Point, bool) {
	if s.state.Highlight == nil {
		return ir.Point{}, false
	}
	return *s.state.Highlight, true
}

// Mask returns the current mask rectangle.
func (s *Sweep) Mask() ir.Rect {
	return s.state.Mask
}

// PrevPen returns the pen position after the last processed batch.
func (s *Sweep) PrevPen() float64 {
	return s.state.PrevPen
}

// Reset discards all state. Frame numbering continues.
func (s *Sweep) Reset() {
	s.state = State{}
}

func cloneState(st State) State {
	out := State{
		PrevPen: st.PrevPen,
		Cache:   slices.Clone(st.Cache),
		Right:   slices.Clone(st.Right),
		Mask:    st.Mask,
	}
	if st.Highlight != nil {
		hl := *st.Highlight
		out.Highlight = &hl
	}
	return out
}
