package engine

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/sweeptrace/internal/ir"
)

// FrameRecorder receives every processed batch with the frame it produced.
// Implemented by store.Recorder for session recording and replay.
type FrameRecorder interface {
	RecordFrame(ctx context.Context, batch []ir.Sample, frame ir.Frame) error
}

// Stats are running counters of a scope, safe to read from any goroutine.
type Stats struct {
	Frames    int64
	Samples   int64
	Rollovers int64
	Overflows int64
	Errors    int64
}

// Scope is the frame-driven loop around a Sweep.
//
// Producers Push samples from any goroutine. Run, called from exactly one
// goroutine, is the only code touching sweep state:
//
//  1. Block until a push requests a frame (no polling while idle)
//  2. Wait for the next display frame from the FrameClock
//  3. Drain the ingest buffer and process the whole batch synchronously
//  4. Apply the frame to the renderer and hand it to recorders
//
// However many pushes happen between two frames, they are processed in one
// pass. Processing never overlaps with itself: the next frame can only be
// scheduled once the loop is back at step 1.
//
// ERROR HANDLING: a renderer or recorder failure is logged and the loop
// continues. The next frame's batch is processed independently; there is
// no retry.
type Scope struct {
	sweep     *Sweep
	buf       *IngestBuffer
	renderer  Renderer
	clock     FrameClock
	recorders []FrameRecorder
	logger    *slog.Logger

	running atomic.Bool

	frames    atomic.Int64
	samples   atomic.Int64
	rollovers atomic.Int64
	overflows atomic.Int64
	errors    atomic.Int64
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithFrameClock sets the display cadence.
// Default: NewIntervalClock(DefaultFPS).
func WithFrameClock(c FrameClock) ScopeOption {
	return func(s *Scope) {
		s.clock = c
	}
}

// WithRecorder adds a recorder that sees every frame.
func WithRecorder(r FrameRecorder) ScopeOption {
	return func(s *Scope) {
		s.recorders = append(s.recorders, r)
	}
}

// WithScopeLogger sets the logger for frame errors and lifecycle events.
func WithScopeLogger(l *slog.Logger) ScopeOption {
	return func(s *Scope) {
		s.logger = l
	}
}

// NewScope creates a scope drawing the given sweep onto r.
func NewScope(sweep *Sweep, r Renderer, opts ...ScopeOption) *Scope {
	s := &Scope{
		sweep:    sweep,
		buf:      NewIngestBuffer(),
		renderer: r,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewIntervalClock(DefaultFPS)
	}
	return s
}

// Push submits a sample for the next frame.
// Thread-safe: may be called from any goroutine.
// Returns false once the scope has been closed.
func (s *Scope) Push(sample ir.Sample) bool {
	return s.buf.Push(sample)
}

// PushBatch submits samples for the next frame, in order.
// Returns false once the scope has been closed.
func (s *Scope) PushBatch(samples []ir.Sample) bool {
	return s.buf.PushBatch(samples)
}

// Run starts the frame loop.
// Blocks until the context is cancelled or Close is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. A second concurrent
// call returns ErrCodeScopeRunning.
//
// On return the frame clock is stopped, the ingest buffer is closed and the
// sweep state is discarded, in that order: a pending frame is cancelled
// before state goes away, and nothing is drained or processed afterwards.
func (s *Scope) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return &RuntimeError{Code: ErrCodeScopeRunning, Message: "scope is already running"}
	}
	defer s.teardown()

	select {
	case <-s.buf.Done():
		return ErrScopeClosed
	default:
	}

	s.logger.Info("scope starting")

	for {
		// Idle: wait for a frame request.
		select {
		case <-ctx.Done():
			s.logger.Info("scope stopping: context cancelled")
			return ctx.Err()
		case <-s.buf.Done():
			s.logger.Info("scope stopping: closed")
			return nil
		case <-s.buf.Wait():
		}

		// Pushes that landed during the last frame leave a signal for
		// samples that frame already drained.
		if s.buf.Len() == 0 {
			continue
		}

		// Pending: wait for the display frame.
		select {
		case <-ctx.Done():
			s.logger.Info("scope stopping: context cancelled")
			return ctx.Err()
		case <-s.buf.Done():
			s.logger.Info("scope stopping: closed")
			return nil
		case <-s.clock.NextFrame():
		}

		s.processFrame(ctx)
	}
}

// processFrame drains the buffer and draws the result.
// CRITICAL: Called only from Run() goroutine.
func (s *Scope) processFrame(ctx context.Context) {
	batch := s.buf.DrainAll()
	frame, ok := s.sweep.Process(batch)
	if !ok {
		return
	}

	s.frames.Add(1)
	s.samples.Add(int64(len(batch)))
	switch frame.Outcome {
	case ir.OutcomeRollover:
		s.rollovers.Add(1)
	case ir.OutcomeOverflow:
		s.overflows.Add(1)
	}

	if err := Apply(s.renderer, frame, s.sweep.Config().MaxAppendChunk); err != nil {
		s.errors.Add(1)
		s.logger.Error("frame render failed",
			"seq", frame.Seq,
			"outcome", frame.Outcome,
			"error", err,
		)
	}

	for _, rec := range s.recorders {
		if err := rec.RecordFrame(ctx, batch, frame); err != nil {
			s.errors.Add(1)
			s.logger.Error("frame record failed",
				"seq", frame.Seq,
				"samples", len(batch),
				"error", err,
			)
		}
	}
}

// Close tears the scope down. Run returns, pending samples are discarded
// and further pushes are rejected. Safe to call more than once.
func (s *Scope) Close() {
	s.buf.Close()
}

// Done returns a channel closed once the scope has been closed.
func (s *Scope) Done() <-chan struct{} {
	return s.buf.Done()
}

func (s *Scope) teardown() {
	s.clock.Stop()
	s.buf.Close()
	s.sweep.Reset()
	s.logger.Info("scope stopped",
		"frames", s.frames.Load(),
		"overflows", s.overflows.Load(),
	)
}

// Stats returns a snapshot of the running counters.
func (s *Scope) Stats() Stats {
	return Stats{
		Frames:    s.frames.Load(),
		Samples:   s.samples.Load(),
		Rollovers: s.rollovers.Load(),
		Overflows: s.overflows.Load(),
		Errors:    s.errors.Load(),
	}
}

// Pending returns the number of samples waiting for the next frame.
func (s *Scope) Pending() int {
	return s.buf.Len()
}
