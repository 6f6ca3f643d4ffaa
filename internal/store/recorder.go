package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
)

// Recorder persists every frame of a scope into one session.
// Implements engine.FrameRecorder.
type Recorder struct {
	store     *Store
	sessionID string
	frames    atomic.Int64
}

// NewRecorder starts a session and returns a recorder writing into it.
// An empty sess.ID is filled in by gen.
func NewRecorder(ctx context.Context, s *Store, sess Session, gen engine.SessionIDGenerator) (*Recorder, error) {
	if sess.ID == "" {
		sess.ID = gen.Generate()
	}
	if sess.EngineVersion == "" {
		sess.EngineVersion = ir.EngineVersion
	}
	if sess.FrameVersion == "" {
		sess.FrameVersion = ir.FrameVersion
	}
	if err := s.WriteSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("start recording: %w", err)
	}
	return &Recorder{store: s, sessionID: sess.ID}, nil
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Frames returns the number of frames written.
func (r *Recorder) Frames() int64 {
	return r.frames.Load()
}

// RecordFrame implements engine.FrameRecorder.
func (r *Recorder) RecordFrame(ctx context.Context, batch []ir.Sample, frame ir.Frame) error {
	if err := r.store.WriteFrame(ctx, r.sessionID, batch, frame); err != nil {
		return err
	}
	r.frames.Add(1)
	return nil
}

// Finish marks the session as ended.
func (r *Recorder) Finish(ctx context.Context) error {
	return r.store.EndSession(ctx, r.sessionID)
}
