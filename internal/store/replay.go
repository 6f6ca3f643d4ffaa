package store

import (
	"context"
	"fmt"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
)

// SessionState summarizes a recorded session.
type SessionState struct {
	Session   Session
	Frames    int
	Samples   int
	LastSeq   int64
	Rollovers int
	Overflows int
	Dropped   int
	Gaps      []int64 // seqs missing from the recording
}

// GetSessionState reads a session and aggregates its frame log.
func (s *Store) GetSessionState(ctx context.Context, id string) (SessionState, error) {
	sess, err := s.ReadSession(ctx, id)
	if err != nil {
		return SessionState{}, fmt.Errorf("get session state: %w", err)
	}

	frames, err := s.ReadFrames(ctx, id)
	if err != nil {
		return SessionState{}, fmt.Errorf("get session state: %w", err)
	}

	state := SessionState{Session: sess, Frames: len(frames)}
	for _, f := range frames {
		for seq := state.LastSeq + 1; seq < f.Seq; seq++ {
			state.Gaps = append(state.Gaps, seq)
		}
		state.LastSeq = f.Seq
		state.Samples += len(f.Samples)
		state.Dropped += f.Dropped
		switch f.Outcome {
		case ir.OutcomeRollover:
			state.Rollovers++
		case ir.OutcomeOverflow:
			state.Overflows++
		}
	}
	return state, nil
}

// FindIncompleteSessions returns sessions that were never ended, such as
// runs killed before their scope shut down. Ordered by ID.
func (s *Store) FindIncompleteSessions(ctx context.Context) ([]Session, error) {
	all, err := s.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("find incomplete sessions: %w", err)
	}
	incomplete := []Session{}
	for _, sess := range all {
		if !sess.Ended {
			incomplete = append(incomplete, sess)
		}
	}
	return incomplete, nil
}

// Mismatch is a frame whose replayed digest differs from the recording.
type Mismatch struct {
	Seq      int64
	Recorded FrameRecord
	Replayed ir.Frame
	Digest   string // digest of Replayed
}

// ReplayResult is the outcome of re-running a session.
type ReplayResult struct {
	SessionID  string
	Frames     int
	Mismatches []Mismatch
}

// OK reports whether every replayed frame matched its recording.
func (r ReplayResult) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay feeds the recorded batches of a session through a fresh sweep
// built from the recorded configuration, comparing frame digests.
//
// A recording with gaps cannot be replayed faithfully; the first missing
// seq is reported as an error.
func (s *Store) Replay(ctx context.Context, id string, opts ...engine.SweepOption) (ReplayResult, error) {
	state, err := s.GetSessionState(ctx, id)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	if len(state.Gaps) > 0 {
		return ReplayResult{}, fmt.Errorf("replay: session %q is missing frame seq=%d", id, state.Gaps[0])
	}

	sweep, err := engine.NewSweep(state.Session.Config, opts...)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	frames, err := s.ReadFrames(ctx, id)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{SessionID: id}
	for _, rec := range frames {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		frame, ok := sweep.Process(rec.Samples)
		if !ok {
			// Recorded batches always produced a frame.
			result.Mismatches = append(result.Mismatches, Mismatch{Seq: rec.Seq, Recorded: rec})
			continue
		}
		result.Frames++

		digest, err := ir.FrameDigest(frame)
		if err != nil {
			return result, fmt.Errorf("replay: seq=%d: %w", rec.Seq, err)
		}
		if digest != rec.FrameDigest {
			result.Mismatches = append(result.Mismatches, Mismatch{
				Seq:      rec.Seq,
				Recorded: rec,
				Replayed: frame,
				Digest:   digest,
			})
		}
	}
	return result, nil
}
