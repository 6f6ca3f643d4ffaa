package store

import (
	"context"
	"fmt"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
)

// Session describes one recorded scope run.
type Session struct {
	ID            string
	Name          string
	Source        string
	Config        engine.Config
	EngineVersion string
	FrameVersion  string
	Ended         bool
}

// FrameRecord is a stored frame together with its input batch.
type FrameRecord struct {
	Seq         int64
	Outcome     ir.Outcome
	Rollovers   int
	Pen         float64
	Dropped     int
	Samples     []ir.Sample
	BatchDigest string
	Frame       string // canonical JSON
	FrameDigest string
}

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - reopening a session with
// the same ID keeps the original record.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	cfgJSON, err := marshalConfig(sess.Config)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, name, source, config, engine_version, frame_version, ended)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Name,
		sess.Source,
		cfgJSON,
		sess.EngineVersion,
		sess.FrameVersion,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// EndSession marks a session as cleanly finished.
func (s *Store) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET ended = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session: %w", ErrSessionNotFound)
	}
	return nil
}

// WriteFrame stores a processed batch and the frame it produced, atomically.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same seq twice
// keeps the first record.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteFrame(ctx context.Context, sessionID string, batch []ir.Sample, frame ir.Frame) error {
	samplesJSON, err := marshalSamples(batch)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	batchDigest, err := ir.BatchDigest(batch)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	frameJSON, err := marshalFrame(frame)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	frameDigest, err := ir.FrameDigest(frame)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write frame: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (session_id, seq, samples, digest)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, sessionID, frame.Seq, samplesJSON, batchDigest)
	if err != nil {
		return fmt.Errorf("write frame: insert batch: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO frames (session_id, seq, outcome, rollovers, pen, dropped, frame, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		frame.Seq,
		string(frame.Outcome),
		frame.Rollovers,
		frame.Pen,
		frame.Dropped,
		frameJSON,
		frameDigest,
	)
	if err != nil {
		return fmt.Errorf("write frame: insert frame: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write frame: commit: %w", err)
	}
	return nil
}
