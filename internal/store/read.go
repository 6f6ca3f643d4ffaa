package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sweeptrace/internal/ir"
	"github.com/roach88/sweeptrace/internal/queryir"
	"github.com/roach88/sweeptrace/internal/querysql"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession retrieves a session by ID.
// Returns ErrSessionNotFound if it does not exist.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source, config, engine_version, frame_version, ended
		FROM sessions
		WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session %q: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by ID.
// UUIDv7 IDs sort in creation order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source, config, engine_version, frame_version, ended
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadFrames returns every recorded frame of a session ordered by seq.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadFrames(ctx context.Context, sessionID string) ([]FrameRecord, error) {
	return s.QueryFrames(ctx, sessionID, queryir.Select{})
}

// ReadFramesByOutcome returns the frames of a session with the given outcome,
// ordered by seq.
func (s *Store) ReadFramesByOutcome(ctx context.Context, sessionID string, outcome ir.Outcome) ([]FrameRecord, error) {
	return s.QueryFrames(ctx, sessionID, queryir.Select{Filter: queryir.OutcomeIs(outcome)})
}

// QueryFrames returns the frames of a session matching q, ordered by seq.
// Returns an empty slice (not nil) if none match.
func (s *Store) QueryFrames(ctx context.Context, sessionID string, q queryir.Select) ([]FrameRecord, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(sessionID, q)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	return s.queryFrames(ctx, query, params...)
}

func (s *Store) queryFrames(ctx context.Context, query string, args ...any) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []FrameRecord{}
	for rows.Next() {
		var rec FrameRecord
		var outcome, samplesJSON string
		if err := rows.Scan(
			&rec.Seq,
			&outcome,
			&rec.Rollovers,
			&rec.Pen,
			&rec.Dropped,
			&rec.Frame,
			&rec.FrameDigest,
			&samplesJSON,
			&rec.BatchDigest,
		); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		rec.Outcome = ir.Outcome(outcome)

		rec.Samples, err = unmarshalSamples(samplesJSON)
		if err != nil {
			return nil, fmt.Errorf("frame seq=%d: %w", rec.Seq, err)
		}
		frames = append(frames, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var sess Session
	var cfgJSON string
	var ended int
	if err := sc.Scan(
		&sess.ID,
		&sess.Name,
		&sess.Source,
		&cfgJSON,
		&sess.EngineVersion,
		&sess.FrameVersion,
		&ended,
	); err != nil {
		return Session{}, err
	}

	cfg, err := unmarshalConfig(cfgJSON)
	if err != nil {
		return Session{}, err
	}
	sess.Config = cfg
	sess.Ended = ended != 0
	return sess, nil
}
