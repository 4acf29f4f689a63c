package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Session kinds.
const (
	KindLive = "live"
	KindScan = "scan"
)

// ErrSessionNotFound is returned when an update targets an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Store manages the PostgreSQL connection for session history.
type Store struct {
	conn *pgx.Conn
}

// Session is one row of the sessions table.
type Session struct {
	ID          string
	Kind        string
	Source      string
	StartedAt   time.Time
	EndedAt     *time.Time
	Frames      int
	Faces       int
	Masked      int
	Screenshots int
	Note        string
}

// Totals are the counters written when a session finishes.
type Totals struct {
	Frames      int
	Faces       int
	Masked      int
	Screenshots int
}

// FrameStat is one analyzed frame of a scan.
type FrameStat struct {
	FrameIndex int
	Faces      int
	Masked     int
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			source TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ended_at TIMESTAMPTZ,
			frames INT NOT NULL DEFAULT 0,
			faces INT NOT NULL DEFAULT 0,
			masked INT NOT NULL DEFAULT 0,
			screenshots INT NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS screenshots (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			number INT NOT NULL,
			path TEXT NOT NULL,
			faces INT NOT NULL,
			masked INT NOT NULL,
			taken_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS frame_stats (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			faces INT NOT NULL,
			masked INT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS frame_stats_session_id_idx ON frame_stats (session_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// StartSession inserts a new session and returns its ID.
func (s *Store) StartSession(ctx context.Context, kind, source string) (string, error) {
	id := uuid.NewString()
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sessions (id, kind, source, started_at)
		VALUES ($1, $2, $3, NOW())
	`, id, kind, source)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishSession stamps the end time and final counters.
func (s *Store) FinishSession(ctx context.Context, id string, t Totals) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE sessions
		SET ended_at = NOW(), frames = $2, faces = $3, masked = $4, screenshots = $5
		WHERE id = $1
	`, id, t.Frames, t.Faces, t.Masked, t.Screenshots)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// InsertScreenshot records a saved screenshot.
func (s *Store) InsertScreenshot(ctx context.Context, sessionID string, number int, path string, faces, masked int, takenAt time.Time) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO screenshots (session_id, number, path, faces, masked, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, number, path, faces, masked, takenAt)
	return err
}

// InsertFrameStats saves a batch of per-frame counts in one round trip.
func (s *Store) InsertFrameStats(ctx context.Context, sessionID string, stats []FrameStat) error {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]any, len(stats))
	for i, st := range stats {
		rows[i] = []any{sessionID, st.FrameIndex, st.Faces, st.Masked}
	}
	_, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{"frame_stats"},
		[]string{"session_id", "frame_index", "faces", "masked"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, kind, source, started_at, ended_at, frames, faces, masked, screenshots, note
		FROM sessions
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Session, error) {
		var ses Session
		err := row.Scan(&ses.ID, &ses.Kind, &ses.Source, &ses.StartedAt, &ses.EndedAt,
			&ses.Frames, &ses.Faces, &ses.Masked, &ses.Screenshots, &ses.Note)
		return ses, err
	})
}

// CountFrameStats returns how many frame rows a session has.
func (s *Store) CountFrameStats(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM frame_stats WHERE session_id = $1", sessionID).Scan(&n)
	return n, err
}

// NoteSession attaches a free-form note to a session.
func (s *Store) NoteSession(ctx context.Context, id, note string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE sessions SET note = $1 WHERE id = $2", note, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Reset drops all application tables to clear the database state.
// The next New call recreates them.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS frame_stats CASCADE;
		DROP TABLE IF EXISTS screenshots CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
	`)
	return err
}
