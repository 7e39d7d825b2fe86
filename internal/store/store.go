package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/socratic/internal/model"

	_ "modernc.org/sqlite"
)

// Store keeps dialogue sessions and service metadata in SQLite.
type Store struct {
	db       *sql.DB
	verified verifiedToken
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dialogue_sessions (
		student_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		topic TEXT NOT NULL,
		current_index INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_unix INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dialogue_sessions_updated ON dialogue_sessions(updated_unix);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession inserts or replaces the session of sess.StudentID.
func (s *Store) SaveSession(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dialogue_sessions (student_id, id, topic, current_index, completed, data, created_at, updated_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_id) DO UPDATE SET
		   id = excluded.id, topic = excluded.topic, current_index = excluded.current_index,
		   completed = excluded.completed, data = excluded.data, created_at = excluded.created_at,
		   updated_unix = excluded.updated_unix`,
		sess.StudentID, sess.ID, sess.Topic, sess.CurrentIndex, sess.Completed, string(data),
		sess.CreatedAt, sess.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		slog.Error("failed to save session", "student", sess.StudentID, "error", err)
	}
	return err
}

// GetSession returns the session for a student, or nil if there is none.
func (s *Store) GetSession(ctx context.Context, studentID string) (*model.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM dialogue_sessions WHERE student_id = ?`, studentID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", studentID, err)
	}
	return &sess, nil
}

// DeleteSession removes a student's session. Missing sessions are not an error.
func (s *Store) DeleteSession(ctx context.Context, studentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dialogue_sessions WHERE student_id = ?`, studentID)
	return err
}

// DeleteExpired removes sessions last updated before the given time.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dialogue_sessions WHERE updated_unix < ?`, before.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListSessions returns summaries of all sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, topic, current_index, completed, updated_unix
		 FROM dialogue_sessions ORDER BY updated_unix DESC, student_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionSummary
	for rows.Next() {
		var sum model.SessionSummary
		var updated int64
		if err := rows.Scan(&sum.ID, &sum.StudentID, &sum.Topic, &sum.CurrentIndex, &sum.Completed, &updated); err != nil {
			return nil, err
		}
		sum.UpdatedAt = time.UnixMilli(updated).UTC()
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dialogue_sessions`).Scan(&count)
	return count, err
}
