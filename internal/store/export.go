package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/socratic/internal/model"
)

// ExportAllSessions builds export-ready results from all stored sessions,
// oldest first.
func (s *Store) ExportAllSessions(ctx context.Context) ([]model.StudentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, data FROM dialogue_sessions ORDER BY created_at, student_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	results := []model.StudentResult{}
	for rows.Next() {
		var studentID, data string
		if err := rows.Scan(&studentID, &data); err != nil {
			return nil, err
		}
		var sess model.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", studentID, err)
		}
		results = append(results, model.ExportResult(&sess))
	}
	return results, rows.Err()
}
