package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pavelanni/socratic/internal/model"
)

// Memory is a process-local session store. Sessions are copied on the way in
// and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*model.Session)}
}

func (m *Memory) GetSession(_ context.Context, studentID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[studentID].Clone(), nil
}

func (m *Memory) SaveSession(_ context.Context, sess *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.StudentID] = sess.Clone()
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, studentID)
	return nil
}

// Ping always succeeds; the store lives in process.
func (m *Memory) Ping(context.Context) error { return nil }

// DeleteExpired removes sessions last updated before the given time.
func (m *Memory) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, sess := range m.sessions {
		if sess.UpdatedAt.Before(before) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// ListSessions returns summaries, most recently updated first.
func (m *Memory) ListSessions(_ context.Context) ([]model.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.SessionSummary, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, model.SessionSummary{
			ID:           sess.ID,
			StudentID:    sess.StudentID,
			Topic:        sess.Topic,
			CurrentIndex: sess.CurrentIndex,
			Completed:    sess.Completed,
			UpdatedAt:    sess.UpdatedAt,
		})
	}
	slices.SortFunc(out, func(a, b model.SessionSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.StudentID, b.StudentID)
	})
	return out, nil
}
