package llm

import (
	"context"
	"errors"
	"sync"
)

// MockReply is a canned completion for MockOracle.
type MockReply struct {
	Text string
	Err  error
}

// MockOracle is a deterministic Provider for tests.
// It returns canned replies in FIFO order and records every prompt.
// An empty queue behaves like an unreachable backend.
type MockOracle struct {
	mu      sync.Mutex
	replies []MockReply
	Prompts []string
}

// NewMockOracle creates a MockOracle with the given canned replies.
func NewMockOracle(replies ...MockReply) *MockOracle {
	return &MockOracle{replies: replies}
}

// Text is a convenience for a successful canned reply.
func Text(s string) MockReply {
	return MockReply{Text: s}
}

// Down is a convenience for a canned unavailability error.
func Down() MockReply {
	return MockReply{Err: &ErrOracleUnavailable{Err: errors.New("mock: backend down")}}
}

func (m *MockOracle) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	if len(m.replies) == 0 {
		return "", &ErrOracleUnavailable{}
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Add appends canned replies to the queue.
func (m *MockOracle) Add(replies ...MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// CallCount returns the number of Complete calls made.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

func (m *MockOracle) ModelID() string { return "mock" }

func (m *MockOracle) Ping(context.Context) error { return nil }
