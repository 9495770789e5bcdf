package convo

import (
	"context"
	"sync"

	"ai-speech-practice-agent/internal/session"
)

// MockGenerator is a scripted Generator for development and tests.
// Replies cycle through Replies; with none configured a fixed phrase is
// returned.
type MockGenerator struct {
	Replies []string
	// Fail makes every call return this error when non-nil.
	Fail error

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock generator with default replies.
func NewMock() *MockGenerator {
	return &MockGenerator{
		Replies: []string{
			"That sounds interesting, tell me more.",
			"Nice, what happened next?",
			"I see, and how did that make you feel?",
		},
	}
}

// Generate returns the next scripted reply.
func (m *MockGenerator) Generate(ctx context.Context, systemPrompt string, past []session.Turn, current string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return "", m.Fail
	}
	m.calls++
	if len(m.Replies) == 0 {
		return "Tell me more about that.", nil
	}
	return m.Replies[(m.calls-1)%len(m.Replies)], nil
}

// Calls returns how many generations were requested.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
