package services

import (
	"context"
	"slices"
	"sync"

	"github.com/jwebster45206/taleparty/pkg/chat"
)

// MockNarrator is a mock implementation of Narrator for testing and for
// running the API without a provider.
type MockNarrator struct {
	CompleteFunc func(ctx context.Context, instruction string, history []chat.Message) (string, error)

	// Responses are returned in order when CompleteFunc is nil. The last one
	// repeats once the list is exhausted.
	Responses []string

	// Track calls for testing
	CompleteCalls []CompleteCall

	mu sync.Mutex // protects all fields above
}

type CompleteCall struct {
	Instruction string
	History     []chat.Message
}

// Ensure MockNarrator implements Narrator interface
var _ Narrator = (*MockNarrator)(nil)

// NewMockNarrator creates a mock that answers with the given responses.
func NewMockNarrator(responses ...string) *MockNarrator {
	return &MockNarrator{
		Responses:     responses,
		CompleteCalls: make([]CompleteCall, 0),
	}
}

func (m *MockNarrator) Name() string {
	return "mock"
}

// Complete records the call and returns the next scripted response.
func (m *MockNarrator) Complete(ctx context.Context, instruction string, history []chat.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteCalls = append(m.CompleteCalls, CompleteCall{
		Instruction: instruction,
		History:     slices.Clone(history),
	})

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, instruction, history)
	}

	switch len(m.Responses) {
	case 0:
		return "The story continues.", nil
	case 1:
		return m.Responses[0], nil
	default:
		next := m.Responses[0]
		m.Responses = m.Responses[1:]
		return next, nil
	}
}

// SetError sets up the mock to fail every completion with err.
func (m *MockNarrator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = func(ctx context.Context, instruction string, history []chat.Message) (string, error) {
		return "", err
	}
}

// SetResponse sets up the mock to answer every completion with text.
func (m *MockNarrator) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = nil
	m.Responses = []string{text}
}

// Reset clears all call tracking
func (m *MockNarrator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = make([]CompleteCall, 0)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockNarrator) GetCalls() []CompleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.CompleteCalls)
}
