package generation

import (
	"context"
	"sync"
)

// MockGenerator is a scripted generator for tests. Each Generate call
// returns the next queued response, repeating the last one once the
// queue is exhausted, and records the prompt it was given.
type MockGenerator struct {
	Responses []string
	Err       error

	mu      sync.Mutex
	calls   int
	Prompts []string
}

// NewMockGenerator returns a generator that replays the given responses.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{Responses: responses}
}

// Generate returns the next scripted response.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}

	m.Prompts = append(m.Prompts, prompt)
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx], nil
}

// Model identifies the mock.
func (m *MockGenerator) Model() string {
	return "mock"
}

// Ping always succeeds unless an error is scripted.
func (m *MockGenerator) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// CallCount returns how many Generate calls succeeded.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
