package services

import (
	"context"
	"sync"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// MockProvider is a scriptable ProviderClient for tests. Responses are
// consumed in order; when the queue is empty the default response is
// returned.
type MockProvider struct {
	mu        sync.Mutex
	queue     []mockReply
	fallback  mockReply
	requests  []GenerateRequest
	available bool
}

type mockReply struct {
	resp *prayer.AIResponse
	err  error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		fallback: mockReply{resp: &prayer.AIResponse{
			Success:  true,
			Dialogue: "The mock deity acknowledges you.",
		}},
		available: true,
	}
}

// QueueResponse appends a scripted successful response.
func (m *MockProvider) QueueResponse(dialogue string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{resp: &prayer.AIResponse{
		Success:  true,
		Dialogue: dialogue,
	}})
	return m
}

// QueueError appends a scripted call failure.
func (m *MockProvider) QueueError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
	return m
}

// SetAvailable toggles the credential-presence check.
func (m *MockProvider) SetAvailable(v bool) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = v
	return m
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (*prayer.AIResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	reply := m.fallback
	if len(m.queue) > 0 {
		reply = m.queue[0]
		m.queue = m.queue[1:]
	}
	if reply.err != nil {
		return nil, reply.err
	}
	// Copy so callers cannot mutate scripted state.
	resp := *reply.resp
	return &resp, nil
}

func (m *MockProvider) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *MockProvider) Name() string { return "mock" }

// Requests returns every request seen so far.
func (m *MockProvider) Requests() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many Generate calls were made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
