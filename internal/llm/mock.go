package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests.
type MockProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	errs      []error
	fallback  *ChatResponse
	requests  []ChatRequest

	// ChatFunc, when set, replaces the scripted responses.
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// NewMockProvider returns a mock that answers "ok" until scripted otherwise.
func NewMockProvider() *MockProvider {
	return &MockProvider{fallback: &ChatResponse{Content: "ok", StopReason: "stop", Model: "mock"}}
}

// SetResponse sets the reply returned once the queue is empty.
func (m *MockProvider) SetResponse(content string, toolCalls []ToolCallResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &ChatResponse{Content: content, ToolCalls: toolCalls, StopReason: "stop", Model: "mock"}
}

// QueueResponse appends a reply consumed by the next call.
func (m *MockProvider) QueueResponse(resp *ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, nil)
}

// QueueError appends an error returned by the next call.
func (m *MockProvider) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errs = append(m.errs, err)
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	req.Messages = append([]Message(nil), req.Messages...)
	m.requests = append(m.requests, req)
	fn := m.ChatFunc
	if fn == nil && len(m.responses) > 0 {
		resp, err := m.responses[0], m.errs[0]
		m.responses, m.errs = m.responses[1:], m.errs[1:]
		m.mu.Unlock()
		return resp, err
	}
	fallback := *m.fallback
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fallback, nil
}

// Requests returns every recorded request.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.requests...)
}

// LastRequest returns the most recent request.
func (m *MockProvider) LastRequest() ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatRequest{}
	}
	return m.requests[len(m.requests)-1]
}
