package model

import (
	"context"
	"sync"

	"github.com/parley-ai/parley/core"
)

// MockBackend is a scripted in-memory Backend for tests and examples. It
// returns its enqueued outcomes (or errors) in order and records every
// request it received.
type MockBackend struct {
	mu       sync.Mutex
	info     Info
	script   []scriptStep
	requests []Request
}

type scriptStep struct {
	outcome Outcome
	err     error
}

// NewMockBackend constructs an empty scripted backend.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// EnqueueAnswer scripts a final answer for the next unscripted call.
func (m *MockBackend) EnqueueAnswer(content string) *MockBackend {
	return m.enqueue(scriptStep{outcome: FinalAnswer{Content: content}})
}

// EnqueueToolCall scripts a tool invocation request.
func (m *MockBackend) EnqueueToolCall(tool string, input map[string]any) *MockBackend {
	return m.enqueue(scriptStep{outcome: ToolCall{
		Request: core.ToolRequest{ID: core.NewID(), Name: tool, Input: input},
	}})
}

// EnqueueError scripts a backend failure.
func (m *MockBackend) EnqueueError(err error) *MockBackend {
	return m.enqueue(scriptStep{err: err})
}

func (m *MockBackend) enqueue(s scriptStep) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, s)
	return m
}

// Generate pops the next scripted step. An exhausted script echoes the
// last user message so loose tests still terminate.
func (m *MockBackend) Generate(_ context.Context, req Request) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		var last string
		for _, msg := range req.Messages {
			if msg.Role == core.RoleUser {
				last = msg.Content
			}
		}
		return FinalAnswer{Content: "Mock response to: " + last}, nil
	}
	step := m.script[0]
	m.script = m.script[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.outcome, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Info implements Backend.
func (m *MockBackend) Info() Info { return m.info }
