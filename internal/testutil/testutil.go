// Package testutil provides shared fakes for package tests: a scripted
// expert caller and a manually advanced clock for breaker timing.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// CallStep is one scripted response of a ScriptedCaller.
type CallStep struct {
	Result any
	Err    error
}

// ScriptedCaller implements the registry's Caller contract with canned
// responses, recording every call it receives. An exhausted script
// returns the zero result.
type ScriptedCaller struct {
	mu    sync.Mutex
	steps []CallStep
	calls []RecordedCall
}

// RecordedCall captures the method and params of one Call.
type RecordedCall struct {
	Method string
	Params any
}

// NewScriptedCaller builds a caller that replays steps in order.
func NewScriptedCaller(steps ...CallStep) *ScriptedCaller {
	return &ScriptedCaller{steps: steps}
}

// Call implements registry.Caller.
func (c *ScriptedCaller) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, RecordedCall{Method: method, Params: params})
	if len(c.steps) == 0 {
		return json.RawMessage(`null`), nil
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	raw, err := json.Marshal(step.Result)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Calls returns a copy of the recorded calls.
func (c *ScriptedCaller) Calls() []RecordedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RecordedCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many calls reached the wire fake.
func (c *ScriptedCaller) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// Clock is a manually advanced time source for deterministic breaker
// cool-down tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at a fixed arbitrary instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time; pass as the registry clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
