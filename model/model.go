package model

import (
	"context"

	"github.com/parley-ai/parley/core"
)

// ToolDefinition declaratively exposes a callable capability to the
// model. Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input assembled by the
// orchestrator.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Outcome is the tagged variant every backend resolves to: either a
// FinalAnswer or a ToolCall, never both. The closed set keeps branch
// logic in the orchestration loop to a single type switch.
type Outcome interface{ isOutcome() }

// FinalAnswer carries final response text ready to stream to the client.
type FinalAnswer struct {
	Content string
}

func (FinalAnswer) isOutcome() {}

// ToolCall carries the model's request to invoke a named capability with
// structured input in lieu of answering directly.
type ToolCall struct {
	Request core.ToolRequest
}

func (ToolCall) isOutcome() {}

// Info contains metadata about a backend implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Backend is the uniform call surface over interchangeable
// text-generation providers. Implementations must be safe for concurrent
// use; one Backend instance is shared by every orchestration in the
// process. Failures are returned as core.KindBackend errors.
type Backend interface {
	Generate(ctx context.Context, req Request) (Outcome, error)

	// Info returns information about the backend implementation.
	Info() Info
}
