package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author category of a conversation message.
type Role string

const (
	// RoleUser marks a message authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message synthesized from model output.
	RoleAssistant Role = "assistant"
	// RoleSystem marks standing instructions injected by the orchestrator.
	RoleSystem Role = "system"
	// RoleTool marks a message carrying an expert invocation result.
	RoleTool Role = "tool"
)

// Message is one entry in the ordered conversation context passed to a
// model backend. The sequence a message belongs to is append-only for the
// lifetime of an orchestration cycle; messages are never edited or removed
// once appended.
//
// ToolCallID and ToolName tie a synthesized assistant tool-call message
// and its matching tool-result message together so provider backends can
// rebuild a valid tool-call turn. Both are empty on ordinary messages.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
}

// NewMessage creates a message with the current UTC timestamp.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// NewUserMessage is shorthand for a user-authored message.
func NewUserMessage(content string) Message { return NewMessage(RoleUser, content) }

// NewAssistantMessage is shorthand for a model-authored message.
func NewAssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// NewSystemMessage is shorthand for a system instruction message.
func NewSystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// NewToolCallMessage synthesizes the assistant message recording that the
// model elected to invoke a capability. Content holds the JSON-encoded
// input so the turn survives round-trips through history.
func NewToolCallMessage(req ToolRequest) Message {
	m := NewMessage(RoleAssistant, req.InputJSON())
	m.ToolCallID = req.ID
	m.ToolName = req.Name
	return m
}

// NewToolResultMessage folds an expert invocation result into the
// conversation, linked to the originating call.
func NewToolResultMessage(req ToolRequest, result ToolResult) Message {
	m := result.Message()
	m.ToolCallID = req.ID
	m.ToolName = req.Name
	return m
}

// ToolRequest is a model-produced request to invoke a named capability
// with structured input instead of answering directly. It is transient:
// it exists only within one orchestration cycle and is never persisted.
type ToolRequest struct {
	// ID carries the backend's native tool-call identifier when the
	// provider supplied one, otherwise a generated UUID.
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// InputJSON renders the input map as compact JSON for wire transport and
// history. A marshal failure yields "{}" rather than corrupt history.
func (r ToolRequest) InputJSON() string {
	b, err := json.Marshal(r.Input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ToolResult is the opaque value returned by an expert invocation.
type ToolResult struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Message folds the result into a tool-role message so the next model
// call sees it as part of the conversation context. Non-string values
// are rendered as JSON; values that fail to marshal fall back to fmt.
func (r ToolResult) Message() Message {
	var text string
	switch v := r.Value.(type) {
	case string:
		text = v
	default:
		if b, err := json.Marshal(v); err == nil {
			text = string(b)
		} else {
			text = fmt.Sprintf("%v", v)
		}
	}
	return NewMessage(RoleTool, text)
}

// NewID generates a unique identifier used for invocations, correlation
// ids and synthesized tool-call ids.
func NewID() string { return uuid.NewString() }
