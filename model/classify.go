package model

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/parley-ai/parley/core"
)

// Classify is the single explicit step that decides the outcome of a
// model call. A native structured tool call from the provider wins;
// otherwise the raw text is sniffed for a JSON object carrying a tool
// name and input map (models without native tool calling emit these);
// failing both, the text is the final answer.
func Classify(text string, native *core.ToolRequest) Outcome {
	if native != nil {
		req := *native
		if req.ID == "" {
			req.ID = core.NewID()
		}
		return ToolCall{Request: req}
	}
	if req, ok := sniffToolCall(text); ok {
		return ToolCall{Request: req}
	}
	return FinalAnswer{Content: text}
}

// sniffToolCall recognizes a textual payload of the shape
// {"tool": "...", "input": {...}} (or tool_name/arguments spellings).
func sniffToolCall(text string) (core.ToolRequest, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !gjson.Valid(trimmed) {
		return core.ToolRequest{}, false
	}
	name := gjson.Get(trimmed, "tool")
	if !name.Exists() {
		name = gjson.Get(trimmed, "tool_name")
	}
	input := gjson.Get(trimmed, "input")
	if !input.Exists() {
		input = gjson.Get(trimmed, "arguments")
	}
	if name.Type != gjson.String || name.Str == "" || !input.IsObject() {
		return core.ToolRequest{}, false
	}
	args := map[string]any{}
	input.ForEach(func(k, v gjson.Result) bool {
		args[k.String()] = v.Value()
		return true
	})
	return core.ToolRequest{ID: core.NewID(), Name: name.Str, Input: args}, true
}
