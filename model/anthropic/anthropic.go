// Package anthropic implements model.Backend on the Anthropic Messages
// API (Claude), including tool_use handling.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/model"
)

// Options configure the Anthropic backend (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Backend wraps the Anthropic Messages API behind model.Backend.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

// NewBackend creates an Anthropic backend using the official client.
func NewBackend(optFns ...func(o *Options)) *Backend {
	opts := defaultOptions(optFns)
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Backend{client: &client, opts: opts}
}

// NewBackendFromClient creates an Anthropic backend from an existing client.
func NewBackendFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	return &Backend{client: client, opts: defaultOptions(optFns)}
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Generate performs one message turn and classifies the result into the
// unified Outcome shape.
func (b *Backend) Generate(ctx context.Context, req model.Request) (model.Outcome, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.opts.Model),
		Messages:    buildMessages(req.Messages),
		MaxTokens:   b.opts.MaxTokens,
		Temperature: anthropic.Float(b.opts.Temperature),
	}
	if system := buildSystem(req); len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, core.WrapE(core.KindBackend, err, "anthropic api error")
	}

	var text string
	var native *core.ToolRequest
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			if native != nil {
				continue
			}
			tb := block.AsToolUse()
			native = &core.ToolRequest{
				ID:    tb.ID,
				Name:  tb.Name,
				Input: decodeInput(tb.Input),
			}
		}
	}
	return model.Classify(text, native), nil
}

// decodeInput round-trips the provider's input payload into a plain map;
// unmappable payloads are preserved under a "raw" key.
func decodeInput(raw any) map[string]any {
	input := map[string]any{}
	if raw == nil {
		return input
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return input
	}
	if err := json.Unmarshal(b, &input); err != nil {
		return map[string]any{"raw": string(b)}
	}
	return input
}

// buildSystem collects instructions plus any system-role messages into
// the dedicated system parameter.
func buildSystem(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, m := range req.Messages {
		if m.Role == core.RoleSystem && m.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	return blocks
}

// buildMessages converts the normalized sequence to Anthropic turns.
// Assistant tool-call messages become tool_use blocks; tool results
// become user-role tool_result blocks as the API requires.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			continue
		case core.RoleUser:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case core.RoleAssistant:
			if m.ToolCallID != "" {
				var input any
				if err := json.Unmarshal([]byte(m.Content), &input); err != nil {
					input = m.Content
				}
				out = append(out, anthropic.NewAssistantMessage(
					anthropic.NewToolUseBlock(m.ToolCallID, input, m.ToolName),
				))
				continue
			}
			if m.Content != "" {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		case core.RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		default:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return out
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if t.Parameters != nil {
			if props, ok := t.Parameters["properties"]; ok {
				schema.Properties = props
			}
			if required, ok := t.Parameters["required"]; ok {
				schema.Required = stringSlice(required)
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(schema, t.Name)
	}
	return out
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Info returns metadata describing this Anthropic backend.
func (b *Backend) Info() model.Info {
	return model.Info{Name: b.opts.Model, Provider: "anthropic", SupportsTools: true}
}
