// Package openai implements model.Backend on the OpenAI Chat Completions
// API (including function/tool calling). It adapts Parley's normalized
// message sequence into the SDK's message format and back.
package openai

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"

	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/model"
)

// Options configure the OpenAI backend. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Backend wraps the OpenAI Chat Completions API behind model.Backend.
type Backend struct {
	client *openai.Client
	opts   Options
}

// NewBackend creates an OpenAI backend using the official client (API key
// from the environment).
func NewBackend(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewBackendFromClient(&client, optFns...)
}

// NewBackendFromClient creates an OpenAI backend from an existing client.
func NewBackendFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Generate performs one completion and classifies the result into the
// unified Outcome shape.
func (b *Backend) Generate(ctx context.Context, req model.Request) (model.Outcome, error) {
	params := b.buildParams(req)
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, core.WrapE(core.KindBackend, err, "openai api error")
	}
	if len(resp.Choices) == 0 {
		return nil, core.E(core.KindBackend, "openai returned no choices")
	}
	choice := resp.Choices[0]

	var native *core.ToolRequest
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		native = &core.ToolRequest{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: parseArguments(tc.Function.Arguments),
		}
	}
	return model.Classify(choice.Message.Content, native), nil
}

// parseArguments decodes the provider's argument payload; malformed JSON
// is preserved under a "raw" key instead of being dropped.
func parseArguments(args string) map[string]any {
	input := map[string]any{}
	if args == "" {
		return input
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return map[string]any{"raw": args}
	}
	return input
}

// buildParams assembles the request including tool definitions and the
// reconstructed tool-call turns from prior iterations.
func (b *Backend) buildParams(req model.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case core.RoleAssistant:
			if m.ToolCallID != "" {
				messages = append(messages, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Role: "assistant",
						ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
							ID:   m.ToolCallID,
							Type: "function",
							Function: openai.ChatCompletionMessageToolCallFunctionParam{
								Name:      m.ToolName,
								Arguments: m.Content,
							},
						}},
					},
				})
				continue
			}
			messages = append(messages, openai.AssistantMessage(m.Content))
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			if m.Content != "" {
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               b.opts.Model,
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// Info returns metadata describing this OpenAI backend.
func (b *Backend) Info() model.Info {
	return model.Info{Name: b.opts.Model, Provider: "openai", SupportsTools: true}
}
