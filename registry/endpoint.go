package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/parley-ai/parley/core"
)

// Caller is the protocol surface the registry invokes experts through.
// *protocol.Engine satisfies it; tests substitute scripted fakes.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Capability declares one named tool exposed by an endpoint. InputSchema,
// when non-nil, is a JSON Schema object validated against the tool input
// before any wire traffic.
type Capability struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`

	compiled *jsonschema.Schema
}

// compile prepares the input schema for validation. Capabilities without
// a schema accept any input.
func (c *Capability) compile() error {
	if c.InputSchema == nil {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("capability://%s/schema.json", c.Name)
	if err := compiler.AddResource(url, normalizeSchema(c.InputSchema)); err != nil {
		return fmt.Errorf("capability %s: add schema: %w", c.Name, err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("capability %s: compile schema: %w", c.Name, err)
	}
	c.compiled = sch
	return nil
}

// validate checks input against the compiled schema, if any.
func (c *Capability) validate(input map[string]any) error {
	if c.compiled == nil {
		return nil
	}
	if err := c.compiled.Validate(normalizeValue(input)); err != nil {
		return fmt.Errorf("input for %s rejected by schema: %w", c.Name, err)
	}
	return nil
}

// normalizeSchema round-trips the schema document through encoding/json
// so the validator sees canonical types (float64 numbers, []any arrays)
// regardless of how callers built the map.
func normalizeSchema(doc map[string]any) any { return normalizeValue(doc) }

func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// Endpoint describes one registered domain expert service: its protocol
// connection and the capabilities it answers for. Circuit state lives in
// the registry, not here; the Endpoint itself is immutable after
// registration.
type Endpoint struct {
	// Name uniquely identifies the endpoint within the registry.
	Name string
	// Addr is the transport address the caller was dialed against.
	// Informational; the live connection is Caller.
	Addr string
	// Capabilities lists the tools this endpoint serves.
	Capabilities []Capability
	// Caller carries invocations to the running service.
	Caller Caller
}

// capability returns the declared capability for toolName, if any.
func (e *Endpoint) capability(toolName string) (*Capability, bool) {
	for i := range e.Capabilities {
		if e.Capabilities[i].Name == toolName {
			return &e.Capabilities[i], true
		}
	}
	return nil, false
}

// validateEndpoint rejects structurally unusable registrations early.
func validateEndpoint(e *Endpoint) error {
	if e == nil {
		return core.E(core.KindProtocol, "nil endpoint")
	}
	if e.Name == "" {
		return core.E(core.KindProtocol, "endpoint name must not be empty")
	}
	if e.Caller == nil {
		return core.E(core.KindProtocol, "endpoint %s has no caller", e.Name)
	}
	if len(e.Capabilities) == 0 {
		return core.E(core.KindProtocol, "endpoint %s declares no capabilities", e.Name)
	}
	return nil
}
