package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/logging"
)

// Options configure a Registry.
type Options struct {
	// FailureThreshold is the number of consecutive failures that trips
	// a closed circuit open.
	FailureThreshold int
	// CoolDown is how long an open circuit waits before admitting a
	// half-open trial.
	CoolDown time.Duration
	// Clock is injectable for deterministic breaker tests.
	Clock func() time.Time
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// registration pairs an endpoint with its breaker.
type registration struct {
	endpoint *Endpoint
	breaker  *breaker
}

// Registry is the shared, concurrency-safe directory of expert endpoints.
// It is the only mutable state shared across concurrent orchestrations
// besides the model adapter; per-endpoint circuit state is guarded by the
// endpoint's own breaker mutex.
type Registry struct {
	opts   Options
	logger logging.Logger

	mu        sync.RWMutex
	endpoints map[string]*registration
	byTool    map[string]string // tool name -> endpoint name
}

// New creates an empty registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		FailureThreshold: 3,
		CoolDown:         60 * time.Second,
		Clock:            time.Now,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Registry{
		opts:      opts,
		logger:    opts.Logger,
		endpoints: map[string]*registration{},
		byTool:    map[string]string{},
	}
}

// Register adds an endpoint and compiles its capability schemas. A tool
// name already claimed by another endpoint is re-pointed at the new
// registration with a warning.
func (r *Registry) Register(ep *Endpoint) error {
	if err := validateEndpoint(ep); err != nil {
		return err
	}
	for i := range ep.Capabilities {
		if err := ep.Capabilities[i].compile(); err != nil {
			return core.WrapE(core.KindProtocol, err, "register %s", ep.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[ep.Name] = &registration{
		endpoint: ep,
		breaker:  newBreaker(r.opts.FailureThreshold, r.opts.CoolDown, r.opts.Clock),
	}
	for _, cap := range ep.Capabilities {
		if prev, taken := r.byTool[cap.Name]; taken && prev != ep.Name {
			r.logger.Warn("registry.tool.reassigned", "tool", cap.Name, "from", prev, "to", ep.Name)
		}
		r.byTool[cap.Name] = ep.Name
	}
	r.logger.Info("registry.endpoint.registered", "endpoint", ep.Name, "capabilities", len(ep.Capabilities))
	return nil
}

// ResolveTool returns the endpoint name serving toolName.
func (r *Registry) ResolveTool(toolName string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byTool[toolName]
	if !ok {
		return "", core.E(core.KindToolNotFound, "no registered endpoint serves tool %q", toolName)
	}
	return name, nil
}

// Capabilities returns the union of capabilities across all endpoints,
// used by the orchestrator to advertise tools to the model.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Capability
	for _, reg := range r.endpoints {
		out = append(out, reg.endpoint.Capabilities...)
	}
	return out
}

// Status returns the breaker health of an endpoint.
func (r *Registry) Status(endpointName string) (Health, error) {
	reg, err := r.lookup(endpointName)
	if err != nil {
		return Health{}, err
	}
	return reg.breaker.snapshot(), nil
}

// Invoke routes one tool invocation through the endpoint's breaker and
// protocol connection. The method name on the wire is the tool name and
// params is the tool input map. Any call error counts as a breaker
// failure; schema rejections are returned before the breaker is
// consulted since no wire traffic occurs.
func (r *Registry) Invoke(ctx context.Context, endpointName, toolName string, input map[string]any) (core.ToolResult, error) {
	reg, err := r.lookup(endpointName)
	if err != nil {
		return core.ToolResult{}, err
	}

	if cap, ok := reg.endpoint.capability(toolName); ok {
		if err := cap.validate(input); err != nil {
			return core.ToolResult{}, core.WrapE(core.KindProtocol, err, "invoke %s on %s", toolName, endpointName)
		}
	}

	if !reg.breaker.allow() {
		return core.ToolResult{}, core.E(core.KindCircuitOpen, "endpoint %s is excluded by its circuit breaker", endpointName)
	}

	start := time.Now()
	raw, err := reg.endpoint.Caller.Call(ctx, toolName, input)
	dur := time.Since(start)
	if tl, ok := r.logger.(logging.ToolCallLogger); ok {
		tl.LogToolCall(endpointName, toolName, dur, err)
	} else if err != nil {
		r.logger.Warn("registry.invoke.failed",
			"endpoint", endpointName,
			"tool", toolName,
			"duration", dur,
			"error", err.Error(),
		)
	} else {
		r.logger.Debug("registry.invoke.ok", "endpoint", endpointName, "tool", toolName, "duration", dur)
	}
	if err != nil {
		reg.breaker.onFailure()
		return core.ToolResult{}, err
	}
	reg.breaker.onSuccess()

	var value any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			// Non-JSON payloads stay opaque strings.
			value = string(raw)
		}
	}
	return core.ToolResult{Name: toolName, Value: value}, nil
}

func (r *Registry) lookup(endpointName string) (*registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.endpoints[endpointName]
	if !ok {
		return nil, core.E(core.KindToolNotFound, "unknown endpoint %q", endpointName)
	}
	return reg, nil
}
