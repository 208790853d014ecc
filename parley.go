// Package parley provides a high-level façade over the orchestration
// engine and its collaborators (protocol connections, expert registry,
// stream broker, history store, logging), enabling construction of a
// tool-augmented response service in a few calls. Most applications:
//  1. Load a Config (or start from config.Default())
//  2. Create a Parley via New()
//  3. Register expert endpoints (RegisterExpert / RegisterLocalExpert)
//  4. Subscribe clients to conversations and feed user messages in
//
// The façade delegates the response loop to orchestrator.Orchestrator
// while keeping setup ergonomics concise. Defaults are safe for local
// development; production deployments supply a durable history store and
// a structured logger.
package parley

import (
	"context"
	"fmt"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/logging"
	"github.com/parley-ai/parley/model"
	"github.com/parley-ai/parley/model/anthropic"
	"github.com/parley-ai/parley/model/openai"
	"github.com/parley-ai/parley/orchestrator"
	"github.com/parley-ai/parley/protocol"
	"github.com/parley-ai/parley/registry"
	"github.com/parley-ai/parley/session"
	"github.com/parley-ai/parley/stream"
)

// Options configure the Parley instance.
type Options struct {
	// Config is the startup configuration. Defaults to config.Default().
	Config config.Config
	// Backend overrides the config-selected backend (useful for tests).
	Backend model.Backend
	// HistoryStore defaults to an in-memory implementation.
	HistoryStore core.HistoryStore
	// Logger defaults to one built from Config.Log.
	Logger logging.Logger
	// MaxConcurrent bounds simultaneous orchestrations.
	MaxConcurrent int
}

// Parley aggregates the engine components behind a small surface.
type Parley struct {
	cfg        config.Config
	logger     logging.Logger
	backend    model.Backend
	registry   *registry.Registry
	broker     *stream.Broker
	store      core.HistoryStore
	supervisor *orchestrator.Supervisor
}

// New assembles a Parley instance. Any unset collaborator is initialized
// from the configuration.
func New(optFns ...func(o *Options)) (*Parley, error) {
	opts := Options{Config: config.Default(), MaxConcurrent: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(&logging.Config{
			Level:  logging.ParseLevel(cfg.Log.Level),
			Format: cfg.Log.Format,
		})
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = backendFromConfig(cfg)
		if err != nil {
			return nil, err
		}
	}

	store := opts.HistoryStore
	if store == nil {
		store = session.NewInMemoryStore()
	}

	reg := registry.New(func(o *registry.Options) {
		o.FailureThreshold = cfg.Breaker.FailureThreshold
		o.CoolDown = cfg.Breaker.CoolDown.Std()
		o.Logger = scoped(logger, "registry")
	})
	broker := stream.NewBroker(func(o *stream.Options) { o.Logger = scoped(logger, "stream") })

	orch := orchestrator.New(backend, reg, broker, store, func(o *orchestrator.Options) {
		o.MaxToolIterations = cfg.ToolLoopCap
		o.Deadline = cfg.OrchestrationTimeout.Std()
		o.ChunkSize = cfg.ChunkSize
		o.Instructions = cfg.Instructions
		o.Logger = scoped(logger, "orchestrator")
	})
	sup := orchestrator.NewSupervisor(orch, func(o *orchestrator.SupervisorOptions) {
		o.MaxConcurrent = opts.MaxConcurrent
		o.Logger = scoped(logger, "supervisor")
	})

	return &Parley{
		cfg:        cfg,
		logger:     logger,
		backend:    backend,
		registry:   reg,
		broker:     broker,
		store:      store,
		supervisor: sup,
	}, nil
}

// scoped returns a component-scoped clone when the logger supports it,
// otherwise the logger unchanged.
func scoped(logger logging.Logger, component string) logging.Logger {
	if pl, ok := logger.(*logging.ParleyLogger); ok {
		return pl.WithComponent(component)
	}
	return logger
}

// backendFromConfig dispatches to the statically configured provider.
func backendFromConfig(cfg config.Config) (model.Backend, error) {
	switch cfg.Backend.Provider {
	case "openai":
		return openai.NewBackend(func(o *openai.Options) {
			if cfg.Backend.Model != "" {
				o.Model = cfg.Backend.Model
			}
			o.Temperature = cfg.Backend.Temperature
		}), nil
	case "anthropic":
		return anthropic.NewBackend(func(o *anthropic.Options) {
			if cfg.Backend.Model != "" {
				o.Model = cfg.Backend.Model
			}
			o.Temperature = cfg.Backend.Temperature
			o.APIKey = cfg.APIKey()
		}), nil
	case "mock":
		return model.NewMockBackend("mock"), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Backend.Provider)
	}
}

// RegisterExpert dials an expert service over TCP, starts its protocol
// engine under ctx and registers its capabilities.
func (p *Parley) RegisterExpert(ctx context.Context, name, addr string, caps []registry.Capability) error {
	engine, err := protocol.Dial(addr, func(o *protocol.Options) {
		o.CallTimeout = p.cfg.CallTimeout.Std()
		o.Logger = scoped(p.logger, "protocol")
	})
	if err != nil {
		return err
	}
	go func() {
		if err := engine.Run(ctx); err != nil {
			p.logger.Error("expert.connection.lost", "endpoint", name, "error", err.Error())
		}
	}()
	return p.registry.Register(&registry.Endpoint{
		Name:         name,
		Addr:         addr,
		Capabilities: caps,
		Caller:       engine,
	})
}

// RegisterLocalExpert registers an endpoint over an already established
// caller (an in-process protocol pipe, or a test fake).
func (p *Parley) RegisterLocalExpert(name string, caps []registry.Capability, caller registry.Caller) error {
	return p.registry.Register(&registry.Endpoint{
		Name:         name,
		Addr:         "local",
		Capabilities: caps,
		Caller:       caller,
	})
}

// Respond runs one orchestration synchronously and returns its terminal
// result. Chunks still flow to subscribers during the run.
func (p *Parley) Respond(ctx context.Context, in orchestrator.Inbound) (orchestrator.Result, error) {
	invocationID, results, err := p.supervisor.Start(ctx, in)
	if err != nil {
		return orchestrator.Result{}, err
	}
	select {
	case result := <-results:
		return result, nil
	case <-ctx.Done():
		// Best effort: the run observes cancellation through its own ctx.
		_ = p.supervisor.Cancel(invocationID)
		return <-results, nil
	}
}

// Start launches one orchestration asynchronously; see Supervisor.Start.
func (p *Parley) Start(ctx context.Context, in orchestrator.Inbound) (string, <-chan orchestrator.Result, error) {
	return p.supervisor.Start(ctx, in)
}

// Cancel requests termination of an in-flight invocation.
func (p *Parley) Cancel(invocationID string) error { return p.supervisor.Cancel(invocationID) }

// Subscribe attaches a client to a conversation's ordered chunk stream.
func (p *Parley) Subscribe(conversationID string) (<-chan core.Chunk, func()) {
	return p.broker.Subscribe(conversationID)
}

// ExpertStatus reports the circuit health of a registered endpoint.
func (p *Parley) ExpertStatus(endpointName string) (registry.Health, error) {
	return p.registry.Status(endpointName)
}

// Shutdown cancels in-flight orchestrations and waits for them.
func (p *Parley) Shutdown(ctx context.Context) error { return p.supervisor.Shutdown(ctx) }
