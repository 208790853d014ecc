package orchestrator

import (
	"context"
	"time"

	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/logging"
	"github.com/parley-ai/parley/model"
	"github.com/parley-ai/parley/registry"
	"github.com/parley-ai/parley/stream"
)

// State enumerates the phases of one orchestration cycle.
type State string

const (
	// StateBuilding assembles the message sequence for the model.
	StateBuilding State = "building"
	// StateGenerating awaits the model backend.
	StateGenerating State = "generating"
	// StateToolDispatch awaits an expert invocation.
	StateToolDispatch State = "tool_dispatch"
	// StateFinalizing persists and streams the final answer.
	StateFinalizing State = "finalizing"
	// StateDone is the successful terminal state.
	StateDone State = "done"
	// StateFailed is the failed terminal state; the error has been
	// published to the client stream.
	StateFailed State = "failed"
)

// Inbound is a new user message as delivered by the collaborating
// session/API layer. One Inbound triggers one orchestration.
type Inbound struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Content        string `json:"content"`
}

// Result is the terminal outcome of one orchestration.
type Result struct {
	State          State
	Content        string // final answer when State == StateDone
	Err            error  // terminal error when State == StateFailed
	ToolIterations int
}

// Options configure an Orchestrator.
type Options struct {
	// MaxToolIterations caps tool-dispatch cycles per orchestration.
	MaxToolIterations int
	// Deadline bounds a whole orchestration in wall-clock time. Zero
	// disables the loop-level deadline; per-call timeouts still apply.
	Deadline time.Duration
	// ChunkSize bounds streamed answer chunk payloads, in runes.
	ChunkSize int
	// Instructions is the standing system prompt for every run.
	Instructions string
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Orchestrator coordinates the model backend, expert registry, history
// store and stream broker. It holds no per-run state: one instance
// serves any number of concurrent orchestrations.
type Orchestrator struct {
	backend  model.Backend
	registry *registry.Registry
	broker   *stream.Broker
	store    core.HistoryStore
	opts     Options
	logger   logging.Logger
}

// New wires an orchestrator from its collaborators.
func New(
	backend model.Backend,
	reg *registry.Registry,
	broker *stream.Broker,
	store core.HistoryStore,
	optFns ...func(o *Options),
) *Orchestrator {
	opts := Options{
		MaxToolIterations: 8,
		ChunkSize:         512,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Orchestrator{
		backend:  backend,
		registry: reg,
		broker:   broker,
		store:    store,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Respond runs one full orchestration cycle for the inbound message and
// blocks until a terminal state. The terminal outcome is always pushed to
// the stream broker before Respond returns.
func (o *Orchestrator) Respond(ctx context.Context, in Inbound) Result {
	if o.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Deadline)
		defer cancel()
	}

	var (
		state      = StateBuilding
		msgs       []core.Message
		pending    core.ToolRequest
		content    string
		iterations int
	)

	for {
		// Single cancellation checkpoint per transition.
		if err := ctx.Err(); err != nil {
			return o.fail(in, iterations, core.WrapE(core.KindTimeout, err, "orchestration cancelled"))
		}

		switch state {
		case StateBuilding:
			msgs = o.build(in)
			state = StateGenerating

		case StateGenerating:
			o.broker.PublishStatus(in.ConversationID, "typing")
			outcome, err := o.generate(ctx, msgs)
			if err != nil {
				return o.fail(in, iterations, err)
			}
			switch v := outcome.(type) {
			case model.ToolCall:
				iterations++
				if iterations > o.opts.MaxToolIterations {
					return o.fail(in, iterations, core.E(core.KindToolLoopExceeded,
						"tool iteration cap of %d exceeded", o.opts.MaxToolIterations))
				}
				pending = v.Request
				state = StateToolDispatch
			case model.FinalAnswer:
				content = v.Content
				state = StateFinalizing
			default:
				return o.fail(in, iterations, core.E(core.KindBackend, "backend returned no outcome"))
			}

		case StateToolDispatch:
			next, err := o.dispatch(ctx, in, pending, msgs)
			if err != nil {
				return o.fail(in, iterations, err)
			}
			msgs = next
			state = StateGenerating

		case StateFinalizing:
			o.persist(in.ConversationID, core.NewAssistantMessage(content))
			o.broker.PublishAnswer(in.ConversationID, content, o.opts.ChunkSize)
			state = StateDone

		case StateDone:
			o.logger.Info("orchestration.done",
				"conversation_id", in.ConversationID,
				"tool_iterations", iterations,
			)
			return Result{State: StateDone, Content: content, ToolIterations: iterations}
		}
	}
}

// build assembles system-free context: persisted history plus the new
// user message. The instructions ride separately in the model request.
// History read failures degrade to a single-message context rather than
// failing the orchestration.
func (o *Orchestrator) build(in Inbound) []core.Message {
	history, err := o.store.History(in.ConversationID)
	if err != nil {
		o.logger.Warn("orchestration.history.unavailable",
			"conversation_id", in.ConversationID,
			"error", err.Error(),
		)
		history = nil
	}
	userMsg := core.NewUserMessage(in.Content)
	o.persist(in.ConversationID, userMsg)
	return append(history, userMsg)
}

// generate performs one model call with the registry's full capability
// set advertised as tools.
func (o *Orchestrator) generate(ctx context.Context, msgs []core.Message) (model.Outcome, error) {
	start := time.Now()
	outcome, err := o.backend.Generate(ctx, model.Request{
		Instructions: o.opts.Instructions,
		Messages:     msgs,
		Tools:        o.toolDefinitions(),
	})
	if ml, ok := o.logger.(logging.ModelCallLogger); ok {
		ml.LogModelCall(o.backend.Info().Name, time.Since(start), err)
	} else {
		o.logger.Debug("orchestration.generate",
			"model", o.backend.Info().Name,
			"duration", time.Since(start),
			"success", err == nil,
		)
	}
	return outcome, err
}

func (o *Orchestrator) toolDefinitions() []model.ToolDefinition {
	caps := o.registry.Capabilities()
	if len(caps) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, len(caps))
	for i, c := range caps {
		defs[i] = model.ToolDefinition{
			Name:        c.Name,
			Description: c.Description,
			Parameters:  c.InputSchema,
		}
	}
	return defs
}

// dispatch resolves and invokes the expert serving the pending tool
// request, then folds both the call and its result into the message
// sequence (append-only).
func (o *Orchestrator) dispatch(ctx context.Context, in Inbound, req core.ToolRequest, msgs []core.Message) ([]core.Message, error) {
	endpointName, err := o.registry.ResolveTool(req.Name)
	if err != nil {
		return nil, err
	}
	o.broker.PublishStatus(in.ConversationID, "consulting "+endpointName)

	msgs = append(msgs, core.NewToolCallMessage(req))

	start := time.Now()
	result, err := o.registry.Invoke(ctx, endpointName, req.Name, req.Input)
	if err != nil {
		o.logger.Warn("orchestration.tool.failed",
			"conversation_id", in.ConversationID,
			"endpoint", endpointName,
			"tool", req.Name,
			"duration", time.Since(start),
			"error", err.Error(),
		)
		return nil, err
	}
	return append(msgs, core.NewToolResultMessage(req, result)), nil
}

// fail publishes the terminal error chunk and logs the failure. All
// error kinds reach the client verbatim; nothing is retried.
func (o *Orchestrator) fail(in Inbound, iterations int, err error) Result {
	o.logger.Error("orchestration.failed",
		"conversation_id", in.ConversationID,
		"tool_iterations", iterations,
		"error", err.Error(),
	)
	o.broker.PublishError(in.ConversationID, err)
	return Result{State: StateFailed, Err: err, ToolIterations: iterations}
}

// persist is the fire-and-forget storage call: failures are logged and
// swallowed, never failing the user-visible answer.
func (o *Orchestrator) persist(conversationID string, msg core.Message) {
	if err := o.store.Append(conversationID, msg); err != nil {
		perr := core.WrapE(core.KindPersistence, err, "store %s message", msg.Role)
		o.logger.Warn("orchestration.persist.failed",
			"conversation_id", conversationID,
			"error", perr.Error(),
		)
	}
}
