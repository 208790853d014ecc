package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/logging"
)

// SupervisorOptions configure a Supervisor.
type SupervisorOptions struct {
	// MaxConcurrent bounds simultaneous orchestrations. Zero means
	// unlimited (not recommended).
	MaxConcurrent int
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Supervisor runs orchestrations as independent asynchronous tasks,
// tracks them by invocation id and supports cooperative cancellation. A
// cancelled orchestration releases any protocol call it was awaiting and
// still publishes a terminal error chunk, so the client stream is never
// left open.
type Supervisor struct {
	orch   *Orchestrator
	opts   SupervisorOptions
	logger logging.Logger
	sem    chan struct{}

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor wraps an orchestrator with lifecycle management.
func NewSupervisor(orch *Orchestrator, optFns ...func(o *SupervisorOptions)) *Supervisor {
	opts := SupervisorOptions{MaxConcurrent: 10, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	s := &Supervisor{
		orch:   orch,
		opts:   opts,
		logger: opts.Logger,
		active: map[string]context.CancelFunc{},
	}
	if opts.MaxConcurrent > 0 {
		s.sem = make(chan struct{}, opts.MaxConcurrent)
	}
	return s
}

// Start launches one orchestration for the inbound message. It returns a
// stable invocation id for cancellation plus a buffered channel that
// receives the terminal Result and is then closed. Start blocks only
// while waiting for a concurrency slot.
func (s *Supervisor) Start(ctx context.Context, in Inbound) (string, <-chan Result, error) {
	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return "", nil, core.WrapE(core.KindTimeout, ctx.Err(), "waiting for orchestration slot")
		}
	}

	invocationID := core.NewID()
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.active[invocationID] = cancel
	s.mu.Unlock()

	// Scope the logger to this run when the implementation supports it;
	// plain loggers get the ids as explicit attributes instead.
	runLogger := s.logger
	var kv []any
	if pl, ok := s.logger.(*logging.ParleyLogger); ok {
		runLogger = pl.WithConversation(in.ConversationID, invocationID)
	} else {
		kv = []any{"invocation_id", invocationID, "conversation_id", in.ConversationID}
	}

	results := make(chan Result, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, invocationID)
			s.mu.Unlock()
			cancel()
			if s.sem != nil {
				<-s.sem
			}
		}()
		runLogger.Info("supervisor.invocation.start", kv...)
		result := s.orch.Respond(runCtx, in)
		runLogger.Info("supervisor.invocation.end", append(kv, "state", string(result.State))...)
		results <- result
		close(results)
	}()
	return invocationID, results, nil
}

// Cancel requests cooperative termination of an in-flight invocation.
// Cancelling an unknown or already finished invocation returns an error
// describing the condition.
func (s *Supervisor) Cancel(invocationID string) error {
	s.mu.Lock()
	cancel, ok := s.active[invocationID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active invocation %q", invocationID)
	}
	cancel()
	return nil
}

// ActiveInvocations reports the number of in-flight orchestrations.
func (s *Supervisor) ActiveInvocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown cancels everything in flight and waits for completion or ctx
// expiry.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.active {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
