package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/logging"
)

// Handler processes an inbound request or notification. For requests the
// returned value is marshaled into the reply envelope; a returned error
// is sent back as a wire error. For notifications both are discarded.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Options configure an Engine.
type Options struct {
	// CallTimeout bounds how long Call waits for a response before the
	// pending entry is dropped and a timeout error returned.
	CallTimeout time.Duration
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// pendingCall is one in-flight outbound request. Owned exclusively by the
// engine; removed on response, error, timeout or cancellation. The result
// channel has capacity 1 so the reader never blocks on a caller that
// already gave up.
type pendingCall struct {
	id       string
	issuedAt time.Time
	result   chan callResult
}

type callResult struct {
	payload json.RawMessage
	err     error
}

// Engine multiplexes request/response correlation and handler dispatch
// over one bidirectional connection. Safe for concurrent use; a process
// typically runs one Engine per expert endpoint plus one per connected
// client.
type Engine struct {
	conn   io.ReadWriteCloser
	opts   Options
	logger logging.Logger

	writeMu sync.Mutex // serializes envelope writes

	mu       sync.Mutex
	pending  map[string]*pendingCall
	handlers map[string]Handler
	closed   bool
	closeErr error
}

// NewEngine wraps an established bidirectional connection. Run must be
// called before Call/Notify can make progress.
func NewEngine(conn io.ReadWriteCloser, optFns ...func(o *Options)) *Engine {
	opts := Options{CallTimeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{
		conn:     conn,
		opts:     opts,
		logger:   opts.Logger,
		pending:  map[string]*pendingCall{},
		handlers: map[string]Handler{},
	}
}

// Dial connects to an expert endpoint over TCP and returns an engine
// ready to Run.
func Dial(addr string, optFns ...func(o *Options)) (*Engine, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, core.WrapE(core.KindProtocol, err, "dial %s", addr)
	}
	return NewEngine(conn, optFns...), nil
}

// Handle registers a handler for an inbound method. Registering the same
// method twice replaces the previous handler.
func (e *Engine) Handle(method string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[method] = h
}

// errPeerClosed reports that the remote side closed the connection.
var errPeerClosed = core.E(core.KindProtocol, "connection closed by peer")

// Run drives the read pump until ctx is cancelled, the peer disconnects
// or the connection fails. It always returns after failing any
// still-pending calls, so callers blocked in Call are released; a peer
// disconnect surfaces as a protocol-kind error.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return e.conn.Close()
	})
	g.Go(func() error {
		defer e.failAllPending(core.E(core.KindProtocol, "connection closed"))
		scanner := bufio.NewScanner(e.conn)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			e.dispatch(gctx, append([]byte(nil), line...))
		}
		if err := scanner.Err(); err != nil && gctx.Err() == nil {
			return core.WrapE(core.KindProtocol, err, "read loop")
		}
		// Clean EOF. The returned error cancels gctx so the closer
		// goroutine unblocks and Wait returns.
		return errPeerClosed
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Call issues a request and suspends until a response, the per-call
// timeout, or ctx cancellation. Each call allocates a correlation id that
// is never reused; a late response for an abandoned id is discarded by
// the read pump.
func (e *Engine) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	pc := &pendingCall{
		id:       core.NewID(),
		issuedAt: time.Now(),
		result:   make(chan callResult, 1),
	}
	if err := e.addPending(pc); err != nil {
		return nil, err
	}

	env, err := buildEnvelope(pc.id, method, params)
	if err != nil {
		e.removePending(pc.id)
		return nil, err
	}
	if err := e.write(env); err != nil {
		e.removePending(pc.id)
		return nil, err
	}

	timer := time.NewTimer(e.opts.CallTimeout)
	defer timer.Stop()

	select {
	case res := <-pc.result:
		if res.err != nil {
			return nil, res.err
		}
		return res.payload, nil
	case <-timer.C:
		e.removePending(pc.id)
		return nil, core.E(core.KindTimeout, "call %s did not resolve within %s", method, e.opts.CallTimeout)
	case <-ctx.Done():
		// Cancellation releases the pending call the same way a local
		// timeout does.
		e.removePending(pc.id)
		return nil, core.WrapE(core.KindTimeout, ctx.Err(), "call %s cancelled", method)
	}
}

// Notify sends a fire-and-forget envelope; no reply is expected or
// correlated.
func (e *Engine) Notify(method string, params any) error {
	env, err := buildEnvelope("", method, params)
	if err != nil {
		return err
	}
	return e.write(env)
}

// PendingCalls reports the number of in-flight outbound requests.
func (e *Engine) PendingCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Close tears down the connection and fails all pending calls.
func (e *Engine) Close() error {
	e.failAllPending(core.E(core.KindProtocol, "engine closed"))
	return e.conn.Close()
}

func buildEnvelope(id, method string, params any) (Envelope, error) {
	env := Envelope{ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return env, core.WrapE(core.KindProtocol, err, "marshal params for %s", method)
		}
		env.Params = raw
	}
	return env, nil
}

func (e *Engine) addPending(pc *pendingCall) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return core.E(core.KindProtocol, "engine closed")
	}
	e.pending[pc.id] = pc
	return nil
}

func (e *Engine) removePending(id string) *pendingCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	pc, ok := e.pending[id]
	if !ok {
		return nil
	}
	delete(e.pending, id)
	return pc
}

func (e *Engine) failAllPending(err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.closeErr = err
	pending := e.pending
	e.pending = map[string]*pendingCall{}
	e.mu.Unlock()

	for _, pc := range pending {
		pc.result <- callResult{err: err}
	}
}

func (e *Engine) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return core.WrapE(core.KindProtocol, err, "marshal envelope")
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if _, err := e.conn.Write(append(data, '\n')); err != nil {
		return core.WrapE(core.KindProtocol, err, "write envelope")
	}
	return nil
}

// dispatch routes one inbound envelope by shape. Malformed lines and
// unknown correlation ids are logged and dropped, never fatal.
func (e *Engine) dispatch(ctx context.Context, line []byte) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		e.logger.Warn("protocol.dispatch.malformed", "error", err.Error())
		return
	}
	switch {
	case env.isResponse():
		e.resolve(env)
	case env.isRequest():
		go e.serveRequest(ctx, env)
	case env.isNotification():
		go e.serveNotification(ctx, env)
	default:
		e.logger.Warn("protocol.dispatch.unroutable", "id", env.ID)
	}
}

func (e *Engine) resolve(env Envelope) {
	pc := e.removePending(env.ID)
	if pc == nil {
		// Unknown or already timed-out id: discard.
		e.logger.Warn("protocol.response.unmatched", "id", env.ID)
		return
	}
	if env.Error != nil {
		pc.result <- callResult{err: core.E(core.KindProtocol, "remote error %d: %s", env.Error.Code, env.Error.Message)}
		return
	}
	pc.result <- callResult{payload: env.Result}
}

func (e *Engine) serveRequest(ctx context.Context, env Envelope) {
	result, err := e.invokeHandler(ctx, env)
	reply := Envelope{ID: env.ID}
	if err != nil {
		reply.Error = &WireError{Code: -32000, Message: err.Error()}
	} else {
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			reply.Error = &WireError{Code: -32603, Message: fmt.Sprintf("marshal result: %v", mErr)}
		} else {
			reply.Result = raw
		}
	}
	if wErr := e.write(reply); wErr != nil {
		e.logger.Warn("protocol.reply.failed", "id", env.ID, "error", wErr.Error())
	}
}

func (e *Engine) serveNotification(ctx context.Context, env Envelope) {
	if _, err := e.invokeHandler(ctx, env); err != nil {
		e.logger.Warn("protocol.notification.failed", "method", env.Method, "error", err.Error())
	}
}

// invokeHandler looks up and runs the handler for env, converting a
// panic into an error so one bad handler cannot take down the engine.
func (e *Engine) invokeHandler(ctx context.Context, env Envelope) (result any, err error) {
	e.mu.Lock()
	h, ok := e.handlers[env.Method]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("method not found: %s", env.Method)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, env.Params)
}
