package stream

import (
	"sync"

	"github.com/parley-ai/parley/core"
	"github.com/parley-ai/parley/internal/util"
	"github.com/parley-ai/parley/logging"
)

// Options configure a Broker.
type Options struct {
	// BufferSize is the per-subscriber channel capacity. A subscriber
	// that falls this far behind starts losing chunks (logged), so the
	// orchestrator is never blocked indefinitely by a stalled client.
	BufferSize int
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// subscriber is one client channel attached to a conversation.
type subscriber struct {
	id int
	ch chan core.Chunk
}

// conversation owns the sequence counter and subscriber set for one
// conversation id. Guarded by its own mutex so conversations never
// contend with each other. finished tracks whether the latest published
// chunk was final; a finished conversation with no subscribers left is
// dropped from the broker so long-lived processes do not accumulate
// per-conversation state forever.
type conversation struct {
	mu       sync.Mutex
	nextID   int
	seq      uint64
	finished bool
	subs     map[int]*subscriber
}

// Broker is the streaming output channel. Safe for concurrent use by any
// number of orchestrations and subscribers.
type Broker struct {
	opts   Options
	logger logging.Logger

	mu    sync.Mutex
	convs map[string]*conversation
}

// NewBroker creates an empty broker.
func NewBroker(optFns ...func(o *Options)) *Broker {
	opts := Options{BufferSize: 64, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Broker{opts: opts, logger: opts.Logger, convs: map[string]*conversation{}}
}

func (b *Broker) conversation(conversationID string) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.convs[conversationID]
	if !ok {
		c = &conversation{subs: map[int]*subscriber{}}
		b.convs[conversationID] = c
	}
	return c
}

// Subscribe attaches a client to a conversation's chunk stream. The
// returned cancel function detaches and closes the channel; it is safe
// to call more than once.
func (b *Broker) Subscribe(conversationID string) (<-chan core.Chunk, func()) {
	c := b.conversation(conversationID)
	c.mu.Lock()
	sub := &subscriber{id: c.nextID, ch: make(chan core.Chunk, b.opts.BufferSize)}
	c.nextID++
	c.subs[sub.id] = sub
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, sub.id)
			c.mu.Unlock()
			close(sub.ch)
			b.release(conversationID, c)
		})
	}
	return sub.ch, cancel
}

// release drops a conversation whose stream is complete and whose last
// subscriber is gone. Lock order is broker then conversation; no other
// path nests the two.
func (b *Broker) release(conversationID string, c *conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished || len(c.subs) != 0 || b.convs[conversationID] != c {
		return
	}
	delete(b.convs, conversationID)
}

// Publish assigns the next sequence number for the conversation and fans
// the chunk out to all subscribers. It returns the published chunk.
func (b *Broker) Publish(conversationID string, kind core.ChunkKind, payload string, final bool) core.Chunk {
	c := b.conversation(conversationID)
	c.mu.Lock()
	c.seq++
	c.finished = final
	chunk := core.Chunk{
		ConversationID: conversationID,
		Seq:            c.seq,
		Kind:           kind,
		Payload:        payload,
		Final:          final,
	}
	for _, sub := range c.subs {
		select {
		case sub.ch <- chunk:
		default:
			// Stalled subscriber; ordering for the others must not suffer.
			b.logger.Warn("stream.chunk.dropped",
				"conversation_id", conversationID,
				"seq", chunk.Seq,
				"subscriber", sub.id,
			)
		}
	}
	c.mu.Unlock()
	if final {
		b.release(conversationID, c)
	}
	return chunk
}

// PublishStatus emits a non-final status indicator (typing, tool progress).
func (b *Broker) PublishStatus(conversationID, status string) {
	b.Publish(conversationID, core.ChunkStatus, status, false)
}

// PublishAnswer segments final content into bounded-size chunks and
// publishes them sequentially, closed by a terminal marker chunk.
func (b *Broker) PublishAnswer(conversationID, content string, chunkSize int) {
	for _, segment := range util.SplitChunks(content, chunkSize) {
		b.Publish(conversationID, core.ChunkAnswer, segment, false)
	}
	b.Publish(conversationID, core.ChunkAnswer, "", true)
}

// PublishError emits a single terminal chunk carrying the error text
// verbatim. No partial-success chunks follow it.
func (b *Broker) PublishError(conversationID string, err error) {
	b.Publish(conversationID, core.ChunkError, err.Error(), true)
}
