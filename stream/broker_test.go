package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/core"
)

func collect(ch <-chan core.Chunk, n int, t *testing.T) []core.Chunk {
	t.Helper()
	out := make([]core.Chunk, 0, n)
	for len(out) < n {
		select {
		case c := <-ch:
			out = append(out, c)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d chunks", len(out), n)
		}
	}
	return out
}

func TestPublishAnswerOrderingAndFinalMarker(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("conv-1")
	defer cancel()

	b.PublishAnswer("conv-1", "abcdefghij", 4) // "abcd","efgh","ij" + final

	chunks := collect(ch, 4, t)
	assert.Equal(t, []string{"abcd", "efgh", "ij", ""}, payloads(chunks))
	for i, c := range chunks {
		assert.Equal(t, uint64(i+1), c.Seq, "seq must be strictly increasing from 1")
		assert.Equal(t, "conv-1", c.ConversationID)
	}
	finals := 0
	for _, c := range chunks {
		if c.Final {
			finals++
		}
	}
	assert.Equal(t, 1, finals, "exactly one final chunk per answer segment")
	assert.True(t, chunks[len(chunks)-1].Final, "final marker closes the segment")
}

func TestPublishErrorIsSingleFinalChunk(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("conv-1")
	defer cancel()

	b.PublishError("conv-1", assert.AnError)

	chunks := collect(ch, 1, t)
	assert.Equal(t, core.ChunkError, chunks[0].Kind)
	assert.True(t, chunks[0].Final)
	assert.Equal(t, assert.AnError.Error(), chunks[0].Payload)
}

func TestStatusChunksAreNotFinal(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("conv-1")
	defer cancel()

	b.PublishStatus("conv-1", "typing")
	chunks := collect(ch, 1, t)
	assert.Equal(t, core.ChunkStatus, chunks[0].Kind)
	assert.False(t, chunks[0].Final)
}

func TestMultipleSubscribersSeeSameSequence(t *testing.T) {
	b := NewBroker()
	ch1, cancel1 := b.Subscribe("conv-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("conv-1")
	defer cancel2()

	b.PublishAnswer("conv-1", "hello world", 6)

	c1 := collect(ch1, 3, t)
	c2 := collect(ch2, 3, t)
	assert.Equal(t, c1, c2)
}

func TestConversationsAreIndependent(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("conv-a")
	defer cancel()

	b.PublishAnswer("conv-b", "other conversation", 100)
	b.PublishStatus("conv-a", "typing")

	chunks := collect(ch, 1, t)
	require.Equal(t, "conv-a", chunks[0].ConversationID)
	assert.Equal(t, uint64(1), chunks[0].Seq, "conv-b publishing must not advance conv-a's sequence")
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("conv-1")
	cancel()
	cancel() // idempotent

	b.PublishStatus("conv-1", "typing")
	if _, open := <-ch; open {
		t.Fatal("cancelled subscriber channel must be closed")
	}
}

func TestSlowSubscriberDoesNotBlockPublishing(t *testing.T) {
	b := NewBroker(func(o *Options) { o.BufferSize = 1 })
	_, cancel := b.Subscribe("conv-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Far more chunks than the buffer holds; Publish must not block.
		b.PublishAnswer("conv-1", string(make([]rune, 100)), 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}
}

func TestMultibyteSegmentation(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("conv-1")
	defer cancel()

	b.PublishAnswer("conv-1", "15°C, ясно", 3)
	chunks := collect(ch, 5, t) // 4 segments of <=3 runes + final

	var rebuilt string
	for _, c := range chunks {
		rebuilt += c.Payload
	}
	assert.Equal(t, "15°C, ясно", rebuilt, "segmentation must not split runes")
}

func (b *Broker) hasConversation(conversationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.convs[conversationID]
	return ok
}

func TestFinishedConversationsAreReaped(t *testing.T) {
	b := NewBroker()

	// No subscribers: the final marker alone releases the entry.
	b.PublishAnswer("conv-1", "hello", 10)
	assert.False(t, b.hasConversation("conv-1"))

	// With a live subscriber the entry survives the final chunk and is
	// released only when the last subscriber detaches.
	ch, cancel := b.Subscribe("conv-2")
	b.PublishAnswer("conv-2", "hi", 10)
	collect(ch, 2, t)
	assert.True(t, b.hasConversation("conv-2"))
	cancel()
	assert.False(t, b.hasConversation("conv-2"))
}

func TestMidStreamConversationsSurviveUnsubscribe(t *testing.T) {
	b := NewBroker()
	_, cancel := b.Subscribe("conv-1")
	b.PublishStatus("conv-1", "typing")
	cancel()

	// The stream has no final chunk yet; its sequence must be retained.
	require.True(t, b.hasConversation("conv-1"))
	chunk := b.Publish("conv-1", core.ChunkStatus, "consulting weather-svc", false)
	assert.Equal(t, uint64(2), chunk.Seq)
}

func payloads(chunks []core.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Payload
	}
	return out
}
