package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/core"
)

func TestSupervisorStartDeliversResult(t *testing.T) {
	f := newFixture(t)
	f.backend.EnqueueAnswer("async answer")
	sup := NewSupervisor(f.orch)

	id, results, err := sup.Start(context.Background(), Inbound{
		ConversationID: "conv-1",
		Content:        "hi",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case result := <-results:
		require.Equal(t, StateDone, result.State)
		assert.Equal(t, "async answer", result.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}

	// The channel closes after the terminal result.
	_, open := <-results
	assert.False(t, open)
	assert.Equal(t, 0, sup.ActiveInvocations())
}

func TestSupervisorCancelUnknownInvocation(t *testing.T) {
	f := newFixture(t)
	sup := NewSupervisor(f.orch)

	err := sup.Cancel("no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active invocation")
}

func TestSupervisorCancelTerminatesInvocation(t *testing.T) {
	f := newFixture(t)
	blocked := make(chan struct{}, 1)
	f.orch.backend = &blockingBackend{started: blocked}
	sup := NewSupervisor(f.orch)

	ch, unsub := f.broker.Subscribe("conv-1")
	defer unsub()

	id, results, err := sup.Start(context.Background(), Inbound{
		ConversationID: "conv-1",
		Content:        "hi",
	})
	require.NoError(t, err)

	<-blocked
	require.NoError(t, sup.Cancel(id))

	select {
	case result := <-results:
		require.Equal(t, StateFailed, result.State)
		assert.True(t, core.IsKind(result.Err, core.KindTimeout))
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled invocation never terminated")
	}

	// The client stream still sees a terminal error chunk.
	chunks := drain(ch)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.Equal(t, core.ChunkError, last.Kind)
	assert.True(t, last.Final)

	// The id is gone once the invocation finished.
	require.Error(t, sup.Cancel(id))
}

func TestSupervisorConcurrencyLimit(t *testing.T) {
	f := newFixture(t)
	blocked := make(chan struct{}, 2)
	f.orch.backend = &blockingBackend{started: blocked}
	sup := NewSupervisor(f.orch, func(o *SupervisorOptions) { o.MaxConcurrent = 1 })

	id1, _, err := sup.Start(context.Background(), Inbound{ConversationID: "c1", Content: "hi"})
	require.NoError(t, err)
	<-blocked

	// Second start must block on the slot until the context gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = sup.Start(ctx, Inbound{ConversationID: "c2", Content: "hi"})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindTimeout))

	require.NoError(t, sup.Cancel(id1))
	require.NoError(t, sup.Shutdown(context.Background()))
}

func TestSupervisorShutdown(t *testing.T) {
	f := newFixture(t)
	blocked := make(chan struct{}, 4)
	f.orch.backend = &blockingBackend{started: blocked}
	sup := NewSupervisor(f.orch)

	for i := 0; i < 3; i++ {
		_, _, err := sup.Start(context.Background(), Inbound{ConversationID: "conv", Content: "hi"})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		<-blocked
	}
	assert.Equal(t, 3, sup.ActiveInvocations())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
	assert.Equal(t, 0, sup.ActiveInvocations())
}
