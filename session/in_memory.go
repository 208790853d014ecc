// Package session provides conversation history storage implementations
// consumed through core.HistoryStore.
package session

import (
	"sync"

	"github.com/parley-ai/parley/core"
)

// InMemoryStore is a volatile HistoryStore keeping per-conversation
// message history in a process-local map. Safe for concurrent access and
// best suited for tests or ephemeral demo servers. Returned histories are
// copies so callers cannot mutate internal state.
type InMemoryStore struct {
	mu        sync.RWMutex
	histories map[string][]core.Message
}

// NewInMemoryStore constructs an empty in-memory history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{histories: make(map[string][]core.Message)}
}

// Append adds a message to the conversation's history, creating the
// conversation lazily.
func (s *InMemoryStore) Append(conversationID string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[conversationID] = append(s.histories[conversationID], msg)
	return nil
}

// History returns a copy of the ordered history for a conversation. An
// unknown conversation yields an empty slice.
func (s *InMemoryStore) History(conversationID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.histories[conversationID]
	out := make([]core.Message, len(history))
	copy(out, history)
	return out, nil
}
