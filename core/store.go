package core

// HistoryStore is the storage collaborator the orchestrator persists
// conversation history through. Persistence is best effort: an Append
// failure is logged and swallowed (KindPersistence) and never aborts an
// orchestration.
//
// Implementations must be safe for concurrent use; the module ships an
// in-memory implementation in the session package.
type HistoryStore interface {
	// Append adds a message to the conversation's history.
	Append(conversationID string, msg Message) error

	// History returns the ordered message history for a conversation.
	// An unknown conversation yields an empty slice, not an error.
	History(conversationID string) ([]Message, error)
}
