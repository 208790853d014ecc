package core

// ChunkKind distinguishes the payload category of an output chunk.
type ChunkKind string

const (
	// ChunkAnswer carries a segment of the final answer text.
	ChunkAnswer ChunkKind = "answer"
	// ChunkStatus carries an intermediate status indicator (typing, tool
	// progress). Status chunks are never partial answers.
	ChunkStatus ChunkKind = "status"
	// ChunkError carries the verbatim kind + message of a failed
	// orchestration. Error chunks are always final.
	ChunkError ChunkKind = "error"
)

// Chunk is the unit pushed to the streaming output channel. Subscribers
// observe chunks for one conversation in strictly increasing Seq order,
// with exactly one Final chunk closing each answer segment.
type Chunk struct {
	ConversationID string    `json:"conversation_id"`
	Seq            uint64    `json:"seq"`
	Kind           ChunkKind `json:"kind"`
	Payload        string    `json:"payload"`
	Final          bool      `json:"final"`
}
