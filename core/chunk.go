package core

// ChunkKind tags the variant held by a StreamChunk.
type ChunkKind string

const (
	// ChunkDelta carries incremental assistant content.
	ChunkDelta ChunkKind = "delta"
	// ChunkToolResult carries a completed tool invocation.
	ChunkToolResult ChunkKind = "tool_result"
	// ChunkDone terminates one model turn.
	ChunkDone ChunkKind = "done"
)

// ToolResult pairs a tool name with the value it produced (or an error payload).
type ToolResult struct {
	Name   string `json:"name"`
	Result any    `json:"result"`
}

// StreamChunk is a tagged union emitted by streaming providers and re-emitted
// by the orchestrator. Exactly the fields belonging to Kind are meaningful.
type StreamChunk struct {
	Kind       ChunkKind   `json:"kind"`
	Delta      string      `json:"delta,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Done       bool        `json:"done,omitempty"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

// NewDeltaChunk constructs an incremental content chunk.
func NewDeltaChunk(delta string) StreamChunk {
	return StreamChunk{Kind: ChunkDelta, Delta: delta}
}

// NewToolResultChunk constructs a chunk announcing a finished tool invocation.
func NewToolResultChunk(name string, result any) StreamChunk {
	return StreamChunk{Kind: ChunkToolResult, ToolResult: &ToolResult{Name: name, Result: result}}
}

// NewDoneChunk constructs the terminal chunk of a model turn.
func NewDoneChunk(content string, calls []ToolCall) StreamChunk {
	return StreamChunk{Kind: ChunkDone, Done: true, Content: content, ToolCalls: calls}
}

// IsDone reports whether the chunk terminates a model turn.
func (c StreamChunk) IsDone() bool { return c.Kind == ChunkDone }
