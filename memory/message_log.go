package memory

import (
	"bufio"
	"bytes"
	"encoding/json"

	"github.com/hupe1980/agentloop/core"
)

// DefaultMaxMessages is the capacity used when a non-positive capacity is requested.
const DefaultMaxMessages = 200

// UnnamedTool labels tool turns appended without a tool name.
const UnnamedTool = "unnamed"

// MessageLog is an ordered, bounded record of conversation turns with FIFO eviction.
type MessageLog struct {
	turns []core.Turn
	max   int
}

// NewMessageLog creates an empty log holding at most maxMessages turns.
// A non-positive maxMessages falls back to DefaultMaxMessages.
func NewMessageLog(maxMessages int) *MessageLog {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &MessageLog{
		turns: make([]core.Turn, 0, min(maxMessages, 16)),
		max:   maxMessages,
	}
}

// Append adds a turn at the tail and evicts from the head until the log is
// within capacity. toolName is only retained for core.RoleTool; an empty one
// is recorded as UnnamedTool. Turns with an unknown role are dropped, so
// everything appended survives Serialize and Deserialize.
func (l *MessageLog) Append(role core.Role, content, toolName string) {
	if !role.Valid() {
		return
	}
	if role == core.RoleTool && toolName == "" {
		toolName = UnnamedTool
	}
	l.push(core.NewTurn(role, content, toolName))
}

func (l *MessageLog) push(t core.Turn) {
	l.turns = append(l.turns, t)
	if over := len(l.turns) - l.max; over > 0 {
		n := copy(l.turns, l.turns[over:])
		clear(l.turns[n:])
		l.turns = l.turns[:n]
	}
}

// Snapshot returns a copy of the turns in insertion order.
func (l *MessageLog) Snapshot() []core.Turn {
	out := make([]core.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns currently held.
func (l *MessageLog) Len() int { return len(l.turns) }

// Cap returns the configured capacity.
func (l *MessageLog) Cap() int { return l.max }

// HasRole reports whether any turn in the whole log has the given role.
func (l *MessageLog) HasRole(role core.Role) bool {
	for _, t := range l.turns {
		if t.Role == role {
			return true
		}
	}
	return false
}

// LastUserMessage scans backwards and returns the most recent user turn.
func (l *MessageLog) LastUserMessage() (core.Turn, bool) {
	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].Role == core.RoleUser {
			return l.turns[i], true
		}
	}
	return core.Turn{}, false
}

// Reset drops every turn while keeping the capacity.
func (l *MessageLog) Reset() {
	clear(l.turns)
	l.turns = l.turns[:0]
}

// Serialize encodes the log as a JSON array of {role, content, tool_name} records.
func (l *MessageLog) Serialize() ([]byte, error) {
	records := make([]record, len(l.turns))
	for i, t := range l.turns {
		records[i] = toRecord(t)
	}
	return json.Marshal(records)
}

// SerializeLines encodes the log as line-delimited JSON, one record per line.
func (l *MessageLog) SerializeLines() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range l.turns {
		if err := enc.Encode(toRecord(t)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Deserialize restores a log from either representation produced by Serialize
// or SerializeLines. Only the most recent maxMessages records survive.
// Malformed input (bad JSON, unknown roles, tool records without a tool name)
// yields an empty log.
func Deserialize(data []byte, maxMessages int) *MessageLog {
	l := NewMessageLog(maxMessages)

	records, ok := decodeRecords(data)
	if !ok {
		return l
	}

	turns := make([]core.Turn, 0, len(records))
	for _, r := range records {
		t := core.NewTurn(core.Role(r.Role), r.Content, r.ToolName)
		if t.Validate() != nil {
			return l
		}
		turns = append(turns, t)
	}

	for _, t := range turns {
		l.push(t)
	}
	return l
}

// record is the persisted layout. tool_name is always written so the array
// form is stable for consumers that expect every key to be present.
type record struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ToolName string `json:"tool_name"`
}

func toRecord(t core.Turn) record {
	return record{Role: string(t.Role), Content: t.Content, ToolName: t.ToolName}
}

func decodeRecords(data []byte) ([]record, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, true
	}

	if trimmed[0] == '[' {
		var records []record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, false
		}
		return records, true
	}

	var records []record
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, false
		}
		records = append(records, r)
	}
	if sc.Err() != nil {
		return nil, false
	}
	return records, true
}
