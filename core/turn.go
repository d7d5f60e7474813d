package core

import "fmt"

// Role identifies the author of a Turn.
type Role string

const (
	// RoleSystem carries operator instructions prepended to a conversation.
	RoleSystem Role = "system"
	// RoleUser carries end-user input.
	RoleUser Role = "user"
	// RoleAssistant carries model output.
	RoleAssistant Role = "assistant"
	// RoleTool carries the rendered result of a tool invocation.
	RoleTool Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// Turn is one entry of a conversation log.
//
// ToolName is set if and only if Role is RoleTool. Use NewTurn to construct
// values that respect this rule.
type Turn struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	ToolName string `json:"tool_name,omitempty"`
}

// NewTurn builds a Turn, dropping toolName for every role other than RoleTool.
func NewTurn(role Role, content, toolName string) Turn {
	if role != RoleTool {
		toolName = ""
	}
	return Turn{Role: role, Content: content, ToolName: toolName}
}

// Validate checks the role and the tool name invariant.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("invalid role %q", t.Role)
	}
	if t.Role == RoleTool && t.ToolName == "" {
		return fmt.Errorf("tool turn without tool name")
	}
	if t.Role != RoleTool && t.ToolName != "" {
		return fmt.Errorf("%s turn must not carry a tool name", t.Role)
	}
	return nil
}

// ToolCall is a request, emitted by a model, to invoke a named tool.
//
// Arguments is intentionally opaque: providers hand over JSON strings, decoded
// maps, nil, or arbitrary scalars and arrays. It is normalized to a map before
// any handler sees it.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}
