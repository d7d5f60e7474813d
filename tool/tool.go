// Package tool implements the tool catalogue the orchestrator dispatches
// model-issued calls through: uniquely named specs with a handler, an optional
// parameter schema used for a lightweight shape check, and a parallel-safety
// flag that decides whether a call may run concurrently with others.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentloop/internal/util"
)

// Sentinel errors returned by the Registry. Use errors.Is to check.
var (
	ErrUnknownTool    = errors.New("unknown tool")
	ErrDuplicateTool  = errors.New("duplicate tool name")
	ErrMissingHandler = errors.New("missing handler")
	ErrEmptyName      = errors.New("tool name is empty")
)

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
)

// Handler executes a tool. args has already been normalized to a map and has
// passed the registry's shape check. The result is handed back verbatim; it
// should be JSON-serializable since it ends up in the conversation log.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Spec describes one invocable tool.
type Spec struct {
	// Name is the unique identifier the model uses to call the tool.
	Name string
	// Description is shown to the model to explain when to use the tool.
	Description string
	// Parameters is a JSON-schema-like shape. Nil or permissive schemas are not checked.
	Parameters map[string]any
	// Handler is required; registration fails without it.
	Handler Handler
	// ParallelSafe marks the tool as safe to run concurrently with other
	// parallel-safe tools. Nil means true.
	ParallelSafe *bool
}

// IsParallelSafe resolves the ParallelSafe default.
func (s Spec) IsParallelSafe() bool {
	return s.ParallelSafe == nil || *s.ParallelSafe
}

// Info returns the model-facing description of the spec.
func (s Spec) Info() SpecInfo {
	return SpecInfo{
		Name:         s.Name,
		Description:  s.Description,
		Parameters:   s.Parameters,
		ParallelSafe: s.IsParallelSafe(),
	}
}

// SpecInfo is the handler-free view of a Spec used to build tool schemas.
type SpecInfo struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	ParallelSafe bool           `json:"parallel_safe"`
}

// SpecOption customizes a Spec built by NewSpec.
type SpecOption func(*Spec)

// WithParameters sets the parameter schema.
func WithParameters(schema map[string]any) SpecOption {
	return func(s *Spec) { s.Parameters = schema }
}

// WithParallelSafe overrides the default (true) parallel-safety flag.
func WithParallelSafe(safe bool) SpecOption {
	return func(s *Spec) { s.ParallelSafe = &safe }
}

// NewSpec builds a Spec from a name, description and handler.
//
// Example:
//
//	clock := tool.NewSpec("clock", "Return the current time",
//	  func(ctx context.Context, _ map[string]any) (any, error) {
//	    return map[string]any{"now": time.Now().Format(time.RFC3339)}, nil
//	  },
//	  tool.WithParallelSafe(true),
//	)
func NewSpec(name, description string, handler Handler, opts ...SpecOption) Spec {
	s := Spec{Name: name, Description: description, Handler: handler}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// SchemaFor derives a parameter schema from the struct type T.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" jsonschema:"first addend"`
//	  B float64 `json:"b" jsonschema:"second addend"`
//	}
//	schema, err := tool.SchemaFor[SumArgs]()
func SchemaFor[T any]() (map[string]any, error) {
	return util.SchemaFor[T]()
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Err     error  `json:"-"`       // Underlying cause, if any
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// ErrorResult builds the result-level error payload handed back to the model.
func ErrorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
