package model

import (
	"context"

	"github.com/hupe1980/agentloop/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema
}

// Response is one complete model turn.
type Response struct {
	Content   string          `json:"content"`
	ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
}

// HasToolCalls reports whether the model requested any tool invocation.
func (r *Response) HasToolCalls() bool { return r != nil && len(r.ToolCalls) > 0 }

// Info contains metadata about a provider implementation.
type Info struct {
	Name              string `json:"name"`
	Provider          string `json:"provider"` // "openai", "anthropic", "ollama", "echo"
	SupportsTools     bool   `json:"supports_tools"`
	SupportsStreaming bool   `json:"supports_streaming"`
}

// Provider is the contract every backend implements. Errors returned by
// Complete are fatal to the conversation turn that issued the call.
type Provider interface {
	Complete(ctx context.Context, turns []core.Turn, tools []ToolDefinition) (*Response, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// StreamProvider is implemented by backends with true incremental streaming.
//
// Implementations send chunks on the first channel and close it when the turn
// ends; the final chunk must be a done chunk. A failure is sent on the error
// channel, which is closed before the chunk channel.
type StreamProvider interface {
	Provider
	StreamComplete(ctx context.Context, turns []core.Turn, tools []ToolDefinition) (<-chan core.StreamChunk, <-chan error)
}

// Stream returns an incremental view of one model turn. Providers that do not
// implement StreamProvider are adapted: Complete is called once, then a single
// delta chunk with the full content and a terminal done chunk are emitted.
func Stream(ctx context.Context, p Provider, turns []core.Turn, tools []ToolDefinition) (<-chan core.StreamChunk, <-chan error) {
	if sp, ok := p.(StreamProvider); ok {
		return sp.StreamComplete(ctx, turns, tools)
	}
	return completeAsStream(ctx, p, turns, tools)
}

func completeAsStream(ctx context.Context, p Provider, turns []core.Turn, tools []ToolDefinition) (<-chan core.StreamChunk, <-chan error) {
	out := make(chan core.StreamChunk, 2)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := p.Complete(ctx, turns, tools)
		if err != nil {
			errCh <- err
			return
		}

		out <- core.NewDeltaChunk(resp.Content)
		out <- core.NewDoneChunk(resp.Content, resp.ToolCalls)
	}()

	return out, errCh
}

// Collect drains a stream and returns the terminal turn as a Response.
// It is the inverse of the default adapter and is handy for providers that
// implement Complete on top of their own streaming path.
func Collect(chunks <-chan core.StreamChunk, errs <-chan error) (*Response, error) {
	var done *core.StreamChunk
	for c := range chunks {
		if c.IsDone() {
			done = &c
		}
	}
	if err, ok := <-errs; ok && err != nil {
		return nil, err
	}
	if done == nil {
		return nil, ErrNoTerminalChunk
	}
	return &Response{Content: done.Content, ToolCalls: done.ToolCalls}, nil
}
