package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// ErrScriptExhausted is returned when a provider is called more often than it was scripted.
var ErrScriptExhausted = errors.New("testutil: script exhausted")

type step struct {
	resp *model.Response
	err  error
}

// ScriptedProvider replays a fixed sequence of responses and records every
// call it receives. Build one with fluent chaining:
//
//	p := NewScriptedProvider().
//		CallTools(testutil.Call("clock", nil)).
//		Reply("It is noon.")
//
// When the script runs out the last step repeats if Repeat was set, otherwise
// ErrScriptExhausted is returned.
type ScriptedProvider struct {
	mu     sync.Mutex
	steps  []step
	next   int
	repeat bool
	calls  [][]core.Turn
	tools  [][]model.ToolDefinition
}

// NewScriptedProvider creates an empty script.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// Reply appends a final text response (chainable).
func (p *ScriptedProvider) Reply(content string) *ScriptedProvider {
	p.steps = append(p.steps, step{resp: &model.Response{Content: content}})
	return p
}

// CallTools appends a response requesting the given tool calls (chainable).
func (p *ScriptedProvider) CallTools(calls ...core.ToolCall) *ScriptedProvider {
	p.steps = append(p.steps, step{resp: &model.Response{ToolCalls: calls}})
	return p
}

// Fail appends a step that returns err (chainable).
func (p *ScriptedProvider) Fail(err error) *ScriptedProvider {
	p.steps = append(p.steps, step{err: err})
	return p
}

// Repeat makes the last step answer every call past the end of the script (chainable).
func (p *ScriptedProvider) Repeat() *ScriptedProvider {
	p.repeat = true
	return p
}

// Complete implements model.Provider.
func (p *ScriptedProvider) Complete(ctx context.Context, turns []core.Turn, tools []model.ToolDefinition) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, append([]core.Turn(nil), turns...))
	p.tools = append(p.tools, tools)

	if len(p.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	idx := p.next
	if idx >= len(p.steps) {
		if !p.repeat {
			return nil, fmt.Errorf("%w after %d calls", ErrScriptExhausted, len(p.steps))
		}
		idx = len(p.steps) - 1
	} else {
		p.next++
	}

	s := p.steps[idx]
	if s.err != nil {
		return nil, s.err
	}
	resp := *s.resp
	return &resp, nil
}

// Info implements model.Provider.
func (p *ScriptedProvider) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

// CallCount returns how many times Complete ran.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Turns returns the turns passed to the i-th call.
func (p *ScriptedProvider) Turns(i int) []core.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

// Tools returns the tool definitions passed to the i-th call.
func (p *ScriptedProvider) Tools(i int) []model.ToolDefinition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tools[i]
}

// StreamingProvider wraps a script and streams each reply word by word.
type StreamingProvider struct {
	*ScriptedProvider
}

// NewStreamingProvider wraps p with native streaming.
func NewStreamingProvider(p *ScriptedProvider) *StreamingProvider {
	return &StreamingProvider{ScriptedProvider: p}
}

// StreamComplete implements model.StreamProvider.
func (p *StreamingProvider) StreamComplete(ctx context.Context, turns []core.Turn, tools []model.ToolDefinition) (<-chan core.StreamChunk, <-chan error) {
	out := make(chan core.StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := p.Complete(ctx, turns, tools)
		if err != nil {
			errCh <- err
			return
		}

		chunks := make([]core.StreamChunk, 0, 4)
		for _, w := range SplitWords(resp.Content) {
			chunks = append(chunks, core.NewDeltaChunk(w))
		}
		chunks = append(chunks, core.NewDoneChunk(resp.Content, resp.ToolCalls))

		for _, c := range chunks {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- c:
			}
		}
	}()

	return out, errCh
}

// SplitWords splits s after every space, keeping the separators so the parts
// concatenate back to s.
func SplitWords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, " ")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// Call builds a tool call with a deterministic id.
func Call(name string, args any) core.ToolCall {
	return core.ToolCall{ID: "call_" + name, Name: name, Arguments: args}
}

// Roles extracts the role sequence of turns.
func Roles(turns []core.Turn) []core.Role {
	roles := make([]core.Role, len(turns))
	for i, t := range turns {
		roles[i] = t.Role
	}
	return roles
}
