package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
)

type staticProvider struct {
	resp *Response
	err  error
}

func (p *staticProvider) Complete(context.Context, []core.Turn, []ToolDefinition) (*Response, error) {
	return p.resp, p.err
}

func (p *staticProvider) Info() Info { return Info{Name: "static", Provider: "test"} }

type streamingProvider struct {
	staticProvider
	chunks []core.StreamChunk
}

func (p *streamingProvider) StreamComplete(context.Context, []core.Turn, []ToolDefinition) (<-chan core.StreamChunk, <-chan error) {
	out := make(chan core.StreamChunk, len(p.chunks))
	errCh := make(chan error)
	for _, c := range p.chunks {
		out <- c
	}
	close(errCh)
	close(out)
	return out, errCh
}

func drain(chunks <-chan core.StreamChunk) []core.StreamChunk {
	var got []core.StreamChunk
	for c := range chunks {
		got = append(got, c)
	}
	return got
}

func TestStream_DefaultAdapter(t *testing.T) {
	calls := []core.ToolCall{{Name: "clock", Arguments: "{}"}}
	p := &staticProvider{resp: &Response{Content: "hello", ToolCalls: calls}}

	chunks, errs := Stream(context.Background(), p, nil, nil)
	got := drain(chunks)

	require.Len(t, got, 2)
	assert.Equal(t, core.NewDeltaChunk("hello"), got[0])
	assert.Equal(t, core.NewDoneChunk("hello", calls), got[1])

	_, ok := <-errs
	assert.False(t, ok, "error channel should be closed without error")
}

func TestStream_DefaultAdapterPropagatesError(t *testing.T) {
	boom := errors.New("backend down")
	p := &staticProvider{err: boom}

	chunks, errs := Stream(context.Background(), p, nil, nil)
	assert.Empty(t, drain(chunks))
	assert.ErrorIs(t, <-errs, boom)
}

func TestStream_UsesNativeStreaming(t *testing.T) {
	p := &streamingProvider{chunks: []core.StreamChunk{
		core.NewDeltaChunk("he"),
		core.NewDeltaChunk("llo"),
		core.NewDoneChunk("hello", nil),
	}}

	chunks, _ := Stream(context.Background(), p, nil, nil)
	got := drain(chunks)
	require.Len(t, got, 3)
	assert.Equal(t, "he", got[0].Delta)
}

func TestCollect(t *testing.T) {
	p := &staticProvider{resp: &Response{Content: "done", ToolCalls: []core.ToolCall{{Name: "a"}}}}
	resp, err := Collect(Stream(context.Background(), p, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.True(t, resp.HasToolCalls())
}

func TestCollect_NoTerminalChunk(t *testing.T) {
	out := make(chan core.StreamChunk, 1)
	errCh := make(chan error)
	out <- core.NewDeltaChunk("partial")
	close(out)
	close(errCh)

	_, err := Collect(out, errCh)
	assert.ErrorIs(t, err, ErrNoTerminalChunk)
}

func TestSplitSystem(t *testing.T) {
	turns := []core.Turn{
		core.NewTurn(core.RoleSystem, "be brief", ""),
		core.NewTurn(core.RoleUser, "hi", ""),
		core.NewTurn(core.RoleSystem, "use tools", ""),
	}
	system, rest := SplitSystem(turns)
	assert.Equal(t, "be brief\n\nuse tools", system)
	require.Len(t, rest, 1)
	assert.Equal(t, core.RoleUser, rest[0].Role)
}

func TestRenderToolTurn(t *testing.T) {
	got := RenderToolTurn(core.NewTurn(core.RoleTool, `{"now":"noon"}`, "clock"))
	assert.Equal(t, `tool clock returned: {"now":"noon"}`, got)
}

func TestResponse_HasToolCalls(t *testing.T) {
	var nilResp *Response
	assert.False(t, nilResp.HasToolCalls())
	assert.False(t, (&Response{}).HasToolCalls())
}
