package agentloop

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/model/echo"
	"github.com/hupe1980/agentloop/tool"
)

func TestNew_Echo(t *testing.T) {
	o, err := New(echo.NewModel())
	require.NoError(t, err)

	reply, err := o.Ask(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", reply)
}

func TestNew_RegistersTools(t *testing.T) {
	handler := func(context.Context, map[string]any) (any, error) { return "pong", nil }
	p := testutil.NewScriptedProvider().CallTools(testutil.Call("ping", nil)).Reply("done")

	o, err := New(p, func(o *Options) {
		o.Tools = []tool.Spec{tool.NewSpec("ping", "Ping", handler)}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, o.Registry().Len())

	_, err = o.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "pong", o.History()[1].Content)
}

func TestNew_DuplicateTool(t *testing.T) {
	handler := func(context.Context, map[string]any) (any, error) { return nil, nil }
	_, err := New(echo.NewModel(), func(o *Options) {
		o.Tools = []tool.Spec{tool.NewSpec("x", "", handler), tool.NewSpec("x", "", handler)}
	})
	assert.ErrorIs(t, err, tool.ErrDuplicateTool)
}

func TestNew_History(t *testing.T) {
	data := []byte(`[{"role":"user","content":"before","tool_name":""},{"role":"assistant","content":"before","tool_name":""}]`)
	o, err := New(echo.NewModel(), func(o *Options) { o.History = memory.Deserialize(data, 10) })
	require.NoError(t, err)

	_, err = o.Ask(context.Background(), "after")
	require.NoError(t, err)
	assert.Len(t, o.History(), 4)
}

func TestConsume(t *testing.T) {
	o, err := New(echo.NewModel())
	require.NoError(t, err)

	var sb strings.Builder
	chunks, errs := o.AskStream(context.Background(), "stream me")
	err = Consume(chunks, errs, func(c core.StreamChunk) {
		sb.WriteString(c.Delta)
	})
	require.NoError(t, err)
	assert.Equal(t, "stream me", sb.String())
}
