package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

func newOrchestrator(t *testing.T, p model.Provider, r *tool.Registry, cfg Config, optFns ...func(o *Options)) *Orchestrator {
	t.Helper()
	o, err := New(p, r, cfg, optFns...)
	require.NoError(t, err)
	return o
}

func constant(v any) tool.Handler {
	return func(context.Context, map[string]any) (any, error) { return v, nil }
}

func toolTurns(turns []core.Turn) []core.Turn {
	var out []core.Turn
	for _, t := range turns {
		if t.Role == core.RoleTool {
			out = append(out, t)
		}
	}
	return out
}

func toolNames(turns []core.Turn) []string {
	names := make([]string, 0, len(turns))
	for _, t := range toolTurns(turns) {
		names = append(names, t.ToolName)
	}
	return names
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, Config{})
	assert.ErrorIs(t, err, ErrNilProvider)

	_, err = New(testutil.NewScriptedProvider(), nil, Config{MaxSteps: -1})
	assert.ErrorIs(t, err, ErrNegativeMaxSteps)

	o, err := New(testutil.NewScriptedProvider(), nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, memory.DefaultMaxMessages, o.Log().Cap())
	assert.Equal(t, 0, o.Registry().Len())
}

func TestAsk_PlainReply(t *testing.T) {
	p := testutil.NewScriptedProvider().Reply("hello")
	o := newOrchestrator(t, p, nil, DefaultConfig())

	reply, err := o.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	assert.Equal(t, []core.Turn{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
	}, o.History())
	assert.Equal(t, 1, p.CallCount())
}

func TestAsk_SystemPromptInsertedOnce(t *testing.T) {
	p := testutil.NewScriptedProvider().Reply("a").Reply("b")
	cfg := DefaultConfig()
	cfg.SystemPrompt = "be brief"
	o := newOrchestrator(t, p, nil, cfg)

	_, err := o.Ask(context.Background(), "one")
	require.NoError(t, err)
	_, err = o.Ask(context.Background(), "two")
	require.NoError(t, err)

	history := o.History()
	assert.Equal(t, []core.Role{
		core.RoleSystem, core.RoleUser, core.RoleAssistant, core.RoleUser, core.RoleAssistant,
	}, testutil.Roles(history))
	assert.Equal(t, "be brief", history[0].Content)

	// the model sees the system prompt first on every call
	assert.Equal(t, core.RoleSystem, p.Turns(1)[0].Role)
}

func TestAsk_ResetReinsertsSystemPrompt(t *testing.T) {
	p := testutil.NewScriptedProvider().Reply("ok").Repeat()
	cfg := DefaultConfig()
	cfg.SystemPrompt = "sys"
	o := newOrchestrator(t, p, nil, cfg)

	_, err := o.Ask(context.Background(), "one")
	require.NoError(t, err)
	o.Reset()
	_, err = o.Ask(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, []core.Role{core.RoleSystem, core.RoleUser, core.RoleAssistant}, testutil.Roles(o.History()))
}

func TestAsk_StepBound(t *testing.T) {
	calls := 0
	r := tool.NewRegistry()
	r.MustRegister(tool.NewSpec("noop", "does nothing", func(context.Context, map[string]any) (any, error) {
		calls++
		return "ok", nil
	}, tool.WithParallelSafe(false)))

	p := testutil.NewScriptedProvider().CallTools(testutil.Call("noop", nil)).Repeat()
	cfg := DefaultConfig()
	cfg.MaxSteps = 3
	o := newOrchestrator(t, p, r, cfg)

	reply, err := o.Ask(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Empty(t, reply)

	assert.Equal(t, cfg.MaxSteps+1, p.CallCount())
	assert.Equal(t, cfg.MaxSteps, calls)

	history := o.History()
	assert.Len(t, toolTurns(history), cfg.MaxSteps)
	assert.Equal(t, core.RoleAssistant, history[len(history)-1].Role)
}

func TestAsk_ZeroMaxStepsNeverRunsTools(t *testing.T) {
	r := tool.NewRegistry()
	r.MustRegister(tool.NewSpec("explode", "", func(context.Context, map[string]any) (any, error) {
		t.Fatal("tool must not run")
		return nil, nil
	}))

	p := testutil.NewScriptedProvider().CallTools(testutil.Call("explode", nil))
	o := newOrchestrator(t, p, r, Config{MaxSteps: 0})

	_, err := o.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CallCount())
	assert.Empty(t, toolTurns(o.History()))
}

func TestAsk_ToolRoundTrip(t *testing.T) {
	var got map[string]any
	r := tool.NewRegistry()
	r.MustRegister(tool.NewSpec("weather", "Current weather", func(_ context.Context, args map[string]any) (any, error) {
		got = args
		return map[string]any{"temp": 21}, nil
	}))

	p := testutil.NewScriptedProvider().
		CallTools(testutil.Call("weather", `{"city":"Berlin"}`)).
		Reply("It is 21 degrees.")
	o := newOrchestrator(t, p, r, DefaultConfig())

	reply, err := o.Ask(context.Background(), "weather?")
	require.NoError(t, err)
	assert.Equal(t, "It is 21 degrees.", reply)
	assert.Equal(t, map[string]any{"city": "Berlin"}, got)

	second := p.Turns(1)
	require.Len(t, second, 2)
	assert.Equal(t, core.Turn{Role: core.RoleTool, Content: `{"temp":21}`, ToolName: "weather"}, second[1])

	defs := p.Tools(0)
	require.Len(t, defs, 1)
	assert.Equal(t, "weather", defs[0].Function.Name)
}

func TestAsk_StringResultsStoredVerbatim(t *testing.T) {
	r := tool.NewRegistry()
	r.MustRegister(tool.NewSpec("greet", "", constant("hello there")))

	p := testutil.NewScriptedProvider().CallTools(testutil.Call("greet", nil)).Reply("done")
	o := newOrchestrator(t, p, r, DefaultConfig())

	_, err := o.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", toolTurns(o.History())[0].Content)
}

func TestAsk_ToolIsolation(t *testing.T) {
	r := tool.NewRegistry()
	r.MustRegister(
		tool.NewSpec("fails", "", func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("boom")
		}, tool.WithParallelSafe(false)),
		tool.NewSpec("panics", "", func(context.Context, map[string]any) (any, error) {
			panic("kaboom")
		}, tool.WithParallelSafe(false)),
		tool.NewSpec("panics_parallel", "", func(context.Context, map[string]any) (any, error) {
			panic(errors.New("parallel kaboom"))
		}),
		tool.NewSpec("strict", "", constant("never"), tool.WithParameters(map[string]any{
			"type":       "object",
			"properties": map[string]any{"n": map[string]any{"type": "integer"}},
			"required":   []string{"n"},
		}), tool.WithParallelSafe(false)),
	)

	p := testutil.NewScriptedProvider().
		CallTools(
			testutil.Call("fails", nil),
			testutil.Call("panics", nil),
			testutil.Call("strict", nil),
			testutil.Call("panics_parallel", nil),
		).
		Reply("recovered")
	o := newOrchestrator(t, p, r, DefaultConfig())

	reply, err := o.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)

	turns := toolTurns(o.History())
	require.Len(t, turns, 4)
	assert.Equal(t, `{"error":"boom"}`, turns[0].Content)
	assert.Equal(t, `{"error":"kaboom"}`, turns[1].Content)
	assert.Contains(t, turns[2].Content, "parameter validation failed")
	assert.Equal(t, "panics_parallel", turns[3].ToolName)
	assert.Equal(t, `{"error":"parallel kaboom"}`, turns[3].Content)
}

func TestAsk_UnknownTool(t *testing.T) {
	p := testutil.NewScriptedProvider().CallTools(testutil.Call("missing", nil)).Reply("sorry")
	o := newOrchestrator(t, p, nil, DefaultConfig())

	reply, err := o.Ask(context.Background(), "use a tool")
	require.NoError(t, err)
	assert.Equal(t, "sorry", reply)

	turns := toolTurns(o.History())
	require.Len(t, turns, 1)
	assert.Equal(t, "missing", turns[0].ToolName)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(turns[0].Content), &payload))
	assert.Equal(t, "unknown tool: missing", payload["error"])
}

func TestAsk_UnnamedToolCall(t *testing.T) {
	p := testutil.NewScriptedProvider().CallTools(core.ToolCall{ID: "x"}).Reply("ok")
	o := newOrchestrator(t, p, nil, DefaultConfig())

	_, err := o.Ask(context.Background(), "hi")
	require.NoError(t, err)

	turns := toolTurns(o.History())
	require.Len(t, turns, 1)
	assert.Equal(t, memory.UnnamedTool, turns[0].ToolName)
	require.NoError(t, turns[0].Validate())
}

// Ordering: sequential results in request order, then parallel results in
// completion order.
func TestAsk_DispatchOrdering(t *testing.T) {
	fastDone := make(chan struct{})

	r := tool.NewRegistry()
	r.MustRegister(
		tool.NewSpec("slow_parallel", "", func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-fastDone:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			return "slow", nil
		}),
		tool.NewSpec("sequential", "", constant("seq"), tool.WithParallelSafe(false)),
		tool.NewSpec("fast_parallel", "", func(context.Context, map[string]any) (any, error) {
			close(fastDone)
			return "fast", nil
		}),
	)

	p := testutil.NewScriptedProvider().
		CallTools(
			testutil.Call("slow_parallel", nil),
			testutil.Call("sequential", nil),
			testutil.Call("fast_parallel", nil),
		).
		Reply("done")
	o := newOrchestrator(t, p, r, DefaultConfig())

	_, err := o.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"sequential", "fast_parallel", "slow_parallel"}, toolNames(o.History()))
}

func TestAsk_ParallelDisabledKeepsRequestOrder(t *testing.T) {
	r := tool.NewRegistry()
	r.MustRegister(
		tool.NewSpec("a", "", constant("a")),
		tool.NewSpec("b", "", constant("b"), tool.WithParallelSafe(false)),
		tool.NewSpec("c", "", constant("c")),
	)

	p := testutil.NewScriptedProvider().
		CallTools(testutil.Call("a", nil), testutil.Call("b", nil), testutil.Call("c", nil)).
		Reply("done")
	cfg := DefaultConfig()
	cfg.AllowParallelTools = false
	o := newOrchestrator(t, p, r, cfg)

	_, err := o.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, toolNames(o.History()))
}

func TestAsk_ParallelToolsRunConcurrently(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)

	rendezvous := func(context.Context, map[string]any) (any, error) {
		barrier.Done()
		waited := make(chan struct{})
		go func() {
			barrier.Wait()
			close(waited)
		}()
		select {
		case <-waited:
			return "met", nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("peer never arrived")
		}
	}

	r := tool.NewRegistry()
	r.MustRegister(tool.NewSpec("left", "", rendezvous), tool.NewSpec("right", "", rendezvous))

	p := testutil.NewScriptedProvider().
		CallTools(testutil.Call("left", nil), testutil.Call("right", nil)).
		Reply("done")
	o := newOrchestrator(t, p, r, DefaultConfig())

	_, err := o.Ask(context.Background(), "go")
	require.NoError(t, err)

	for _, turn := range toolTurns(o.History()) {
		assert.Equal(t, "met", turn.Content)
	}
}

func TestAsk_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	p := testutil.NewScriptedProvider().Fail(boom)
	o := newOrchestrator(t, p, nil, DefaultConfig())

	_, err := o.Ask(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "model call failed")

	// the user turn stays, no assistant turn is added
	assert.Equal(t, []core.Role{core.RoleUser}, testutil.Roles(o.History()))
}

func TestAsk_ModelErrorAfterTools(t *testing.T) {
	boom := errors.New("second call fails")
	r := tool.NewRegistry()
	r.MustRegister(tool.NewSpec("t", "", constant(1)))

	p := testutil.NewScriptedProvider().CallTools(testutil.Call("t", nil)).Fail(boom)
	o := newOrchestrator(t, p, r, DefaultConfig())

	_, err := o.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []core.Role{core.RoleUser, core.RoleTool}, testutil.Roles(o.History()))
}

func TestAsk_CancelledContext(t *testing.T) {
	p := testutil.NewScriptedProvider().Reply("never")
	o := newOrchestrator(t, p, nil, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Ask(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsk_MessageLogIsBounded(t *testing.T) {
	p := testutil.NewScriptedProvider().Reply("ok").Repeat()
	cfg := DefaultConfig()
	cfg.MaxMessages = 3
	o := newOrchestrator(t, p, nil, cfg)

	for _, q := range []string{"one", "two", "three"} {
		_, err := o.Ask(context.Background(), q)
		require.NoError(t, err)
	}

	history := o.History()
	require.Len(t, history, 3)
	assert.Equal(t, "ok", history[0].Content)
	assert.Equal(t, "three", history[1].Content)
}

func TestAsk_SeededLog(t *testing.T) {
	seed := memory.NewMessageLog(10)
	seed.Append(core.RoleUser, "earlier", "")
	seed.Append(core.RoleAssistant, "earlier reply", "")

	p := testutil.NewScriptedProvider().Reply("now")
	o := newOrchestrator(t, p, nil, DefaultConfig(), func(o *Options) { o.Log = seed })

	_, err := o.Ask(context.Background(), "again")
	require.NoError(t, err)
	assert.Len(t, p.Turns(0), 3)
	assert.Same(t, seed, o.Log())
}

func TestAsk_MetricsAndLogging(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})

	r := tool.NewRegistry()
	r.MustRegister(tool.NewSpec("t", "", constant("ok")))

	p := testutil.NewScriptedProvider().CallTools(testutil.Call("t", nil)).Reply("done")
	o := newOrchestrator(t, p, r, DefaultConfig(), func(o *Options) {
		o.Logger = logger
		o.Metrics = collector
	})

	_, err = o.Ask(context.Background(), "hi")
	require.NoError(t, err)

	n, err := promtest.GatherAndCount(reg, "agentloop_model_calls_total", "agentloop_tool_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var runID string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		id, ok := entry["run_id"].(string)
		require.True(t, ok, "log line without run id: %s", line)
		if runID == "" {
			runID = id
		}
		assert.Equal(t, runID, id)
	}
	assert.Contains(t, buf.String(), "Tool execution completed")
	assert.Contains(t, buf.String(), "agent.ask.completed")
}
