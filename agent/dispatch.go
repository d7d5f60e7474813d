package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/tool"
)

type toolOutcome struct {
	name   string
	result any
}

// dispatch executes one step's tool calls and appends a tool turn per call.
//
// Sequential calls run on this goroutine and are appended as they finish.
// Parallel-safe calls start as soon as they are seen and are appended after
// every sequential call, in completion order. It returns the number of
// calls that ran in parallel.
func (r *run) dispatch(ctx context.Context, calls []core.ToolCall) (int, error) {
	results := make(chan toolOutcome, len(calls))

	var wg sync.WaitGroup
	defer wg.Wait()

	parallel := 0
	for _, call := range calls {
		name := call.Name
		args := NormalizeArguments(call.Arguments)

		if r.parallelSafe(name) {
			parallel++
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- toolOutcome{name: name, result: r.invoke(ctx, name, args)}
			}()
			continue
		}

		if err := r.record(name, r.invoke(ctx, name, args)); err != nil {
			return parallel, err
		}
	}

	for range parallel {
		out := <-results
		if err := r.record(out.name, out.result); err != nil {
			return parallel, err
		}
	}
	return parallel, nil
}

func (r *run) parallelSafe(name string) bool {
	if !r.o.cfg.AllowParallelTools {
		return false
	}
	spec, err := r.o.registry.GetSpec(name)
	if err != nil {
		return false
	}
	return spec.IsParallelSafe()
}

// invoke calls a tool and always produces a result. Unknown tools, handler
// errors and handler panics become {"error": "..."}.
func (r *run) invoke(ctx context.Context, name string, args map[string]any) (result any) {
	start := time.Now()
	outcome := metrics.OutcomeOK
	var callErr error

	defer func() {
		if p := recover(); p != nil {
			panicErr := &tool.ToolError{Tool: name, Message: fmt.Sprint(p), Code: tool.CodePanic}
			callErr = panicErr
			outcome = metrics.OutcomePanic
			result = tool.ErrorResult(panicErr.Message)
		}

		dur := time.Since(start)
		r.o.metrics.ObserveToolCall(name, outcome, dur)
		r.logToolCall(name, dur, callErr)
	}()

	res, err := r.o.registry.Call(ctx, name, args)
	if err != nil {
		callErr = err
		outcome = metrics.OutcomeError
		return tool.ErrorResult(errorMessage(err))
	}
	if isErrorResult(res) {
		outcome = metrics.OutcomeError
	}
	return res
}

// record appends a tool turn and, when streaming, emits the matching chunk.
func (r *run) record(name string, result any) error {
	if name == "" {
		name = memory.UnnamedTool
	}
	r.o.log.Append(core.RoleTool, renderResult(result), name)

	if r.emit == nil {
		return nil
	}
	return r.emit(core.NewToolResultChunk(name, result))
}

func (r *run) logToolCall(name string, dur time.Duration, err error) {
	if al, ok := r.logger.(*logging.AgentLogger); ok {
		al.LogToolCall(name, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Warn("agent.tool.executed", "tool", name, "duration", dur, "error", err.Error())
		return
	}
	r.logger.Debug("agent.tool.executed", "tool", name, "duration", dur)
}

// renderResult is the tool turn content: strings verbatim, everything else JSON.
func renderResult(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}

func errorMessage(err error) string {
	var toolErr *tool.ToolError
	if errors.As(err, &toolErr) && toolErr.Message != "" {
		return toolErr.Message
	}
	return err.Error()
}

func isErrorResult(res any) bool {
	m, ok := res.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	_, ok = m["error"]
	return ok
}
