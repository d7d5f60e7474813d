package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// AskStream is Ask with incremental output. Every chunk the provider produces
// is forwarded, including the done chunk that closes each intermediate model
// turn, and a tool_result chunk is sent whenever a tool turn is appended.
//
// The chunk channel is unbuffered, so the consumer's pace throttles the
// conversation. At most one error is sent on the error channel, which is
// closed before the chunk channel. Cancelling ctx stops the producer.
func (o *Orchestrator) AskStream(ctx context.Context, text string) (<-chan core.StreamChunk, <-chan error) {
	out := make(chan core.StreamChunk)
	errCh := make(chan error, 1)

	emit := func(c core.StreamChunk) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- c:
			return nil
		}
	}

	go func() {
		defer close(out)
		defer close(errCh)

		r := o.newRun(emit)
		r.logger.Info("agent.ask.start", "model", o.modelName, "streaming", true)

		if _, err := r.execute(ctx, text, r.streamTurn); err != nil {
			r.logger.Error("agent.ask.failed", "error", err.Error())
			errCh <- err
			return
		}
		r.logger.Info("agent.ask.completed", "steps", r.steps)
	}()

	return out, errCh
}

// streamTurn forwards one model turn and returns it as a Response. A stream
// that ends without a done chunk is treated as a text-only turn built from
// its deltas.
func (r *run) streamTurn(ctx context.Context) (*model.Response, error) {
	start := time.Now()
	chunks, errs := model.Stream(ctx, r.o.provider, r.o.log.Snapshot(), r.tools)

	var (
		done    *core.StreamChunk
		content strings.Builder
	)
	for c := range chunks {
		switch c.Kind {
		case core.ChunkDelta:
			content.WriteString(c.Delta)
		case core.ChunkDone:
			d := c
			done = &d
		}

		if err := r.emit(c); err != nil {
			go discard(chunks)
			return nil, err
		}
	}

	if err, ok := <-errs; ok && err != nil {
		r.observeModel(time.Since(start), err)
		return nil, fmt.Errorf("agent: model call failed: %w", err)
	}
	r.observeModel(time.Since(start), nil)

	if done == nil {
		return &model.Response{Content: content.String()}, nil
	}
	return &model.Response{Content: done.Content, ToolCalls: done.ToolCalls}, nil
}

// discard drains an abandoned provider stream so its producer can exit.
func discard(chunks <-chan core.StreamChunk) {
	for range chunks {
	}
}
