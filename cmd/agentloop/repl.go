package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/agentloop"
	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
)

// repl reads one user message per line and prints the model's replies.
type repl struct {
	orch   *agent.Orchestrator
	in     io.Reader
	out    io.Writer
	stream bool
}

func (r *repl) run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		r.prompt()

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.ask(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) prompt() { fmt.Fprint(r.out, "> ") }

// command handles a slash command and reports whether the loop should end.
func (r *repl) command(line string) (bool, error) {
	switch line {
	case "/exit", "/quit":
		return true, nil
	case "/reset":
		r.orch.Reset()
		fmt.Fprintln(r.out, "conversation cleared")
		return false, nil
	case "/history":
		data, err := r.orch.Log().SerializeLines()
		if err != nil {
			return false, err
		}
		_, err = r.out.Write(data)
		return false, err
	default:
		return false, fmt.Errorf("unknown command %s", line)
	}
}

func (r *repl) ask(ctx context.Context, text string) error {
	if !r.stream {
		reply, err := r.orch.Ask(ctx, text)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, reply)
		return nil
	}

	chunks, errs := r.orch.AskStream(ctx, text)
	err := agentloop.Consume(chunks, errs, func(c core.StreamChunk) {
		switch c.Kind {
		case core.ChunkDelta:
			fmt.Fprint(r.out, c.Delta)
		case core.ChunkToolResult:
			fmt.Fprintf(r.out, "\n[%s] %v\n", c.ToolResult.Name, c.ToolResult.Result)
		}
	})
	fmt.Fprintln(r.out)
	return err
}
