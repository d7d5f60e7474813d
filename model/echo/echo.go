// Package echo provides an offline model.Provider that answers with the most
// recent user message. It never requests tools and relies on the default
// stream adapter, which makes it useful for wiring checks and demos.
package echo

import (
	"context"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// Options configure the echo provider.
type Options struct {
	// Prefix is prepended to the echoed text.
	Prefix string
}

// Model echoes the last user turn.
type Model struct {
	opts Options
}

// NewModel creates an echo provider.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{opts: opts}
}

// Complete implements model.Provider.
func (m *Model) Complete(ctx context.Context, turns []core.Turn, _ []model.ToolDefinition) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var text string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == core.RoleUser {
			text = turns[i].Content
			break
		}
	}
	return &model.Response{Content: m.opts.Prefix + text}, nil
}

// Info implements model.Provider.
func (m *Model) Info() model.Info {
	return model.Info{Name: "echo", Provider: "echo"}
}
