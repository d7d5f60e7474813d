// Package anthropic provides a model.Provider for the Anthropic Messages API,
// including streaming and tool use.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
	// ClientOptions are appended to the SDK client options.
	ClientOptions []option.RequestOption
}

// Model wraps the Anthropic Messages API behind the model.Provider interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Complete implements model.Provider.
func (m *Model) Complete(ctx context.Context, turns []core.Turn, tools []model.ToolDefinition) (*model.Response, error) {
	resp, err := m.client.Messages.New(ctx, m.buildParams(turns, tools))
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}
	return responseFromContent(resp.Content), nil
}

// StreamComplete implements model.StreamProvider. Text deltas are forwarded as
// they arrive; the accumulated message (text and tool use blocks) becomes the
// done chunk.
func (m *Model) StreamComplete(ctx context.Context, turns []core.Turn, tools []model.ToolDefinition) (<-chan core.StreamChunk, <-chan error) {
	out := make(chan core.StreamChunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := m.client.Messages.NewStreaming(ctx, m.buildParams(turns, tools))
		defer stream.Close()

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				errCh <- fmt.Errorf("anthropic stream accumulate: %w", err)
				return
			}

			ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- core.NewDeltaChunk(delta.Text):
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic streaming error: %w", err)
			return
		}

		final := responseFromContent(message.Content)
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- core.NewDoneChunk(final.Content, final.ToolCalls):
		}
	}()

	return out, errCh
}

func (m *Model) buildParams(turns []core.Turn, tools []model.ToolDefinition) anthropic.MessageNewParams {
	system, rest := model.SplitSystem(turns)

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(rest),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}
	return params
}

// responseFromContent converts content blocks (text + tool use) into a Response.
func responseFromContent(blocks []anthropic.ContentBlockUnion) *model.Response {
	resp := &model.Response{}
	for _, block := range blocks {
		switch block.Type {
		case "text":
			resp.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			var args any
			if len(toolBlock.Input) > 0 {
				args = string(toolBlock.Input)
			}
			id := toolBlock.ID
			if id == "" {
				id = core.NewID()
			}
			resp.ToolCalls = append(resp.ToolCalls, core.ToolCall{
				ID:        id,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	return resp
}

// buildMessages converts non-system turns to Anthropic messages. Consecutive
// turns mapping to the same role are merged so roles alternate.
func buildMessages(turns []core.Turn) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		blocks   []anthropic.ContentBlockParamUnion
		lastRole anthropic.MessageParamRole
	)

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if lastRole == anthropic.MessageParamRoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}

	for _, t := range turns {
		role := anthropic.MessageParamRoleUser
		text := t.Content
		switch t.Role {
		case core.RoleAssistant:
			role = anthropic.MessageParamRoleAssistant
		case core.RoleTool:
			text = model.RenderToolTurn(t)
		}
		if text == "" {
			continue
		}
		if role != lastRole {
			flush()
			lastRole = role
		}
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	flush()

	return messages
}

// buildTools converts tool definitions to Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch req := params["required"].(type) {
			case []string:
				inputSchema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if tool.Function.Description != "" && anthropicTools[i].OfTool != nil {
			anthropicTools[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              string(m.opts.Model),
		Provider:          "anthropic",
		SupportsTools:     true,
		SupportsStreaming: true,
	}
}
