// Package openai provides an implementation of model.Provider using the OpenAI
// Chat Completions API (including streaming + function/tool calling). It
// adapts agentloop's turns and tool definitions into the SDK's message format
// and back. Any OpenAI-compatible endpoint can be targeted via BaseURL.
package openai

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete tool calls when the finish reason is
// emitted.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string
	// BaseURL targets an OpenAI-compatible endpoint.
	BaseURL string
	// ProviderName is reported by Info; defaults to "openai".
	ProviderName string
	// ClientOptions are appended to the SDK client options.
	ClientOptions []option.RequestOption
}

// Model wraps the OpenAI Chat Completions API behind the model.Provider interface.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		ProviderName:        "openai",
	}
}

// NewModel creates a new OpenAI model using the official client.
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

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Provider with a single non-streaming request.
func (m *Model) Complete(ctx context.Context, turns []core.Turn, tools []model.ToolDefinition) (*model.Response, error) {
	params := m.buildParams(buildMessages(turns), tools)

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s api error: %w", m.opts.ProviderName, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", m.opts.ProviderName, model.ErrNoChoices)
	}

	msg := resp.Choices[0].Message
	out := &model.Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			ID:        callID(tc.ID),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// StreamComplete implements model.StreamProvider. Text deltas are forwarded as
// they arrive; tool call fragments are aggregated and surface in the done chunk.
func (m *Model) StreamComplete(ctx context.Context, turns []core.Turn, tools []model.ToolDefinition) (<-chan core.StreamChunk, <-chan error) {
	out := make(chan core.StreamChunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(buildMessages(turns), tools)
		stream := m.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var text strings.Builder
		toolAgg := map[int64]*aggCall{}
		finished := false

		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content != "" {
					text.WriteString(ch.Delta.Content)
					if !send(ctx, out, core.NewDeltaChunk(ch.Delta.Content)) {
						errCh <- ctx.Err()
						return
					}
				}
				aggregateToolCalls(ch.Delta.ToolCalls, toolAgg)
				if ch.FinishReason != "" && !finished {
					finished = true
					if !send(ctx, out, core.NewDoneChunk(text.String(), flushToolCalls(toolAgg))) {
						errCh <- ctx.Err()
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("%s streaming error: %w", m.opts.ProviderName, err)
			return
		}
		if !finished {
			send(ctx, out, core.NewDoneChunk(text.String(), flushToolCalls(toolAgg)))
		}
	}()

	return out, errCh
}

func send(ctx context.Context, out chan<- core.StreamChunk, c core.StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- c:
		return true
	}
}

func aggregateToolCalls(deltas []openai.ChatCompletionChunkChoiceDeltaToolCall, agg map[int64]*aggCall) {
	for _, tc := range deltas {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{}
			agg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			ac.args += tc.Function.Arguments
		}
	}
}

// flushToolCalls returns aggregated calls ordered by stream index.
func flushToolCalls(agg map[int64]*aggCall) []core.ToolCall {
	if len(agg) == 0 {
		return nil
	}
	idx := make([]int64, 0, len(agg))
	for i := range agg {
		idx = append(idx, i)
	}
	slices.Sort(idx)

	calls := make([]core.ToolCall, 0, len(idx))
	for _, i := range idx {
		ac := agg[i]
		calls = append(calls, core.ToolCall{ID: callID(ac.id), Name: ac.name, Arguments: ac.args})
	}
	return calls
}

func callID(id string) string {
	if id == "" {
		return core.NewID()
	}
	return id
}

// buildMessages converts turns into OpenAI chat messages. Tool turns are
// forwarded as user messages because the log keeps no assistant tool-call
// message to attach a tool_call_id to.
func buildMessages(turns []core.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(t.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		case core.RoleTool:
			messages = append(messages, openai.UserMessage(model.RenderToolTurn(t)))
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(
	messages []openai.ChatCompletionMessageParamUnion,
	tools []model.ToolDefinition,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(tools) == 0 {
		return params
	}
	defs := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tdef := range tools {
		parameters := tdef.Function.Parameters
		if parameters == nil {
			parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  parameters,
			},
		}
	}
	params.Tools = defs
	return params
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              m.opts.Model,
		Provider:          m.opts.ProviderName,
		SupportsTools:     true,
		SupportsStreaming: true,
	}
}
