package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// Orchestrator runs the ask loop for one conversation.
type Orchestrator struct {
	provider  model.Provider
	registry  *tool.Registry
	cfg       Config
	modelName string
	log       *memory.MessageLog
	logger    logging.Logger
	metrics   *metrics.Collector
}

// New creates an Orchestrator. A nil registry is replaced by an empty one.
func New(provider model.Provider, registry *tool.Registry, cfg Config, optFns ...func(o *Options)) (*Orchestrator, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if cfg.MaxSteps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeMaxSteps, cfg.MaxSteps)
	}

	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if registry == nil {
		registry = tool.NewRegistry()
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = memory.DefaultMaxMessages
	}

	log := opts.Log
	if log == nil {
		log = memory.NewMessageLog(cfg.MaxMessages)
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = provider.Info().Name
	}

	return &Orchestrator{
		provider:  provider,
		registry:  registry,
		cfg:       cfg,
		modelName: modelName,
		log:       log,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// Config returns a copy of the configuration the Orchestrator was built with.
func (o *Orchestrator) Config() Config { return o.cfg }

// Registry returns the tool registry.
func (o *Orchestrator) Registry() *tool.Registry { return o.registry }

// History returns a copy of the conversation so far.
func (o *Orchestrator) History() []core.Turn { return o.log.Snapshot() }

// Log exposes the underlying message log, e.g. for serialization.
func (o *Orchestrator) Log() *memory.MessageLog { return o.log }

// Reset clears the conversation. The system prompt is inserted again on the next turn.
func (o *Orchestrator) Reset() { o.log.Reset() }

// Ask sends text as a user turn and returns the model's final reply.
//
// Model failures abort the turn and are returned wrapped; tool failures never
// are: they are recorded as {"error": "..."} results for the model to see.
func (o *Orchestrator) Ask(ctx context.Context, text string) (string, error) {
	r := o.newRun(nil)
	r.logger.Info("agent.ask.start", "model", o.modelName, "streaming", false)

	content, err := r.execute(ctx, text, r.complete)
	if err != nil {
		r.logger.Error("agent.ask.failed", "error", err.Error())
		return "", err
	}
	r.logger.Info("agent.ask.completed", "steps", r.steps)
	return content, nil
}

// prepare inserts the system prompt when the log holds none yet and appends
// the user turn. Once FIFO eviction has dropped the system turn, the prompt
// is appended again right before the new user turn rather than moved to the
// head: prepending into a full log would evict the newest turns.
func (o *Orchestrator) prepare(text string) {
	if o.cfg.SystemPrompt != "" && !o.log.HasRole(core.RoleSystem) {
		o.log.Append(core.RoleSystem, o.cfg.SystemPrompt, "")
	}
	o.log.Append(core.RoleUser, text, "")
}

// run carries per-turn state: the run id, its logger, the tool schema sent
// to the model and, in streaming mode, the chunk sink.
type run struct {
	o      *Orchestrator
	id     string
	logger logging.Logger
	tools  []model.ToolDefinition
	emit   func(core.StreamChunk) error
	steps  int
}

func (o *Orchestrator) newRun(emit func(core.StreamChunk) error) *run {
	id := core.NewID()
	return &run{
		o:      o,
		id:     id,
		logger: withRun(o.logger, id),
		emit:   emit,
	}
}

// execute is the state machine shared by Ask and AskStream; next produces
// one model turn from the current log.
func (r *run) execute(ctx context.Context, text string, next func(context.Context) (*model.Response, error)) (string, error) {
	r.o.prepare(text)
	r.tools = r.o.registry.Definitions()

	resp, err := next(ctx)
	if err != nil {
		return "", err
	}

	for resp.HasToolCalls() && r.steps < r.o.cfg.MaxSteps {
		start := time.Now()
		parallel, err := r.dispatch(ctx, resp.ToolCalls)
		if err != nil {
			return "", err
		}
		r.steps++
		r.logStep(len(resp.ToolCalls), parallel, time.Since(start))

		resp, err = next(ctx)
		if err != nil {
			return "", err
		}
	}

	if resp.HasToolCalls() {
		r.logger.Warn("agent.max_steps_reached", "max_steps", r.o.cfg.MaxSteps, "pending_tool_calls", len(resp.ToolCalls))
	}
	r.o.metrics.ObserveSteps(r.steps)

	r.o.log.Append(core.RoleAssistant, resp.Content, "")
	return resp.Content, nil
}

func (r *run) complete(ctx context.Context) (*model.Response, error) {
	start := time.Now()
	resp, err := r.o.provider.Complete(ctx, r.o.log.Snapshot(), r.tools)
	r.observeModel(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("agent: model call failed: %w", err)
	}
	if resp == nil {
		resp = &model.Response{}
	}
	return resp, nil
}

func (r *run) observeModel(dur time.Duration, err error) {
	r.o.metrics.ObserveModelCall(r.o.modelName, dur, err)
	if al, ok := r.logger.(*logging.AgentLogger); ok {
		al.LogModelCall(r.o.modelName, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Error("agent.model.call", "model", r.o.modelName, "duration", dur, "error", err.Error())
		return
	}
	r.logger.Debug("agent.model.call", "model", r.o.modelName, "duration", dur)
}

func (r *run) logStep(calls, parallel int, dur time.Duration) {
	if al, ok := r.logger.(*logging.AgentLogger); ok {
		al.LogStep(r.steps, calls, parallel, dur)
		return
	}
	r.logger.Debug("agent.step", "step", r.steps, "tool_calls", calls, "parallel", parallel, "duration", dur)
}

func withRun(l logging.Logger, runID string) logging.Logger {
	if al, ok := l.(*logging.AgentLogger); ok {
		return al.WithRun(runID)
	}
	return l
}
