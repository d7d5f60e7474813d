// Package agentloop is a small façade over the agent, tool and model
// packages. Most applications:
//  1. pick a model.Provider (openai, anthropic, ollama or echo)
//  2. call New with the tools the model may use
//  3. talk to the returned Orchestrator with Ask or AskStream
//
// All defaults are safe for local development: no logging, no metrics, a
// bounded in-process message log.
package agentloop

import (
	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// Options configures the Orchestrator built by New.
type Options struct {
	Config agent.Config

	// Tools are registered in order; a duplicate name fails New.
	Tools []tool.Spec

	// Logger defaults to a NoOp logger.
	Logger logging.Logger

	// Metrics is optional.
	Metrics *metrics.Collector

	// History seeds the conversation, e.g. from memory.Deserialize.
	History *memory.MessageLog
}

// New wires a registry and an Orchestrator around provider.
func New(provider model.Provider, optFns ...func(o *Options)) (*agent.Orchestrator, error) {
	opts := Options{
		Config: agent.DefaultConfig(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = opts.Logger
	})
	for _, spec := range opts.Tools {
		if err := registry.Register(spec); err != nil {
			return nil, err
		}
	}

	return agent.New(provider, registry, opts.Config, func(o *agent.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.Log = opts.History
	})
}

// Consume drains a stream returned by AskStream, calling fn for every chunk,
// and returns the stream's terminal error.
func Consume(chunks <-chan core.StreamChunk, errs <-chan error, fn func(core.StreamChunk)) error {
	for c := range chunks {
		if fn != nil {
			fn(c)
		}
	}
	return <-errs
}
