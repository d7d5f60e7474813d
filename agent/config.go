package agent

import (
	"errors"

	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/metrics"
)

// DefaultMaxSteps bounds tool round trips when a Config is built with DefaultConfig.
const DefaultMaxSteps = 5

// ErrNilProvider is returned by New when no model provider is given.
var ErrNilProvider = errors.New("agent: provider is required")

// ErrNegativeMaxSteps is returned by New when Config.MaxSteps < 0.
var ErrNegativeMaxSteps = errors.New("agent: max steps must not be negative")

// Config is copied at construction and never changes afterwards.
type Config struct {
	// ModelName labels logs and metrics. Defaults to the provider's Info().Name.
	ModelName string

	// MaxSteps is the number of tool round trips allowed per turn. Zero means
	// tool calls requested by the model are never executed.
	MaxSteps int

	AllowParallelTools bool

	// SystemPrompt is inserted once, ahead of the first user turn.
	SystemPrompt string

	// MaxMessages sizes the message log. Non-positive values use memory.DefaultMaxMessages.
	MaxMessages int
}

// DefaultConfig returns a Config with DefaultMaxSteps and parallel tools enabled.
func DefaultConfig() Config {
	return Config{
		MaxSteps:           DefaultMaxSteps,
		AllowParallelTools: true,
		MaxMessages:        memory.DefaultMaxMessages,
	}
}

// Options configure the collaborators of an Orchestrator.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Collector

	// Log seeds the conversation, e.g. with a deserialized history. When nil a
	// fresh log sized by Config.MaxMessages is created.
	Log *memory.MessageLog
}
