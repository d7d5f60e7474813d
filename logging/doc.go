// Package logging provides structured logging for agentloop.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the orchestrator, registry and providers use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - AgentLogger with component/run context and tool/model/step helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch, err := agent.New(provider, registry, cfg, func(o *agent.Options) { o.Logger = logger })
package logging
