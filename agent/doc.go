// Package agent drives a conversation between a model provider and a tool
// registry.
//
// An Orchestrator owns a bounded message log. Each call to Ask or AskStream
// appends the user's text, asks the model for a reply and, while the model
// keeps requesting tools (up to Config.MaxSteps round trips), dispatches
// those calls and feeds their results back. Tools marked parallel safe run
// concurrently when Config.AllowParallelTools is set; the rest run one by one
// on the orchestrating goroutine.
//
// Execution order within one step:
//   - sequential calls are appended to the log in the order the model listed them
//   - parallel results follow, in the order they complete
//
// An Orchestrator is not safe for concurrent use. Run one conversation per
// instance, or serialize calls externally.
package agent
