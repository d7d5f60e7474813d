// Package core provides the foundational data model shared by every other
// package of agentloop:
//
//   - Turn and Role, the entries of a conversation log
//   - ToolCall, a model-issued request to run a named tool
//   - StreamChunk, the tagged union streamed while a conversation advances
//
// The package has no behavior beyond small constructors and validation so
// that providers, tools and the orchestrator can depend on it without
// depending on each other.
package core
