// Package memory provides the conversation log used by the orchestrator.
//
// MessageLog is an ordered, capacity-bounded sequence of core.Turn values.
// When an append pushes it past capacity the oldest turns are evicted first.
// The log serializes to a JSON array or to line-delimited JSON of
// {role, content, tool_name} records and restores losslessly from either.
//
// A MessageLog has a single writer (the orchestrator that owns it) and is not
// safe for concurrent mutation.
package memory
