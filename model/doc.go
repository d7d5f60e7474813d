// Package model defines the provider-agnostic contract between the
// orchestrator and language model backends.
//
// Core goals:
//   - One synchronous Complete call per model turn
//   - Optional true streaming via StreamProvider, with a synthesized fallback
//     (Stream) so every provider is usable by streaming callers
//   - Normalized tool call representation (core.ToolCall) and tool schema
//     (ToolDefinition)
//
// Backends live in sub-packages (echo, openai, anthropic, ollama) so the
// orchestrator never depends on vendor SDKs.
package model
