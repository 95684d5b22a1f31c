// Package agent provides the units the engine dispatches flow steps to: the
// Agent interface, a function-backed agent for deterministic processing and
// an LLM-backed agent keeping a per-run conversation transcript.
package agent
