package flow

import (
	"context"

	"github.com/hupe1980/flowmesh/core"
)

// Pattern is a composable control-flow unit. Implementations are immutable
// configuration objects: constructed once, executed arbitrarily many times,
// carrying no state between executions. Re-running a pattern with identical
// inputs against a deterministic Engine is idempotent.
//
// Execute threads the supplied FlowContext through the pattern's control
// flow. Expected domain failures (agent invocation errors, unmatched route
// keys, empty task extractions, malformed steps) are recovered inside Execute
// and surface as a terminal message in the context; the returned error is
// reserved for genuine internal defects.
type Pattern interface {
	// Name identifies the pattern in summaries, shared-data keys and logs.
	Name() string

	// Execute runs the pattern's control flow against fc, dispatching agent
	// calls through eng.
	Execute(ctx context.Context, eng core.Engine, fc *FlowContext) error

	// ResetAgents transitively clears session state for every agent name
	// and nested pattern this pattern references.
	ResetAgents(eng core.Engine) error
}

// haltWithFailure records a terminal failure message as the current message
// and sets the early-termination key so enclosing sequencers stop. All
// described domain failures end up here; the run stays observable as a
// normal textual result rather than an opaque crash.
func haltWithFailure(fc *FlowContext, pattern, text string) {
	fc.Logger().Warn("Pattern halted with terminal failure", "pattern", pattern, "reason", text)
	fc.SetCurrent(core.NewAssistantMessage(pattern, text))
	fc.Terminate()
}
