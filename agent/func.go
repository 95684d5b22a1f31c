package agent

import (
	"context"

	"github.com/hupe1980/flowmesh/core"
)

// HandlerFunc is the signature of a function agent's processing logic.
type HandlerFunc func(ctx context.Context, msg core.Message) (core.Message, error)

// FuncAgent adapts a plain function into an Agent. It holds no session state,
// so Reset is a no-op. Useful for deterministic processing steps, glue logic
// and tests.
type FuncAgent struct {
	name string
	fn   HandlerFunc
}

// NewFuncAgent creates a function agent with the given name.
func NewFuncAgent(name string, fn HandlerFunc) *FuncAgent {
	return &FuncAgent{name: name, fn: fn}
}

// Name implements Agent.
func (a *FuncAgent) Name() string { return a.name }

// Call implements Agent.
func (a *FuncAgent) Call(ctx context.Context, msg core.Message) (core.Message, error) {
	return a.fn(ctx, msg)
}

// Reset implements Agent. FuncAgent carries no session state.
func (a *FuncAgent) Reset() {}
