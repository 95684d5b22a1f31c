// Package flowmesh provides a high-level façade over the engine and the flow
// execution core, enabling rapid construction of composable multi-agent
// workflows. Most applications interact with this package by:
//  1. Creating a FlowMesh via New() (optionally overriding the logger and
//     engine configuration)
//  2. Registering one or more agents (model, function, custom)
//  3. Composing a flow out of patterns and running it (Run)
//
// The façade delegates dispatch to engine.Engine and sequencing to flow.Flow
// while keeping setup ergonomics concise. All defaults are safe for local
// development and testing.
package flowmesh

import (
	"context"

	"github.com/hupe1980/flowmesh/agent"
	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/engine"
	"github.com/hupe1980/flowmesh/flow"
	"github.com/hupe1980/flowmesh/logging"
)

// Options configures the FlowMesh instance.
type Options struct {
	// EngineConfig tunes the dispatch engine (call limits).
	EngineConfig engine.Config

	// Callbacks hooks into the engine's dispatch lifecycle. Optional.
	Callbacks *engine.CallbackRegistry

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// FlowMesh is the high-level façade aggregating the dispatch engine and the
// flow execution core.
type FlowMesh struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new FlowMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *FlowMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(
		engine.WithConfig(opts.EngineConfig),
		engine.WithLogger(opts.Logger),
		engine.WithCallbacks(opts.Callbacks),
	)

	return &FlowMesh{opts: opts, engine: eng}
}

// Engine exposes the underlying dispatch engine.
func (fm *FlowMesh) Engine() *engine.Engine { return fm.engine }

// Register makes the given agents available for dispatch by name.
func (fm *FlowMesh) Register(agents ...agent.Agent) error {
	for _, a := range agents {
		if err := fm.engine.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// Run executes a flow against a plain text user input and returns the
// finished execution context.
func (fm *FlowMesh) Run(ctx context.Context, f *flow.Flow, input string) (*flow.FlowContext, error) {
	return fm.RunMessage(ctx, f, core.NewUserMessage(input))
}

// RunMessage executes a flow against an arbitrary input message.
func (fm *FlowMesh) RunMessage(ctx context.Context, f *flow.Flow, input core.Message) (*flow.FlowContext, error) {
	return f.Execute(ctx, fm.engine, input, flow.WithLogger(fm.opts.Logger))
}

// Reset transitively clears session state for every agent the flow
// references, so independent runs start from a clean slate.
func (fm *FlowMesh) Reset(f *flow.Flow) error {
	return f.ResetAgents(fm.engine)
}
