package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
)

// Flow is the top-level entry point: a named, ordered list of steps, each an
// agent reference or a nested pattern. Like all patterns it is immutable and
// stateless; every Execute call creates a fresh FlowContext that is discarded
// when the call returns.
//
// Flow sequencing is fail-fast and additionally observes the reserved
// early-termination key between steps, so a step that emitted a terminal
// failure stops the run without the remaining steps being dispatched.
type Flow struct {
	name  string
	steps []Step
}

// New creates a flow over the given steps. Steps are executed in the order
// provided.
func New(name string, steps ...Step) *Flow {
	return &Flow{name: name, steps: steps}
}

// Name returns the flow's name.
func (f *Flow) Name() string { return f.name }

// Steps returns a copy of the flow's step list for safe inspection.
func (f *Flow) Steps() []Step {
	out := make([]Step, len(f.steps))
	copy(out, f.steps)
	return out
}

// Execute runs the flow against input, dispatching agent calls through eng.
// The returned FlowContext carries the final current message, the full
// history and the shared data of the run. Described domain failures surface
// as a terminal message in the context; the returned error is reserved for
// genuine internal defects, with the context reflecting progress up to the
// defect.
func (f *Flow) Execute(ctx context.Context, eng core.Engine, input core.Message, opts ...ContextOption) (*FlowContext, error) {
	fc := NewContext(input, opts...)
	logger := fc.Logger()
	start := time.Now()

	logger.Info("Flow execution started", "flow", f.name, "run_id", fc.ID(), "steps", len(f.steps))

	var execErr error
	for i, step := range f.steps {
		if fc.Terminated() {
			break
		}
		if err := runStep(ctx, eng, fc, step); err != nil {
			if recoverable(err) {
				haltWithFailure(fc, f.name, fmt.Sprintf("Flow %q halted: step %d (%s) failed: %v", f.name, i+1, stepLabel(step), err))
				break
			}
			execErr = fmt.Errorf("flow %s: step %d (%s): %w", f.name, i+1, stepLabel(step), err)
			break
		}
	}

	if fl, ok := logger.(logging.FlowExecutionLogger); ok {
		fl.LogFlowExecution(f.name, len(f.steps), time.Since(start), execErr == nil, execErr)
	} else {
		logger.Info("Flow execution completed", "flow", f.name, "run_id", fc.ID(), "duration", time.Since(start), "terminated", fc.Terminated())
	}
	return fc, execErr
}

// ResetAgents transitively clears session state for every agent name and
// nested pattern the flow references, so independent runs start clean.
func (f *Flow) ResetAgents(eng core.Engine) error {
	return resetSteps(eng, f.steps...)
}
