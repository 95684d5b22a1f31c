package flow

import (
	"context"
	"fmt"

	"github.com/hupe1980/flowmesh/core"
)

// Sequential executes its steps in order, feeding each step's output message
// to the next step as input. The final step's output becomes the pattern's
// result.
//
// Sequential is fail-fast: on the first step failure the remaining steps are
// skipped and the current message is replaced with a terminal message naming
// the failed step.
//
// Sequential is ideal for:
//   - Multi-stage processing pipelines (extract, transform, summarize)
//   - Workflows requiring a specific execution order
//   - Complex tasks broken into specialized subtasks
type Sequential struct {
	name  string
	steps []Step
}

// NewSequential creates a sequential pipeline over the given steps. Steps are
// executed in the order provided.
func NewSequential(name string, steps ...Step) *Sequential {
	return &Sequential{name: name, steps: steps}
}

// Name implements Pattern.
func (s *Sequential) Name() string { return s.name }

// Execute implements Pattern. Each step consumes the previous step's output;
// the first domain-level failure halts the chain with a terminal message.
func (s *Sequential) Execute(ctx context.Context, eng core.Engine, fc *FlowContext) error {
	for i, step := range s.steps {
		if err := runStep(ctx, eng, fc, step); err != nil {
			if recoverable(err) {
				haltWithFailure(fc, s.name, fmt.Sprintf("Sequential %q halted: step %d (%s) failed: %v", s.name, i+1, stepLabel(step), err))
				return nil
			}
			return fmt.Errorf("sequential %s: step %d (%s): %w", s.name, i+1, stepLabel(step), err)
		}
		// A nested pattern may have emitted its own terminal failure.
		if fc.Terminated() {
			return nil
		}
	}
	return nil
}

// ResetAgents implements Pattern.
func (s *Sequential) ResetAgents(eng core.Engine) error {
	return resetSteps(eng, s.steps...)
}
