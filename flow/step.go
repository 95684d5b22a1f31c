package flow

import (
	"context"
	"fmt"

	"github.com/hupe1980/flowmesh/core"
)

// Step is a tagged reference to a unit of work inside a Flow or composite
// pattern: either an agent resolved by name through the Engine, or a nested
// Pattern. Concrete step types implement the unexported isStep marker
// enabling a closed set, so dispatch is never ambiguous at runtime.
type Step interface{ isStep() }

// AgentStep references a named agent dispatched through the Engine.
type AgentStep struct {
	Name string
}

// isStep implements the Step interface for AgentStep.
func (AgentStep) isStep() {}

// PatternStep embeds a nested Pattern as a step.
type PatternStep struct {
	Pattern Pattern
}

// isStep implements the Step interface for PatternStep.
func (PatternStep) isStep() {}

// Agent creates a step that dispatches to the named agent.
func Agent(name string) Step { return AgentStep{Name: name} }

// Nested creates a step that executes the given pattern.
func Nested(p Pattern) Step { return PatternStep{Pattern: p} }

// stepLabel names a step for aggregation summaries and failure messages.
func stepLabel(s Step) string {
	switch step := s.(type) {
	case AgentStep:
		return step.Name
	case PatternStep:
		if step.Pattern != nil {
			return step.Pattern.Name()
		}
		return "<nil pattern>"
	default:
		return fmt.Sprintf("%T", s)
	}
}

// runStep dispatches one step against fc: agent steps call the engine with
// the current message and make the response current; pattern steps execute
// recursively. Domain-level failures are returned to the caller so each
// pattern can apply its own propagation policy.
func runStep(ctx context.Context, eng core.Engine, fc *FlowContext, s Step) error {
	switch step := s.(type) {
	case AgentStep:
		msg, err := eng.CallAgent(ctx, step.Name, fc.Current())
		if err != nil {
			return err
		}
		fc.SetCurrent(msg)
		return nil
	case PatternStep:
		if step.Pattern == nil {
			return &UnsupportedStepError{Step: s}
		}
		return step.Pattern.Execute(ctx, eng, fc)
	default:
		return &UnsupportedStepError{Step: s}
	}
}

// resetSteps transitively resets every agent name and nested pattern the
// given steps reference.
func resetSteps(eng core.Engine, steps ...Step) error {
	for _, s := range steps {
		switch step := s.(type) {
		case AgentStep:
			if err := eng.ResetAgent(step.Name); err != nil {
				return fmt.Errorf("reset agent %s: %w", step.Name, err)
			}
		case PatternStep:
			if step.Pattern == nil {
				continue
			}
			if err := step.Pattern.ResetAgents(eng); err != nil {
				return err
			}
		}
	}
	return nil
}
