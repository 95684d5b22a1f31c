package flow

import (
	"errors"
	"fmt"

	"github.com/hupe1980/flowmesh/core"
)

// RoutingKeyNotFoundError reports that a router agent produced a key with no
// matching route and no default route is configured.
type RoutingKeyNotFoundError struct {
	Key string
}

// Error implements the error interface.
func (e *RoutingKeyNotFoundError) Error() string {
	return fmt.Sprintf("no route configured for key %q and no default route exists", e.Key)
}

// TaskExtractionEmptyError reports that a delegator agent's output yielded
// zero tasks under the configured task expression.
type TaskExtractionEmptyError struct {
	Agent string
}

// Error implements the error interface.
func (e *TaskExtractionEmptyError) Error() string {
	return fmt.Sprintf("delegator %q produced no extractable tasks", e.Agent)
}

// UnsupportedStepError reports a malformed composition: a step that is
// neither an agent reference nor a pattern. This is a configuration error,
// not a runtime condition.
type UnsupportedStepError struct {
	Step any
}

// Error implements the error interface.
func (e *UnsupportedStepError) Error() string {
	return fmt.Sprintf("unsupported step type %T", e.Step)
}

// recoverable reports whether err belongs to the described domain-level
// failure taxonomy. Recoverable errors are converted into terminal messages
// at the pattern that detects them; anything else is a genuine defect and
// propagates out of Execute.
func recoverable(err error) bool {
	var invocationErr *core.AgentInvocationError
	var routeErr *RoutingKeyNotFoundError
	var taskErr *TaskExtractionEmptyError
	var stepErr *UnsupportedStepError
	return errors.As(err, &invocationErr) ||
		errors.As(err, &routeErr) ||
		errors.As(err, &taskErr) ||
		errors.As(err, &stepErr)
}
