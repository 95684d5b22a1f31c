package core

import (
	"errors"
	"fmt"
)

// ErrAgentNotFound indicates an agent name that no agent was registered
// under. Engines wrap it inside an *AgentInvocationError.
var ErrAgentNotFound = errors.New("agent not found")

// AgentInvocationError reports that an Engine failed to obtain a response
// from the named agent, for any reason: unknown name, the agent returned an
// error, or the call was aborted.
type AgentInvocationError struct {
	Agent string
	Err   error
}

// Error implements the error interface.
func (e *AgentInvocationError) Error() string {
	return fmt.Sprintf("agent %q invocation failed: %v", e.Agent, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *AgentInvocationError) Unwrap() error { return e.Err }

// NewAgentInvocationError wraps err as an invocation failure of agent name.
func NewAgentInvocationError(name string, err error) *AgentInvocationError {
	return &AgentInvocationError{Agent: name, Err: err}
}
