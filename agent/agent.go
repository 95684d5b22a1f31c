package agent

import (
	"context"

	"github.com/hupe1980/flowmesh/core"
)

// Agent is a named unit that turns a Message into a Message. What happens
// inside Call (model invocation, tool execution, plain computation) is
// opaque to the engine and to the flow core.
//
// Implementations must be safe for concurrent Call invocations: parallel
// patterns may dispatch to the same agent from several branches at once.
type Agent interface {
	// Name returns the identifier the agent is registered and dispatched by.
	Name() string

	// Call processes a single message and returns the response.
	Call(ctx context.Context, msg core.Message) (core.Message, error)

	// Reset clears any session state accumulated across calls so that
	// independent runs start from a clean slate. Stateless agents may
	// implement it as a no-op.
	Reset()
}
