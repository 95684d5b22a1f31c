package core

import "context"

// Engine is the dispatch boundary the flow core consumes. It resolves agent
// names to implementations and performs the actual invocation; the flow core
// never constructs an Engine, it is injected at execution time.
//
// Implementations must:
//   - Signal invocation failures as *AgentInvocationError (never as a
//     silently empty Message)
//   - Be safe for concurrent CallAgent invocations; parallel patterns
//     dispatch many calls at once
//   - Propagate context cancellation to the underlying agent call
type Engine interface {
	// CallAgent dispatches a single message to the named agent and returns
	// its response.
	CallAgent(ctx context.Context, name string, msg Message, opts ...CallOption) (Message, error)

	// ResetAgent clears any session state the named agent accumulated, so
	// that independent runs start from a clean slate.
	ResetAgent(name string) error
}

// CallOptions carries optional per-invocation parameters. Engines may ignore
// options they do not understand.
type CallOptions struct {
	// Metadata is attached to the invocation for callbacks and logging.
	Metadata map[string]any
}

// CallOption mutates CallOptions using the functional options pattern.
type CallOption func(*CallOptions)

// WithCallMetadata attaches a metadata key/value to the invocation.
func WithCallMetadata(key string, value any) CallOption {
	return func(o *CallOptions) {
		if o.Metadata == nil {
			o.Metadata = make(map[string]any)
		}
		o.Metadata[key] = value
	}
}

// NewCallOptions applies the given options to a zero CallOptions value.
func NewCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
