package flow

import (
	"github.com/google/uuid"
	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
)

// TerminateKey is the reserved shared-data key used for early-termination
// signaling. Patterns set it when they emit a terminal failure message; the
// Flow sequencer stops dispatching further steps once it is set. It is never
// merged back from a forked branch, so a failed parallel branch cannot halt
// its parent.
const TerminateKey = "flowmesh.terminate"

// FlowContext is the single mutable carrier threaded through one execution:
// the running current message, an append-only history of every message
// observed, and a shared key/value bag for inter-step signaling.
//
// A FlowContext is created once per top-level Flow execution and discarded at
// the end of that run. It is owned exclusively by one sequential chain of
// steps; concurrent patterns fork branch-local copies via Fork and merge the
// shared data back after all branches have finished. No method on FlowContext
// is safe for concurrent use on the same instance.
type FlowContext struct {
	id           string
	initialInput core.Message
	current      core.Message
	history      []core.Message
	sharedData   map[string]any
	logger       logging.Logger
}

// ContextOption customizes FlowContext construction.
type ContextOption func(*FlowContext)

// WithLogger injects the logging sink carried through the execution.
// Defaults to logging.NoOpLogger.
func WithLogger(logger logging.Logger) ContextOption {
	return func(fc *FlowContext) {
		if logger != nil {
			fc.logger = logger
		}
	}
}

// NewContext creates a fresh execution carrier seeded with input. The input
// becomes both the fixed initial input and the first current message, and is
// recorded as the first history entry.
func NewContext(input core.Message, opts ...ContextOption) *FlowContext {
	fc := &FlowContext{
		id:           uuid.NewString(),
		initialInput: input,
		current:      input,
		history:      []core.Message{input},
		sharedData:   make(map[string]any),
		logger:       logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// ID returns the unique identifier of this execution (or branch).
func (fc *FlowContext) ID() string { return fc.id }

// InitialInput returns the message the execution was created with.
func (fc *FlowContext) InitialInput() core.Message { return fc.initialInput }

// Current returns the running accumulator message every subsequent step
// consumes.
func (fc *FlowContext) Current() core.Message { return fc.current }

// SetCurrent replaces the current message and records it in the history.
func (fc *FlowContext) SetCurrent(msg core.Message) {
	fc.current = msg
	fc.history = append(fc.history, msg)
}

// Observe records a message in the history without making it current. Used
// for audit-only messages such as a router agent's decision.
func (fc *FlowContext) Observe(msg core.Message) {
	fc.history = append(fc.history, msg)
}

// History returns a copy of every message observed so far, in order. The
// history carries no control meaning; it exists for auditing.
func (fc *FlowContext) History() []core.Message {
	out := make([]core.Message, len(fc.history))
	copy(out, fc.history)
	return out
}

// Get reads a shared-data value.
func (fc *FlowContext) Get(key string) (any, bool) {
	v, ok := fc.sharedData[key]
	return v, ok
}

// Set writes a shared-data value.
func (fc *FlowContext) Set(key string, value any) {
	fc.sharedData[key] = value
}

// Terminate sets the reserved early-termination key. The Flow sequencer
// checks it between steps and stops dispatching once set.
func (fc *FlowContext) Terminate() {
	fc.sharedData[TerminateKey] = true
}

// Terminated reports whether the reserved early-termination key is set.
func (fc *FlowContext) Terminated() bool {
	v, ok := fc.sharedData[TerminateKey]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Logger returns the logging sink carried by this execution.
func (fc *FlowContext) Logger() logging.Logger { return fc.logger }

// Fork creates an independent branch context seeded with input. The branch
// receives a shallow copy of the parent's shared data, a fresh history and
// its own id; the logger is carried over. Used by concurrent patterns so
// branches never share a mutable carrier.
func (fc *FlowContext) Fork(input core.Message) *FlowContext {
	shared := make(map[string]any, len(fc.sharedData))
	for k, v := range fc.sharedData {
		if k == TerminateKey {
			continue
		}
		shared[k] = v
	}
	return &FlowContext{
		id:           uuid.NewString(),
		initialInput: input,
		current:      input,
		history:      []core.Message{},
		sharedData:   shared,
		logger:       fc.logger,
	}
}

// MergeShared folds a finished branch's shared data back into this context,
// last writer wins per key. Callers iterate branches in declared task order,
// which makes the merge deterministic even when two branches wrote the same
// key. The reserved termination key is skipped so branch-local failures stay
// branch-local.
func (fc *FlowContext) MergeShared(branch *FlowContext) {
	for k, v := range branch.sharedData {
		if k == TerminateKey {
			continue
		}
		fc.sharedData[k] = v
	}
}

// SpliceHistory appends a finished branch's history to this context's
// history, preserving the branch-internal order.
func (fc *FlowContext) SpliceHistory(branch *FlowContext) {
	fc.history = append(fc.history, branch.history...)
}
