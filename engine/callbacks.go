package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/flowmesh/core"
)

// CallbackType defines the lifecycle points where callbacks execute.
//
// Callbacks hook into the dispatch pipeline without modifying core logic.
// They run synchronously and can influence execution by returning errors
// that fail the invocation.
type CallbackType string

const (
	// CallbackBeforeCall is triggered before an agent is dispatched.
	// Use for validation, instrumentation or rate limiting.
	CallbackBeforeCall CallbackType = "before_call"

	// CallbackAfterCall is triggered after an agent call returned, whether
	// it succeeded or failed. Use for metrics collection or auditing.
	CallbackAfterCall CallbackType = "after_call"
)

// CallbackContext carries the state of one dispatch through the callback
// chain. Response and Err are populated for after-call callbacks only.
type CallbackContext struct {
	Agent    string
	Message  core.Message
	Response *core.Message
	Err      error
	Metadata map[string]any
}

// CallbackFunc is executed at a lifecycle point. Returning a non-nil error
// fails the invocation.
type CallbackFunc func(ctx context.Context, cc *CallbackContext) error

// CallbackRegistry holds callbacks grouped by lifecycle point. The zero
// value and a nil registry are both usable and run nothing.
type CallbackRegistry struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]CallbackFunc
}

// NewCallbackRegistry creates an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[CallbackType][]CallbackFunc)}
}

// Register appends a callback for the given lifecycle point.
func (r *CallbackRegistry) Register(t CallbackType, fn CallbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.callbacks == nil {
		r.callbacks = make(map[CallbackType][]CallbackFunc)
	}
	r.callbacks[t] = append(r.callbacks[t], fn)
}

// run executes all callbacks registered for t in registration order,
// stopping at the first error.
func (r *CallbackRegistry) run(ctx context.Context, t CallbackType, cc *CallbackContext) error {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	fns := r.callbacks[t]
	r.mu.RUnlock()

	for _, fn := range fns {
		if err := fn(ctx, cc); err != nil {
			return err
		}
	}
	return nil
}
