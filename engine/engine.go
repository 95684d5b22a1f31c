package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/flowmesh/agent"
	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
)

// Config defines tuning parameters for the engine's operational behavior.
type Config struct {
	// MaxCalls caps the total number of agent invocations the engine will
	// dispatch before refusing further calls. It guards against runaway
	// recursive flows. Set to 0 for unlimited. The counter is cleared by
	// ResetAll.
	MaxCalls int
}

// DefaultConfig provides safe defaults for local development and testing.
var DefaultConfig = Config{
	MaxCalls: 0,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger

	// Callbacks hooks into the dispatch lifecycle. Optional.
	Callbacks *CallbackRegistry
}

// WithConfig overrides the default engine configuration.
func WithConfig(cfg Config) func(*Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithLogger injects the structured logging sink.
func WithLogger(logger logging.Logger) func(*Options) {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithCallbacks attaches a callback registry to the dispatch lifecycle.
func WithCallbacks(cb *CallbackRegistry) func(*Options) {
	return func(o *Options) { o.Callbacks = cb }
}

// Engine is the registry-backed implementation of core.Engine. Agents are
// registered by name at setup time; every flow step that references an agent
// by name dispatches through CallAgent.
//
// Engine is safe for concurrent use: parallel patterns dispatch many
// CallAgent invocations at once.
type Engine struct {
	mu        sync.RWMutex
	agents    map[string]agent.Agent
	logger    logging.Logger
	limiter   *CallLimiter
	callbacks *CallbackRegistry
}

// New creates an Engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		agents:    make(map[string]agent.Agent),
		logger:    opts.Logger,
		limiter:   NewCallLimiter(opts.Config.MaxCalls),
		callbacks: opts.Callbacks,
	}
}

// Register makes an agent available for dispatch under its name. Registering
// a second agent under an existing name is a configuration error.
func (e *Engine) Register(a agent.Agent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.agents[a.Name()]; exists {
		return fmt.Errorf("agent %q already registered", a.Name())
	}
	e.agents[a.Name()] = a
	e.logger.Debug("Agent registered", "agent", a.Name())
	return nil
}

// Agents returns the sorted names of all registered agents.
func (e *Engine) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.agents))
	for name := range e.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallAgent implements core.Engine. Every failure path is signaled as a
// *core.AgentInvocationError so callers observe a single failure type at the
// dispatch boundary.
func (e *Engine) CallAgent(ctx context.Context, name string, msg core.Message, opts ...core.CallOption) (core.Message, error) {
	callOpts := core.NewCallOptions(opts...)

	e.mu.RLock()
	a, ok := e.agents[name]
	e.mu.RUnlock()
	if !ok {
		return core.Message{}, core.NewAgentInvocationError(name, core.ErrAgentNotFound)
	}

	if err := e.limiter.Increment(); err != nil {
		return core.Message{}, core.NewAgentInvocationError(name, err)
	}

	cc := &CallbackContext{Agent: name, Message: msg, Metadata: callOpts.Metadata}
	if err := e.callbacks.run(ctx, CallbackBeforeCall, cc); err != nil {
		return core.Message{}, core.NewAgentInvocationError(name, fmt.Errorf("before-call callback: %w", err))
	}

	start := time.Now()
	out, err := a.Call(ctx, msg)
	dur := time.Since(start)

	cc.Response = &out
	cc.Err = err
	if cbErr := e.callbacks.run(ctx, CallbackAfterCall, cc); cbErr != nil && err == nil {
		err = fmt.Errorf("after-call callback: %w", cbErr)
	}

	if err != nil {
		e.logCall(name, dur, err)
		return core.Message{}, core.NewAgentInvocationError(name, err)
	}

	if out.Name == "" {
		out.Name = name
	}
	e.logCall(name, dur, nil)
	return out, nil
}

// logCall records one dispatch outcome, preferring the structured per-call
// record when the configured logger supports it.
func (e *Engine) logCall(name string, dur time.Duration, err error) {
	if acl, ok := e.logger.(logging.AgentCallLogger); ok {
		acl.LogAgentCall(name, dur, err == nil, err)
		return
	}
	if err != nil {
		e.logger.Error("Agent call failed", "agent", name, "duration", dur, "error", err)
		return
	}
	e.logger.Debug("Agent call completed", "agent", name, "duration", dur)
}

// ResetAgent implements core.Engine.
func (e *Engine) ResetAgent(name string) error {
	e.mu.RLock()
	a, ok := e.agents[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("reset agent %q: %w", name, core.ErrAgentNotFound)
	}
	a.Reset()
	return nil
}

// ResetAll resets every registered agent and clears the call limiter.
// Typically called between independent top-level runs.
func (e *Engine) ResetAll() {
	e.mu.RLock()
	agents := make([]agent.Agent, 0, len(e.agents))
	for _, a := range e.agents {
		agents = append(agents, a)
	}
	e.mu.RUnlock()

	for _, a := range agents {
		a.Reset()
	}
	e.limiter.Reset()
}
