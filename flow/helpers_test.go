package flow

import (
	"context"
	"sync"

	"github.com/hupe1980/flowmesh/core"
)

// stubEngine is a scriptable core.Engine for pattern tests. It records the
// dispatch order and every input each agent received.
type stubEngine struct {
	mu       sync.Mutex
	handlers map[string]func(msg core.Message) (core.Message, error)
	calls    []string
	inputs   map[string][]core.Message
	resets   []string
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		handlers: make(map[string]func(msg core.Message) (core.Message, error)),
		inputs:   make(map[string][]core.Message),
	}
}

// on scripts an agent with arbitrary behavior.
func (e *stubEngine) on(name string, fn func(msg core.Message) (core.Message, error)) {
	e.handlers[name] = fn
}

// reply scripts an agent that always answers with content.
func (e *stubEngine) reply(name, content string) {
	e.on(name, func(core.Message) (core.Message, error) {
		return core.NewAssistantMessage(name, content), nil
	})
}

// fail scripts an agent whose invocation fails at the engine boundary.
func (e *stubEngine) fail(name string, err error) {
	e.on(name, func(core.Message) (core.Message, error) {
		return core.Message{}, core.NewAgentInvocationError(name, err)
	})
}

// replies scripts an agent that answers with the given contents in call order,
// repeating the last one once exhausted.
func (e *stubEngine) replies(name string, contents ...string) {
	var n int
	e.on(name, func(core.Message) (core.Message, error) {
		idx := n
		if idx >= len(contents) {
			idx = len(contents) - 1
		}
		n++
		return core.NewAssistantMessage(name, contents[idx]), nil
	})
}

func (e *stubEngine) CallAgent(_ context.Context, name string, msg core.Message, _ ...core.CallOption) (core.Message, error) {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.inputs[name] = append(e.inputs[name], msg)
	fn, ok := e.handlers[name]
	e.mu.Unlock()

	if !ok {
		return core.Message{}, core.NewAgentInvocationError(name, core.ErrAgentNotFound)
	}
	return fn(msg)
}

func (e *stubEngine) ResetAgent(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets = append(e.resets, name)
	return nil
}

func (e *stubEngine) callCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (e *stubEngine) inputsOf(name string) []core.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Message, len(e.inputs[name]))
	copy(out, e.inputs[name])
	return out
}

// writerPattern is a minimal Pattern writing a shared-data entry and a fixed
// result message. Used to exercise PatternStep composition and shared-data
// merging.
type writerPattern struct {
	name  string
	key   string
	value any
}

func (p *writerPattern) Name() string { return p.name }

func (p *writerPattern) Execute(_ context.Context, _ core.Engine, fc *FlowContext) error {
	fc.Set(p.key, p.value)
	fc.SetCurrent(core.NewAssistantMessage(p.name, p.name+" done"))
	return nil
}

func (p *writerPattern) ResetAgents(core.Engine) error { return nil }
