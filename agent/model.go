package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/model"
)

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	// Instructions is the system prompt prepended to every generation.
	Instructions string

	// MaxTranscript bounds the number of transcript messages kept between
	// calls. Zero keeps the full transcript.
	MaxTranscript int
}

// ModelAgent is an LLM-backed agent. It keeps a per-agent conversation
// transcript across calls within a run, which is exactly the session state
// that Engine.ResetAgent exists to clear between independent runs.
type ModelAgent struct {
	name  string
	model model.Model
	opts  ModelAgentOptions

	mu         sync.Mutex
	transcript []core.Message
}

// NewModelAgent creates a model-backed agent with the given name.
func NewModelAgent(name string, m model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelAgent{name: name, model: m, opts: opts}
}

// Name implements Agent.
func (a *ModelAgent) Name() string { return a.name }

// Call implements Agent. The incoming message is appended to the transcript,
// the model is invoked with instructions plus the full transcript, and the
// model's reply is recorded and returned attributed to this agent.
func (a *ModelAgent) Call(ctx context.Context, msg core.Message) (core.Message, error) {
	a.mu.Lock()
	messages := make([]core.Message, 0, len(a.transcript)+1)
	messages = append(messages, a.transcript...)
	messages = append(messages, msg)
	a.mu.Unlock()

	resp, err := a.model.Generate(ctx, model.Request{
		Instructions: a.opts.Instructions,
		Messages:     messages,
	})
	if err != nil {
		return core.Message{}, fmt.Errorf("model %s generate: %w", a.model.Info().Name, err)
	}

	reply := resp.Message
	reply.Name = a.name

	a.mu.Lock()
	a.transcript = append(a.transcript, msg, reply)
	if a.opts.MaxTranscript > 0 && len(a.transcript) > a.opts.MaxTranscript {
		a.transcript = a.transcript[len(a.transcript)-a.opts.MaxTranscript:]
	}
	a.mu.Unlock()

	return reply, nil
}

// Reset implements Agent. It drops the accumulated transcript.
func (a *ModelAgent) Reset() {
	a.mu.Lock()
	a.transcript = nil
	a.mu.Unlock()
}
