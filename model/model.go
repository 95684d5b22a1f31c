package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/flowmesh/core"
)

// Request captures the normalized model input produced by agents.
type Request struct {
	// Instructions is the system prompt prepended to the conversation.
	Instructions string `json:"instructions,omitempty"`
	// Messages is the conversation transcript, oldest first.
	Messages []core.Message `json:"messages"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed output of a generation call.
type Response struct {
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface agents require to drive generation.
type Model interface {
	// Generate produces a single completed response for the request.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are keyed by the content of the last request message; unknown
// prompts get a deterministic echo. Safe for concurrent use.
type MockModel struct {
	info      Info
	mu        sync.RWMutex
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Generate implements Model.
func (m *MockModel) Generate(_ context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	last := req.Messages[len(req.Messages)-1]

	m.mu.RLock()
	full, ok := m.responses[last.Content]
	m.mu.RUnlock()
	if !ok {
		full = fmt.Sprintf("Mock response to: %s", last.Content)
	}

	return &Response{
		Message:      core.NewAssistantMessage(m.info.Name, full),
		FinishReason: "stop",
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
