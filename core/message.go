package core

// Role identifies the conversational origin of a Message. The set is closed;
// engines and patterns never invent roles outside of it.
type Role string

const (
	// RoleSystem marks instructions injected by the application.
	RoleSystem Role = "system"
	// RoleUser marks input originating from the caller.
	RoleUser Role = "user"
	// RoleAssistant marks output produced by an agent.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a tool invocation.
	RoleTool Role = "tool"
)

// ToolCall describes a structured function invocation request carried by an
// assistant message. Arguments is a serialized payload (typically JSON) so
// downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is the immutable value object exchanged between flow steps and
// agents. It is produced by agent invocation and by pattern aggregation;
// the flow core never mutates a Message after construction.
//
// Content may be empty when the message carries only tool calls.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Name optionally correlates the message with the agent that produced
	// it, or with the tool call it responds to.
	Name string `json:"name,omitempty"`
}

// NewSystemMessage creates a system-role message with the given text.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role message with the given text.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant-role message authored by name.
// An empty name is allowed for anonymous aggregation messages.
func NewAssistantMessage(name, content string) Message {
	return Message{Role: RoleAssistant, Content: content, Name: name}
}

// NewToolMessage creates a tool-role message correlated to a tool call id.
func NewToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, Name: callID}
}
