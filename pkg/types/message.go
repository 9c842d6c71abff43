// Package types defines the shared data model for the webpilot agent:
// conversation messages, tool call records, action results, and the
// event stream emitted by the control loop.
package types

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// RoleSystem is the fixed system prompt message.
	RoleSystem MessageRole = "system"

	// RoleUser is a message from the human operator.
	RoleUser MessageRole = "user"

	// RoleAssistant is a message produced by the model, possibly
	// carrying tool calls.
	RoleAssistant MessageRole = "assistant"

	// RoleTool is the result of one executed tool call, answering the
	// assistant message that issued it.
	RoleTool MessageRole = "tool"
)

// ToolCallRecord is a fully assembled tool call attached to an assistant
// message. Arguments holds the final concatenated argument text exactly as
// streamed, whether or not it ever became valid JSON.
type ToolCallRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in the conversation history.
//
// Ordering is significant: a RoleTool message must immediately follow the
// assistant message whose tool call it answers, one per call, in call order.
// Messages are owned by the controller and are only ever mutated in place
// by history compaction, which replaces Content with a summary string.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`

	// ToolCalls is set on assistant messages that invoked tools.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`

	// ToolCallID correlates a RoleTool message with the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName records which action produced a RoleTool message. It is
	// not sent over the wire; compaction uses it to pick a summary form.
	ToolName string `json:"-"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message with optional tool calls.
func NewAssistantMessage(content string, toolCalls []ToolCallRecord) *Message {
	return &Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// NewToolMessage creates a tool-result message answering the given call.
func NewToolMessage(toolCallID, toolName, content string) *Message {
	return &Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
	}
}

// IsToolResult reports whether the message is a tool-result entry.
func (m *Message) IsToolResult() bool {
	return m.Role == RoleTool
}
