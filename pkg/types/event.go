package types

// AgentEventType defines the type of event emitted by the controller while
// processing a task.
type AgentEventType string

const (
	EventTypeMessageStart AgentEventType = "message_start" // EventTypeMessageStart indicates the model is starting a new assistant turn.
	EventTypeContent      AgentEventType = "content"       // EventTypeContent carries a partial text delta from the current assistant turn.
	EventTypeMessageEnd   AgentEventType = "message_end"   // EventTypeMessageEnd indicates the assistant turn finished streaming.
	EventTypeToolCall     AgentEventType = "tool_call"     // EventTypeToolCall indicates a tool call is about to be executed.
	EventTypeToolResult   AgentEventType = "tool_result"   // EventTypeToolResult carries the full, unsummarized result of a tool call.
	EventTypeLoopDetected AgentEventType = "loop_detected" // EventTypeLoopDetected is an advisory signal that the model is repeating itself.
	EventTypeUsage        AgentEventType = "usage"         // EventTypeUsage carries the end-of-task token and cost summary.
	EventTypeWarning      AgentEventType = "warning"       // EventTypeWarning carries a non-fatal condition such as iteration-cap exhaustion.
	EventTypeError        AgentEventType = "error"         // EventTypeError carries a task-level or per-call error.
	EventTypeDebug        AgentEventType = "debug"         // EventTypeDebug carries diagnostic output when debug mode is enabled.
)

// AgentEvent is one observable occurrence in the controller's event stream.
// The stream for a single task always terminates after either a usage event
// or a terminal error event.
type AgentEvent struct {
	// Type indicates the kind of event.
	Type AgentEventType

	// Content holds text for content, warning, and debug events.
	Content string

	// ToolName is the action name for tool call/result and loop events.
	ToolName string

	// ToolArgs holds the parsed arguments for tool call and loop events.
	ToolArgs map[string]any

	// Result is the full action result for tool result events.
	Result *ActionResult

	// Err is set on error events.
	Err error

	// Usage is set on usage events.
	Usage *UsageReport

	// IsFinal marks a message_end event whose turn issued no tool calls.
	IsFinal bool
}

// UsageReport summarizes token consumption and cost for one task.
type UsageReport struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// NewMessageStartEvent creates a message start event.
func NewMessageStartEvent() *AgentEvent {
	return &AgentEvent{Type: EventTypeMessageStart}
}

// NewContentEvent creates a content delta event.
func NewContentEvent(content string) *AgentEvent {
	return &AgentEvent{Type: EventTypeContent, Content: content}
}

// NewMessageEndEvent creates a message end event. final indicates the turn
// issued no tool calls and the task is complete.
func NewMessageEndEvent(final bool) *AgentEvent {
	return &AgentEvent{Type: EventTypeMessageEnd, IsFinal: final}
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(name string, args map[string]any) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolCall, ToolName: name, ToolArgs: args}
}

// NewToolResultEvent creates a tool result event carrying the full result.
func NewToolResultEvent(name string, result *ActionResult) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolResult, ToolName: name, Result: result}
}

// NewLoopDetectedEvent creates an advisory loop detection event.
func NewLoopDetectedEvent(name string, args map[string]any) *AgentEvent {
	return &AgentEvent{Type: EventTypeLoopDetected, ToolName: name, ToolArgs: args}
}

// NewUsageEvent creates an end-of-task usage summary event.
func NewUsageEvent(usage *UsageReport) *AgentEvent {
	return &AgentEvent{Type: EventTypeUsage, Usage: usage}
}

// NewWarningEvent creates a warning event.
func NewWarningEvent(content string) *AgentEvent {
	return &AgentEvent{Type: EventTypeWarning, Content: content}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) *AgentEvent {
	return &AgentEvent{Type: EventTypeError, Err: err}
}

// NewDebugEvent creates a debug event.
func NewDebugEvent(content string) *AgentEvent {
	return &AgentEvent{Type: EventTypeDebug, Content: content}
}
