package models

// EventType is the tagged discriminator for streamed SSE events.
type EventType string

const (
	EventClassification  EventType = "classification"
	EventIteration       EventType = "iteration"
	EventIterationWarn   EventType = "iteration_warning"
	EventMessage         EventType = "message"
	EventToolStart       EventType = "tool_start"
	EventToolComplete    EventType = "tool_complete"
	EventFileTreeUpdated EventType = "file_tree_updated"
	EventToken           EventType = "token"
	EventDone            EventType = "done"
	EventError           EventType = "error"
)

// Event is the wire shape of a single server-sent record. Exactly the
// fields relevant to Type are populated; the rest are left zero and
// omitted from JSON.
type Event struct {
	Type EventType `json:"type"`

	// classification
	Classification *TaskClassification `json:"classification,omitempty"`

	// iteration / iteration_warning
	Iteration int `json:"iteration,omitempty"`
	Remaining int `json:"remaining,omitempty"`

	// done
	Iterations int `json:"iterations,omitempty"`

	// message
	Content string `json:"content,omitempty"`

	// tool_start / tool_complete
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// token
	Token string `json:"token,omitempty"`

	// done
	Provider          string   `json:"provider,omitempty"`
	Model             string   `json:"model,omitempty"`
	ToolCallsCount    int      `json:"tool_calls_count,omitempty"`
	ToolsUsed         []string `json:"tools_used,omitempty"`
	LoopDetected      bool     `json:"loop_detected,omitempty"`
	MaxIterations     bool     `json:"max_iterations_reached,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// NewClassificationEvent builds a classification event.
func NewClassificationEvent(c *TaskClassification) Event {
	return Event{Type: EventClassification, Classification: c}
}

// NewIterationEvent builds an iteration event.
func NewIterationEvent(n int) Event {
	return Event{Type: EventIteration, Iteration: n}
}

// NewIterationWarningEvent builds the second-to-last-iteration warning event.
func NewIterationWarningEvent(n, remaining int) Event {
	return Event{Type: EventIterationWarn, Iteration: n, Remaining: remaining}
}

// NewMessageEvent builds a human-readable progress/observation message event.
func NewMessageEvent(content string) Event {
	return Event{Type: EventMessage, Content: content}
}

// NewToolStartEvent builds a tool_start event.
func NewToolStartEvent(c ToolCall) Event {
	return Event{Type: EventToolStart, ToolCall: &c}
}

// NewToolCompleteEvent builds a tool_complete event.
func NewToolCompleteEvent(c ToolCall, r ToolResult) Event {
	return Event{Type: EventToolComplete, ToolCall: &c, ToolResult: &r}
}

// NewFileTreeUpdatedEvent signals the workspace file tree changed.
func NewFileTreeUpdatedEvent() Event {
	return Event{Type: EventFileTreeUpdated}
}

// NewTokenEvent builds a streamed text-chunk event.
func NewTokenEvent(tok string) Event {
	return Event{Type: EventToken, Token: tok}
}

// NewErrorEvent builds a terminal error event.
func NewErrorEvent(err string) Event {
	return Event{Type: EventError, Error: err}
}
