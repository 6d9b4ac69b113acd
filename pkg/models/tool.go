package models

import "encoding/json"

// ToolCall is a single invocation request emitted by a tool-bound model.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ErrorKind classifies why a tool call failed, per the error table.
type ErrorKind string

const (
	ErrPathSandboxViolation ErrorKind = "PathSandboxViolation"
	ErrFileNotFound         ErrorKind = "FileNotFound"
	ErrAlreadyExists        ErrorKind = "AlreadyExists"
	ErrLargeFileRefusal     ErrorKind = "LargeFileRefusal"
	ErrToolTimeout          ErrorKind = "ToolTimeout"
	ErrUnknownTool          ErrorKind = "UnknownTool"
	ErrDangerousCommand     ErrorKind = "DangerousCommandBlocked"
)

// ToolResult is the outcome of dispatching one ToolCall.
type ToolResult struct {
	ToolCallID string    `json:"tool_call_id"`
	ToolName   string    `json:"tool_name"`
	Success    bool      `json:"success"`
	Content    string    `json:"content,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Hint       string    `json:"hint,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn in the provider-facing chat transcript. ToolCalls is
// populated on assistant messages that request tool invocations; ToolResult
// is populated on the synthetic tool-role message that answers one of them.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// AgentResponse is the final aggregate the orchestrator returns to callers.
type AgentResponse struct {
	Success           bool     `json:"success"`
	ResponseText      string   `json:"response_text"`
	TaskType          TaskType `json:"task_type"`
	ModelUsed         string   `json:"model_used"`
	Provider          string   `json:"provider"`
	ToolsUsed         []string `json:"tools_used"`
	ToolCallsCount    int      `json:"tool_calls_count"`
	Iterations        int      `json:"iterations"`
	LoopDetected      bool     `json:"loop_detected,omitempty"`
	MaxIterations     bool     `json:"max_iterations_reached,omitempty"`
	Error             string   `json:"error,omitempty"`
}
