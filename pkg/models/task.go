// Package models holds the wire and domain types shared across the
// credential store, router, context manager, tool executor, and
// orchestrator packages.
package models

// TaskType is the finite classification of a developer request.
type TaskType string

const (
	TaskChat                TaskType = "chat"
	TaskCodeExplainSimple   TaskType = "code_explain_simple"
	TaskCodeExplainComplex  TaskType = "code_explain_complex"
	TaskCodeGeneration      TaskType = "code_generation"
	TaskCodeGenerationMulti TaskType = "code_generation_multi"
	TaskBugFixing           TaskType = "bug_fixing"
	TaskRefactor            TaskType = "refactor"
	TaskArchitecture        TaskType = "architecture"
	TaskTestGeneration      TaskType = "test_generation"
	TaskDocumentation       TaskType = "documentation"
	TaskResearch            TaskType = "research"
)

// ValidTaskTypes enumerates every TaskType the classifier may produce.
var ValidTaskTypes = map[TaskType]bool{
	TaskChat:                true,
	TaskCodeExplainSimple:   true,
	TaskCodeExplainComplex:  true,
	TaskCodeGeneration:      true,
	TaskCodeGenerationMulti: true,
	TaskBugFixing:           true,
	TaskRefactor:            true,
	TaskArchitecture:        true,
	TaskTestGeneration:      true,
	TaskDocumentation:       true,
	TaskResearch:            true,
}

// Complexity is the classifier's coarse effort estimate.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// TaskClassification is the classifier's structured verdict on a query.
type TaskClassification struct {
	TaskType            TaskType   `json:"task_type"`
	Confidence          float64    `json:"confidence"`
	RequiresFileContext bool       `json:"requires_file_context"`
	RequiresTerminal    bool       `json:"requires_terminal"`
	EstimatedComplexity Complexity `json:"estimated_complexity"`
	Reasoning           string     `json:"reasoning"`
}

// ToolEnabledTaskTypes is the set of TaskTypes that run through the
// agentic tool-calling loop rather than the plain streaming path.
var ToolEnabledTaskTypes = map[TaskType]bool{
	TaskCodeGeneration:      true,
	TaskCodeGenerationMulti: true,
	TaskBugFixing:           true,
	TaskRefactor:            true,
	TaskArchitecture:        true,
	TaskTestGeneration:      true,
	TaskCodeExplainComplex:  true,
}
