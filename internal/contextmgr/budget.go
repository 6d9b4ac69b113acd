package contextmgr

import "github.com/ai-innovation-art/quasar/pkg/models"

// Budget is the per-task character allowance for each context layer.
// Permanent is never truncated; the others are trimmed oldest-first
// (summary, then session, then task) when Total is exceeded.
type Budget struct {
	Permanent int `json:"permanent"`
	Task      int `json:"task"`
	Summary   int `json:"summary"`
	Total     int `json:"total"`
}

// budgets is the per-task allowance table. Conversational tasks carry
// little file context; multi-file generation carries the most.
var budgets = map[models.TaskType]Budget{
	models.TaskChat:                {Permanent: 400, Task: 800, Summary: 400, Total: 1600},
	models.TaskCodeExplainSimple:   {Permanent: 400, Task: 4000, Summary: 800, Total: 5200},
	models.TaskCodeExplainComplex:  {Permanent: 400, Task: 8000, Summary: 1600, Total: 10000},
	models.TaskCodeGeneration:      {Permanent: 400, Task: 6000, Summary: 1200, Total: 7600},
	models.TaskCodeGenerationMulti: {Permanent: 400, Task: 12000, Summary: 2000, Total: 14400},
	models.TaskBugFixing:           {Permanent: 400, Task: 6000, Summary: 1200, Total: 7600},
	models.TaskRefactor:            {Permanent: 400, Task: 8000, Summary: 1600, Total: 10000},
	models.TaskArchitecture:        {Permanent: 400, Task: 8000, Summary: 1600, Total: 10000},
	models.TaskTestGeneration:      {Permanent: 400, Task: 6000, Summary: 1200, Total: 7600},
	models.TaskDocumentation:       {Permanent: 400, Task: 4000, Summary: 800, Total: 5200},
	models.TaskResearch:            {Permanent: 400, Task: 8000, Summary: 1600, Total: 10000},
}

// BudgetFor returns the allowance for a task type, defaulting to the chat
// budget for unknown types.
func BudgetFor(task models.TaskType) Budget {
	if b, ok := budgets[task]; ok {
		return b
	}
	return budgets[models.TaskChat]
}
