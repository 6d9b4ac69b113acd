package agent

import (
	"fmt"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/contextmgr"
	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// systemPreamble is the task-agnostic opening of every system prompt.
const systemPreamble = `You are Quasar, a coding assistant working inside the user's editor. You help with the project in the current workspace. Be precise and practical; prefer showing code over describing it.`

// implicitRules always close the system prompt.
const implicitRules = `Working rules:
- Explain what you are about to do before doing it.
- Work on one sub-task at a time; finish it before starting the next.
- Prefer patch_file over rewriting whole existing files.
- Suggest commands with suggest_command rather than executing them, unless the user explicitly asked you to run something.
- Never re-run a command that just failed without changing something first.
- For multi-step work, create and maintain a Tasks.md checklist in the workspace.
- Read large files in chunks with read_file_chunk rather than retrying read_file.`

// taskGuidance is the per-task block keyed on the classified type.
var taskGuidance = map[models.TaskType]string{
	models.TaskChat:                 "Answer conversationally. Only touch tools if the question is about this workspace.",
	models.TaskCodeExplainSimple:    "Explain the code plainly, at the level of someone new to this codebase.",
	models.TaskCodeExplainComplex:   "Explain structure and data flow. Read the relevant files before explaining; cite paths and line ranges.",
	models.TaskCodeGeneration:       "Write complete, runnable code matching the project's existing style. Create files with create_file.",
	models.TaskCodeGenerationMulti:  "Plan the file layout first, then create files one at a time. Keep imports consistent across files.",
	models.TaskBugFixing:            "Reproduce or locate the failure first. Read the error and the code it points at before changing anything. Make the smallest fix that addresses the cause.",
	models.TaskRefactor:             "Preserve behavior exactly. Make mechanical, reviewable changes; prefer several small patches over one rewrite.",
	models.TaskArchitecture:         "Survey the codebase before recommending. Ground every suggestion in files that actually exist.",
	models.TaskTestGeneration:       "Mirror the project's existing test style and framework. Cover the edge cases the code actually has.",
	models.TaskDocumentation:        "Match the tone and format of existing docs in the workspace.",
	models.TaskResearch:             "Use web_search and read_url to ground claims, and say which sources you used.",
}

// toolGuidance is included when the task runs with tools bound.
func toolGuidance(registry *tools.Registry) string {
	var b strings.Builder
	b.WriteString("You can call these tools:\n")
	for _, t := range registry.All() {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
	}
	b.WriteString("Tool results arrive as messages; read them before deciding the next step.")
	return b.String()
}

// BuildSystemPrompt composes the system prompt for a classified task.
// registry is nil on the non-tool path.
func BuildSystemPrompt(task models.TaskType, registry *tools.Registry) string {
	sections := []string{systemPreamble}
	if guidance, ok := taskGuidance[task]; ok {
		sections = append(sections, guidance)
	}
	if registry != nil && len(registry.Names()) > 0 {
		sections = append(sections, toolGuidance(registry))
	}
	sections = append(sections, implicitRules)
	return strings.Join(sections, "\n\n")
}

// BuildUserMessage concatenates the budgeted context layers and the
// literal query.
func BuildUserMessage(built contextmgr.Built, query string) string {
	var b strings.Builder
	if built.Permanent != "" {
		b.WriteString(built.Permanent)
		b.WriteString("\n")
	}
	if built.Summary != "" {
		b.WriteString(built.Summary)
		b.WriteString("\n")
	}
	if built.Session != "" {
		b.WriteString(built.Session)
		b.WriteString("\n")
	}
	if built.Task != "" {
		b.WriteString(built.Task)
		b.WriteString("\n")
	}
	b.WriteString(query)
	return b.String()
}

// summaryDemand is the system message injected when exactly one
// iteration remains.
const summaryDemand = `You have one response left. Stop calling tools. Reply with a PROGRESS SUMMARY block stating: what is done, what remains pending, and exactly where to continue next time.`
