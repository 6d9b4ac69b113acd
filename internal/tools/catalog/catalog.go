// Package catalog assembles the full tool registry and the per-task tool
// sets the orchestrator binds to models.
package catalog

import (
	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/internal/tools/files"
	"github.com/ai-innovation-art/quasar/internal/tools/search"
	"github.com/ai-innovation-art/quasar/internal/tools/shell"
	"github.com/ai-innovation-art/quasar/internal/tools/web"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Config selects what the catalogue enables.
type Config struct {
	Workspace   string
	BraveAPIKey string

	// EnableWeb gates web_search/read_url/browse_interactive.
	EnableWeb bool

	// EnableExec gates the command-running shell tools and the terminal
	// buffer; suggest_command and check_command_available are always
	// registered.
	EnableExec bool
}

// Build registers every enabled tool into a fresh registry. The terminal
// buffer is shared between the shell tools and get_terminal_buffer.
func Build(cfg Config) *tools.Registry {
	registry := tools.NewRegistry()

	fileCfg := files.Config{Workspace: cfg.Workspace}
	registry.Register(files.NewReadTool(fileCfg))
	registry.Register(files.NewReadChunkTool(fileCfg))
	registry.Register(files.NewCreateTool(fileCfg))
	registry.Register(files.NewModifyTool(fileCfg))
	registry.Register(files.NewPatchTool(fileCfg))
	registry.Register(files.NewDeleteTool(fileCfg))
	registry.Register(files.NewMoveTool(fileCfg))

	searchCfg := search.Config{Workspace: cfg.Workspace}
	registry.Register(search.NewListTool(searchCfg))
	registry.Register(search.NewSearchTool(searchCfg))
	registry.Register(search.NewGrepTool(searchCfg))
	registry.Register(search.NewTreeTool(searchCfg))

	if cfg.EnableExec {
		buffer := shell.NewBuffer()
		shellCfg := shell.Config{Workspace: cfg.Workspace, Buffer: buffer}
		registry.Register(shell.NewRunCommandTool(shellCfg))
		registry.Register(shell.NewRunScriptTool(shellCfg))
		registry.Register(shell.NewRunPackageTool(shellCfg))
		registry.Register(shell.NewBufferTool(buffer))
	}
	registry.Register(shell.NewSuggestCommandTool())
	registry.Register(shell.NewCheckCommandTool())

	if cfg.EnableWeb {
		extractor := web.NewExtractor()
		registry.Register(web.NewSearchTool(web.SearchConfig{BraveAPIKey: cfg.BraveAPIKey}))
		registry.Register(web.NewFetchTool(extractor))
		registry.Register(web.NewBrowseTool(extractor))
	}

	return registry
}

// readOnlySet is the tool set for explanation-style tasks.
var readOnlySet = []string{
	"read_file", "read_file_chunk", "list_files", "search_files",
	"grep_search", "tree_list", "get_terminal_buffer",
	"check_command_available", "suggest_command",
}

// writeSet adds the mutating file tools.
var writeSet = append(append([]string{}, readOnlySet...),
	"create_file", "modify_file", "patch_file", "delete_file", "move_file")

// fullSet adds execution and web access.
var fullSet = append(append([]string{}, writeSet...),
	"run_terminal_command", "run_script_file", "run_package_command",
	"web_search", "read_url", "browse_interactive")

// ForTask narrows the registry to the tool set appropriate for a task
// type: read-only for explanation, read-write for generation and
// refactoring, the full set for bug fixing and multi-file work.
func ForTask(registry *tools.Registry, task models.TaskType) *tools.Registry {
	switch task {
	case models.TaskCodeExplainComplex, models.TaskArchitecture:
		return registry.Subset(readOnlySet)
	case models.TaskCodeGeneration, models.TaskRefactor, models.TaskTestGeneration:
		return registry.Subset(writeSet)
	case models.TaskCodeGenerationMulti, models.TaskBugFixing, models.TaskResearch:
		return registry.Subset(fullSet)
	default:
		return registry.Subset(readOnlySet)
	}
}
