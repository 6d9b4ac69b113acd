package agent

import (
	"encoding/json"
	"fmt"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

// progressMessage is the human-readable line emitted before a tool runs.
func progressMessage(call models.ToolCall) string {
	arg := primaryArg(call)
	switch call.Name {
	case "read_file", "read_file_chunk":
		return fmt.Sprintf("Reading %s...", arg)
	case "create_file":
		return fmt.Sprintf("Creating %s...", arg)
	case "modify_file", "patch_file":
		return fmt.Sprintf("Editing %s...", arg)
	case "delete_file":
		return fmt.Sprintf("Deleting %s...", arg)
	case "move_file":
		return fmt.Sprintf("Moving %s...", arg)
	case "list_files", "tree_list":
		return "Listing workspace files..."
	case "search_files", "grep_search":
		return fmt.Sprintf("Searching for %s...", arg)
	case "run_terminal_command", "run_script_file", "run_package_command":
		return fmt.Sprintf("Running `%s`...", arg)
	case "web_search":
		return fmt.Sprintf("Searching the web for %s...", arg)
	case "read_url", "browse_interactive":
		return fmt.Sprintf("Fetching %s...", arg)
	default:
		return fmt.Sprintf("Using %s...", call.Name)
	}
}

// observation is the human-readable line emitted after a tool result,
// between tool_complete and the next iteration.
func observation(call models.ToolCall, result models.ToolResult) string {
	arg := primaryArg(call)
	if !result.Success {
		return fmt.Sprintf("✗ %s failed: %s", call.Name, result.Content)
	}
	switch call.Name {
	case "create_file":
		return fmt.Sprintf("✓ Created %s", arg)
	case "modify_file", "patch_file":
		return fmt.Sprintf("✓ Updated %s", arg)
	case "delete_file":
		return fmt.Sprintf("✓ Deleted %s", arg)
	case "move_file":
		return fmt.Sprintf("✓ Moved %s", arg)
	case "read_file", "read_file_chunk":
		return fmt.Sprintf("✓ Read %s", arg)
	case "run_terminal_command", "run_script_file", "run_package_command":
		return fmt.Sprintf("✓ Ran `%s`", arg)
	default:
		return fmt.Sprintf("✓ %s completed", call.Name)
	}
}

// primaryArg extracts the most identifying argument for display.
func primaryArg(call models.ToolCall) string {
	var args map[string]any
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return call.Name
	}
	for _, key := range []string{"path", "source", "command", "query", "url", "pattern", "glob"} {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return call.Name
}

// mutatingTools are the calls after which file_tree_updated is emitted.
var mutatingTools = map[string]bool{
	"create_file": true,
	"modify_file": true,
	"patch_file":  true,
	"delete_file": true,
	"move_file":   true,
}
