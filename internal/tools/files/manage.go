package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// DeleteTool implements delete_file: removes a file, or a directory when
// recursive is explicitly requested.
type DeleteTool struct {
	resolver Resolver
}

// NewDeleteTool creates a delete_file tool scoped to the workspace.
func NewDeleteTool(cfg Config) *DeleteTool {
	return &DeleteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *DeleteTool) Name() string { return "delete_file" }

func (t *DeleteTool) MutatesFiles() bool { return true }

func (t *DeleteTool) Description() string {
	return "Delete a file. Directories require recursive=true."
}

func (t *DeleteTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string", "description": "Path relative to the workspace root."},
			"recursive": map[string]any{"type": "boolean", "description": "Delete a directory and its contents (default false)."},
		},
		"required": []string{"path"},
	})
}

func (t *DeleteTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.ErrorResultHint(models.ErrFileNotFound,
				fmt.Sprintf("path %s does not exist", input.Path), ""), nil
		}
		return tools.ErrorResult("", fmt.Sprintf("stat path: %v", err)), nil
	}

	if info.IsDir() {
		if !input.Recursive {
			return tools.ErrorResult("", fmt.Sprintf("%s is a directory; pass recursive=true to delete it", input.Path)), nil
		}
		if err := os.RemoveAll(resolved); err != nil {
			return tools.ErrorResult("", fmt.Sprintf("delete directory: %v", err)), nil
		}
	} else if err := os.Remove(resolved); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("delete file: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"path":    input.Path,
		"deleted": true,
		"was_dir": info.IsDir(),
	}), nil
}

// MoveTool implements move_file: rename or move within the workspace.
type MoveTool struct {
	resolver Resolver
}

// NewMoveTool creates a move_file tool scoped to the workspace.
func NewMoveTool(cfg Config) *MoveTool {
	return &MoveTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *MoveTool) Name() string { return "move_file" }

func (t *MoveTool) MutatesFiles() bool { return true }

func (t *MoveTool) Description() string {
	return "Move or rename a file within the workspace."
}

func (t *MoveTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source":      map[string]any{"type": "string", "description": "Current path relative to the workspace root."},
			"destination": map[string]any{"type": "string", "description": "New path relative to the workspace root."},
		},
		"required": []string{"source", "destination"},
	})
}

func (t *MoveTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	src, err := t.resolver.Resolve(input.Source)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}
	dst, err := t.resolver.Resolve(input.Destination)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return tools.ErrorResultHint(models.ErrFileNotFound,
				fmt.Sprintf("source %s does not exist", input.Source), ""), nil
		}
		return tools.ErrorResult("", fmt.Sprintf("stat source: %v", err)), nil
	}
	if _, err := os.Stat(dst); err == nil {
		return tools.ErrorResultHint(models.ErrAlreadyExists,
			fmt.Sprintf("destination %s already exists", input.Destination),
			"delete the destination first, or choose another name"), nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("create destination directory: %v", err)), nil
	}
	if err := os.Rename(src, dst); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("move file: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"source":      input.Source,
		"destination": input.Destination,
		"moved":       true,
	}), nil
}
