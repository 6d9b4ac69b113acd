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

// CreateTool implements create_file: writes a new file, refusing to
// overwrite an existing one unless explicitly asked.
type CreateTool struct {
	resolver Resolver
}

// NewCreateTool creates a create_file tool scoped to the workspace.
func NewCreateTool(cfg Config) *CreateTool {
	return &CreateTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *CreateTool) Name() string { return "create_file" }

func (t *CreateTool) MutatesFiles() bool { return true }

func (t *CreateTool) Description() string {
	return "Create a new file with the given content. Fails if the file exists unless overwrite is true."
}

func (t *CreateTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string", "description": "Path relative to the workspace root."},
			"content":   map[string]any{"type": "string", "description": "Full file content."},
			"overwrite": map[string]any{"type": "boolean", "description": "Replace an existing file (default false)."},
		},
		"required": []string{"path", "content"},
	})
}

func (t *CreateTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path      string `json:"path"`
		Content   string `json:"content"`
		Overwrite bool   `json:"overwrite"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	if _, statErr := os.Stat(resolved); statErr == nil && !input.Overwrite {
		return tools.ErrorResultHint(models.ErrAlreadyExists,
			fmt.Sprintf("file %s already exists", input.Path),
			"pass overwrite=true to replace it, or use patch_file for targeted edits"), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("create parent directory: %v", err)), nil
	}
	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("write file: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"path":    input.Path,
		"created": true,
		"bytes":   len(input.Content),
	}), nil
}

// ModifyTool implements modify_file: full-content replacement of an
// existing file.
type ModifyTool struct {
	resolver Resolver
}

// NewModifyTool creates a modify_file tool scoped to the workspace.
func NewModifyTool(cfg Config) *ModifyTool {
	return &ModifyTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ModifyTool) Name() string { return "modify_file" }

func (t *ModifyTool) MutatesFiles() bool { return true }

func (t *ModifyTool) Description() string {
	return "Replace the full content of an existing file. Prefer patch_file for small edits."
}

func (t *ModifyTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Path relative to the workspace root."},
			"content": map[string]any{"type": "string", "description": "New full file content."},
		},
		"required": []string{"path", "content"},
	})
}

func (t *ModifyTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	if _, statErr := os.Stat(resolved); statErr != nil {
		if os.IsNotExist(statErr) {
			return tools.ErrorResultHint(models.ErrFileNotFound,
				fmt.Sprintf("file %s does not exist", input.Path),
				"use create_file to create a new file"), nil
		}
		return tools.ErrorResult("", fmt.Sprintf("stat file: %v", statErr)), nil
	}

	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("write file: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"path":     input.Path,
		"modified": true,
		"bytes":    len(input.Content),
	}), nil
}
