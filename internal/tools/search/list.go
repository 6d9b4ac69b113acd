// Package search implements the read-only workspace discovery tools:
// list_files, search_files, grep_search, and tree_list.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/internal/tools/files"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Listing caps. list_files never returns more entries than these; the
// result carries truncated=true when either cap is hit.
const (
	MaxListedFiles = 100
	MaxListedDirs  = 50
)

// skipDirs are directories never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
}

// Config scopes the search tools to a workspace.
type Config struct {
	Workspace string
}

// ListTool implements list_files: a depth-bounded directory listing.
type ListTool struct {
	resolver files.Resolver
}

// NewListTool creates a list_files tool scoped to the workspace.
func NewListTool(cfg Config) *ListTool {
	return &ListTool{resolver: files.Resolver{Root: cfg.Workspace}}
}

func (t *ListTool) Name() string { return "list_files" }

func (t *ListTool) Description() string {
	return "List files and directories under a path, depth-bounded. Caps at 100 files and 50 directories."
}

func (t *ListTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string", "description": "Directory relative to the workspace root (default \".\")."},
			"max_depth": map[string]any{"type": "integer", "description": "How deep to descend (default 2).", "minimum": 1},
		},
	})
}

func (t *ListTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path     string `json:"path"`
		MaxDepth int    `json:"max_depth"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Path == "" {
		input.Path = "."
	}
	if input.MaxDepth <= 0 {
		input.MaxDepth = 2
	}

	root, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}
	if info, statErr := os.Stat(root); statErr != nil {
		return tools.ErrorResultHint(models.ErrFileNotFound,
			fmt.Sprintf("directory %s does not exist", input.Path), ""), nil
	} else if !info.IsDir() {
		return tools.ErrorResult("", fmt.Sprintf("%s is not a directory", input.Path)), nil
	}

	var fileList, dirList []string
	truncated := false

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(rel, string(os.PathSeparator)) + 1
		if d.IsDir() {
			if skipDirs[d.Name()] || depth > input.MaxDepth {
				return filepath.SkipDir
			}
			if len(dirList) >= MaxListedDirs {
				truncated = true
				return filepath.SkipDir
			}
			dirList = append(dirList, rel+"/")
			return nil
		}
		if depth > input.MaxDepth {
			return nil
		}
		if len(fileList) >= MaxListedFiles {
			truncated = true
			return fs.SkipAll
		}
		fileList = append(fileList, rel)
		return nil
	})
	if err != nil {
		return tools.ErrorResult("", fmt.Sprintf("list files: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"path":      input.Path,
		"files":     fileList,
		"dirs":      dirList,
		"truncated": truncated,
	}), nil
}

func mustSchema(v map[string]any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"object"}`)
	}
	return payload
}
