package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/internal/tools/files"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Tree listing bounds.
const (
	MaxTreeDepth   = 3
	MaxTreeEntries = 500
)

// TreeTool implements tree_list: a fast os-level directory tree using
// ReadDir, depth-capped and entry-capped.
type TreeTool struct {
	resolver files.Resolver
}

// NewTreeTool creates a tree_list tool scoped to the workspace.
func NewTreeTool(cfg Config) *TreeTool {
	return &TreeTool{resolver: files.Resolver{Root: cfg.Workspace}}
}

func (t *TreeTool) Name() string { return "tree_list" }

func (t *TreeTool) Description() string {
	return "Render a directory tree up to 3 levels deep, capped at 500 entries."
}

func (t *TreeTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Directory relative to the workspace root (default \".\")."},
		},
	})
}

func (t *TreeTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Path == "" {
		input.Path = "."
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

	var b strings.Builder
	entries := 0
	truncated := walkTree(root, "", 1, &b, &entries)

	return tools.JSONResult(map[string]any{
		"path":      input.Path,
		"tree":      b.String(),
		"entries":   entries,
		"truncated": truncated,
	}), nil
}

func walkTree(dir, indent string, depth int, b *strings.Builder, entries *int) bool {
	if depth > MaxTreeDepth {
		return false
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	sort.Slice(dirEntries, func(i, j int) bool {
		if dirEntries[i].IsDir() != dirEntries[j].IsDir() {
			return dirEntries[i].IsDir()
		}
		return dirEntries[i].Name() < dirEntries[j].Name()
	})
	truncated := false
	for _, entry := range dirEntries {
		if *entries >= MaxTreeEntries {
			return true
		}
		if entry.IsDir() && skipDirs[entry.Name()] {
			continue
		}
		*entries++
		if entry.IsDir() {
			fmt.Fprintf(b, "%s%s/\n", indent, entry.Name())
			if walkTree(filepath.Join(dir, entry.Name()), indent+"  ", depth+1, b, entries) {
				truncated = true
			}
		} else {
			fmt.Fprintf(b, "%s%s\n", indent, entry.Name())
		}
	}
	return truncated
}
