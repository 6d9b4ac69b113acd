package search

import (
	"bufio"
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

// MaxSearchMatches caps search_files results.
const MaxSearchMatches = 100

// SearchTool implements search_files: filename glob matching plus
// optional substring matching inside candidate files.
type SearchTool struct {
	resolver files.Resolver
}

// NewSearchTool creates a search_files tool scoped to the workspace.
func NewSearchTool(cfg Config) *SearchTool {
	return &SearchTool{resolver: files.Resolver{Root: cfg.Workspace}}
}

func (t *SearchTool) Name() string { return "search_files" }

func (t *SearchTool) Description() string {
	return "Find files by name glob (e.g. *.go) and optionally filter to those containing a substring."
}

func (t *SearchTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"glob":     map[string]any{"type": "string", "description": "Filename glob pattern, matched against base names."},
			"contains": map[string]any{"type": "string", "description": "Only return files whose content contains this substring."},
			"path":     map[string]any{"type": "string", "description": "Directory to search under (default \".\")."},
		},
		"required": []string{"glob"},
	})
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Glob     string `json:"glob"`
		Contains string `json:"contains"`
		Path     string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Glob) == "" {
		return tools.ErrorResult("", "glob is required"), nil
	}
	if input.Path == "" {
		input.Path = "."
	}

	root, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	var matches []string
	truncated := false
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ok, matchErr := filepath.Match(input.Glob, d.Name())
		if matchErr != nil {
			return matchErr
		}
		if !ok {
			return nil
		}
		if input.Contains != "" && !fileContains(path, input.Contains) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if len(matches) >= MaxSearchMatches {
			truncated = true
			return fs.SkipAll
		}
		matches = append(matches, rel)
		return nil
	})
	if err != nil && err != context.Canceled {
		return tools.ErrorResult("", fmt.Sprintf("search files: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"glob":      input.Glob,
		"matches":   matches,
		"truncated": truncated,
	}), nil
}

// fileContains streams the file looking for the substring, without
// loading arbitrarily large files fully into memory.
func fileContains(path, substr string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), substr) {
			return true
		}
	}
	return false
}
