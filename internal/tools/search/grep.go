package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/internal/tools/files"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// MaxGrepHits caps grep_search output lines.
const MaxGrepHits = 100

// GrepTool implements grep_search: a wrapper over the system grep binary
// for fast content search across the workspace.
type GrepTool struct {
	resolver files.Resolver
	root     string
}

// NewGrepTool creates a grep_search tool scoped to the workspace.
func NewGrepTool(cfg Config) *GrepTool {
	return &GrepTool{resolver: files.Resolver{Root: cfg.Workspace}, root: cfg.Workspace}
}

func (t *GrepTool) Name() string { return "grep_search" }

func (t *GrepTool) Description() string {
	return "Search file contents with the system grep (fast, regex-capable). Returns up to 100 matching lines."
}

func (t *GrepTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern":     map[string]any{"type": "string", "description": "Regular expression to search for."},
			"path":        map[string]any{"type": "string", "description": "Directory or file to search (default \".\")."},
			"ignore_case": map[string]any{"type": "boolean", "description": "Case-insensitive matching."},
		},
		"required": []string{"pattern"},
	})
}

func (t *GrepTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Pattern    string `json:"pattern"`
		Path       string `json:"path"`
		IgnoreCase bool   `json:"ignore_case"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return tools.ErrorResult("", "pattern is required"), nil
	}
	if input.Path == "" {
		input.Path = "."
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	grepArgs := []string{"-rn", "--binary-files=without-match",
		fmt.Sprintf("--max-count=%d", MaxGrepHits)}
	for dir := range skipDirs {
		grepArgs = append(grepArgs, "--exclude-dir="+dir)
	}
	if input.IgnoreCase {
		grepArgs = append(grepArgs, "-i")
	}
	grepArgs = append(grepArgs, "-e", input.Pattern, resolved)

	cmd := exec.CommandContext(ctx, "grep", grepArgs...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			// grep exits 1 on no matches.
			return tools.JSONResult(map[string]any{
				"pattern": input.Pattern,
				"hits":    []string{},
			}), nil
		}
		return tools.ErrorResult("", fmt.Sprintf("grep: %v", err)), nil
	}

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	truncated := false
	if len(lines) > MaxGrepHits {
		lines = lines[:MaxGrepHits]
		truncated = true
	}
	// Render hits workspace-relative.
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(strings.TrimPrefix(line, resolved), "/")
	}

	return tools.JSONResult(map[string]any{
		"pattern":   input.Pattern,
		"hits":      lines,
		"truncated": truncated,
	}), nil
}
