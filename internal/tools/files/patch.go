package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// PatchTool implements patch_file: find-and-replace with n-th-occurrence
// semantics. occurrence=0 replaces every match.
type PatchTool struct {
	resolver Resolver
}

// NewPatchTool creates a patch_file tool scoped to the workspace.
func NewPatchTool(cfg Config) *PatchTool {
	return &PatchTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *PatchTool) Name() string { return "patch_file" }

func (t *PatchTool) MutatesFiles() bool { return true }

func (t *PatchTool) Description() string {
	return "Replace an exact text occurrence in a file. occurrence selects which match (1-based); 0 replaces all."
}

func (t *PatchTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string", "description": "Path relative to the workspace root."},
			"find":       map[string]any{"type": "string", "description": "Exact text to find."},
			"replace":    map[string]any{"type": "string", "description": "Replacement text."},
			"occurrence": map[string]any{"type": "integer", "description": "Which occurrence to replace (1-based); 0 replaces all.", "minimum": 0},
		},
		"required": []string{"path", "find", "replace"},
	})
}

func (t *PatchTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path       string `json:"path"`
		Find       string `json:"find"`
		Replace    string `json:"replace"`
		Occurrence int    `json:"occurrence"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Find == "" {
		return tools.ErrorResult("", "find must not be empty"), nil
	}
	if input.Occurrence < 0 {
		return tools.ErrorResult("", "occurrence must be >= 0"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.ErrorResultHint(models.ErrFileNotFound,
				fmt.Sprintf("file %s does not exist", input.Path), ""), nil
		}
		return tools.ErrorResult("", fmt.Sprintf("read file: %v", err)), nil
	}

	content := string(data)
	count := strings.Count(content, input.Find)
	if count == 0 {
		return tools.ErrorResultHint("", fmt.Sprintf("text not found in %s", input.Path),
			"read the file first and copy the target text exactly, including whitespace"), nil
	}

	var patched string
	var replaced int
	if input.Occurrence == 0 {
		patched = strings.ReplaceAll(content, input.Find, input.Replace)
		replaced = count
	} else {
		if input.Occurrence > count {
			return tools.ErrorResult("", fmt.Sprintf("occurrence %d requested but only %d matches exist", input.Occurrence, count)), nil
		}
		patched = replaceNth(content, input.Find, input.Replace, input.Occurrence)
		replaced = 1
	}

	if err := os.WriteFile(resolved, []byte(patched), 0o644); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("write file: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"path":         input.Path,
		"replacements": replaced,
		"occurrences":  count,
	}), nil
}

// replaceNth replaces the n-th (1-based) occurrence of find in s.
func replaceNth(s, find, replace string, n int) string {
	idx := 0
	for i := 0; i < n; i++ {
		next := strings.Index(s[idx:], find)
		if next < 0 {
			return s
		}
		idx += next
		if i < n-1 {
			idx += len(find)
		}
	}
	return s[:idx] + replace + s[idx+len(find):]
}
