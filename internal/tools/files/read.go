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

// LargeFileLineThreshold is the line count above which read_file refuses
// to return content and hands back metadata instead; the model is
// expected to follow up with read_file_chunk.
const LargeFileLineThreshold = 2000

// Config scopes the file tools to a workspace.
type Config struct {
	Workspace string
}

// ReadTool implements read_file: whole-file reads with the large-file
// refusal contract.
type ReadTool struct {
	resolver Resolver
}

// NewReadTool creates a read_file tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	return &ReadTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ReadTool) Name() string { return "read_file" }

func (t *ReadTool) Description() string {
	return "Read a file from the workspace. Files over 2000 lines return metadata only; use read_file_chunk for those."
}

func (t *ReadTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Path relative to the workspace root."},
		},
		"required": []string{"path"},
	})
}

func (t *ReadTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.ErrorResultHint(models.ErrFileNotFound,
				fmt.Sprintf("file %s does not exist", input.Path),
				"use list_files or search_files to locate the file"), nil
		}
		return tools.ErrorResult("", fmt.Sprintf("read file: %v", err)), nil
	}

	content := string(data)
	lines := countLines(content)
	if lines > LargeFileLineThreshold {
		return tools.JSONResult(map[string]any{
			"path":          input.Path,
			"lines":         lines,
			"size":          len(data),
			"is_large_file": true,
			"hint":          fmt.Sprintf("file has %d lines; read it in chunks with read_file_chunk(path, start_line, end_line)", lines),
		}), nil
	}

	return tools.JSONResult(map[string]any{
		"path":    input.Path,
		"content": content,
		"lines":   lines,
		"size":    len(data),
	}), nil
}

// ReadChunkTool implements read_file_chunk: explicit line-range reads of
// large files.
type ReadChunkTool struct {
	resolver Resolver
}

// NewReadChunkTool creates a read_file_chunk tool scoped to the workspace.
func NewReadChunkTool(cfg Config) *ReadChunkTool {
	return &ReadChunkTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ReadChunkTool) Name() string { return "read_file_chunk" }

func (t *ReadChunkTool) Description() string {
	return "Read a line range of a file. Line numbers are 1-based and inclusive."
}

func (t *ReadChunkTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string", "description": "Path relative to the workspace root."},
			"start_line": map[string]any{"type": "integer", "description": "First line to read (1-based).", "minimum": 1},
			"end_line":   map[string]any{"type": "integer", "description": "Last line to read (inclusive).", "minimum": 1},
		},
		"required": []string{"path", "start_line", "end_line"},
	})
}

func (t *ReadChunkTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.StartLine < 1 {
		input.StartLine = 1
	}
	if input.EndLine < input.StartLine {
		return tools.ErrorResult("", "end_line must be >= start_line"), nil
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

	lines := splitLines(string(data))
	total := len(lines)
	if input.StartLine > total {
		return tools.ErrorResult("", fmt.Sprintf("start_line %d is past the end of the file (%d lines)", input.StartLine, total)), nil
	}
	end := input.EndLine
	if end > total {
		end = total
	}
	chunk := strings.Join(lines[input.StartLine-1:end], "\n")

	return tools.JSONResult(map[string]any{
		"path":            input.Path,
		"content":         chunk,
		"start_line":      input.StartLine,
		"end_line":        end,
		"total_lines":     total,
		"has_more_before": input.StartLine > 1,
		"has_more_after":  end < total,
	}), nil
}

// countLines counts lines the way an editor displays them: a trailing
// newline does not start an extra line.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	return len(splitLines(content))
}

func splitLines(content string) []string {
	trimmed := strings.TrimSuffix(content, "\n")
	if trimmed == "" && content != "" {
		return []string{""}
	}
	return strings.Split(trimmed, "\n")
}

func mustSchema(v map[string]any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"object"}`)
	}
	return payload
}
