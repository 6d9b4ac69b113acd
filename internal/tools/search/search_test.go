package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

func run(t *testing.T, tool interface {
	Execute(context.Context, json.RawMessage) (*tools.Result, error)
}, args map[string]any) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(args)
	res, err := tool.Execute(context.Background(), payload)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool failed: %s", res.Content)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestListFilesCapsAndTruncation(t *testing.T) {
	ws := t.TempDir()
	for i := 0; i < 130; i++ {
		if err := os.WriteFile(filepath.Join(ws, fmt.Sprintf("f%03d.txt", i)), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out := run(t, NewListTool(Config{Workspace: ws}), map[string]any{})
	fileList := out["files"].([]any)
	if len(fileList) > MaxListedFiles {
		t.Errorf("listed %d files, cap is %d", len(fileList), MaxListedFiles)
	}
	if out["truncated"] != true {
		t.Error("truncated should be true when the file cap is hit")
	}
}

func TestListFilesNoTruncationUnderCap(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "only.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := run(t, NewListTool(Config{Workspace: ws}), map[string]any{})
	if out["truncated"] != false {
		t.Error("truncated should be false under the caps")
	}
}

func TestListFilesDepthBound(t *testing.T) {
	ws := t.TempDir()
	deep := filepath.Join(ws, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deep, "deep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "top.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, NewListTool(Config{Workspace: ws}), map[string]any{"max_depth": 1})
	for _, f := range out["files"].([]any) {
		if f.(string) != "top.txt" {
			t.Errorf("unexpected file beyond depth 1: %v", f)
		}
	}
}

func TestSearchFilesGlobAndContains(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "a.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "b.go"), []byte("package other"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "c.txt"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, NewSearchTool(Config{Workspace: ws}), map[string]any{"glob": "*.go", "contains": "main"})
	matches := out["matches"].([]any)
	if len(matches) != 1 || matches[0] != "a.go" {
		t.Errorf("matches = %v, want [a.go]", matches)
	}
}

func TestTreeListBounds(t *testing.T) {
	ws := t.TempDir()
	deep := filepath.Join(ws, "l1", "l2", "l3", "l4")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deep, "hidden.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, NewTreeTool(Config{Workspace: ws}), map[string]any{})
	tree := out["tree"].(string)
	if !strings.Contains(tree, "l3/") {
		t.Error("depth-3 directory should appear")
	}
	if strings.Contains(tree, "hidden.txt") {
		t.Error("depth-4 file should not appear")
	}
}

func TestSandboxViolation(t *testing.T) {
	ws := t.TempDir()
	payload, _ := json.Marshal(map[string]any{"path": "../elsewhere"})
	res, err := NewListTool(Config{Workspace: ws}).Execute(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || res.ErrorKind != models.ErrPathSandboxViolation {
		t.Fatalf("want sandbox violation, got %+v", res)
	}
}
