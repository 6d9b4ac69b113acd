// Package files implements the workspace-sandboxed file tools: reads
// (whole and chunked), create, modify, patch, delete, and move.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves and validates workspace-relative paths. Every file
// tool routes its path argument through Resolve before any I/O; a path
// that escapes the workspace is rejected here.
type Resolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path inside the workspace root.
// Arguments containing ".." are rejected outright, and any resolved path
// outside the root fails regardless of how it was spelled.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return "", fmt.Errorf("path %q escapes workspace", path)
		}
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes workspace", path)
	}
	return targetAbs, nil
}

// Rel renders an absolute path workspace-relative for display.
func (r Resolver) Rel(abs string) string {
	rootAbs, err := filepath.Abs(r.Root)
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return abs
	}
	return rel
}
