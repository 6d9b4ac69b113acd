// Package tools implements the Tool Registry and Executor (C5): a
// catalogue of named tools with typed schemas, dispatched with per-call
// timeouts and context-safe result formatting.
package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Tool is one named capability the model may invoke.
type Tool interface {
	Name() string
	Description() string
	Schema() []byte
	Execute(ctx context.Context, args json.RawMessage) (*Result, error)
}

// Result is the raw outcome of a tool handler, before the executor
// formats and truncates it for the model.
type Result struct {
	Content   string
	IsError   bool
	ErrorKind models.ErrorKind
	Hint      string
}

// FileMutator marks tools whose success changes the workspace file tree;
// the orchestrator emits file_tree_updated after them.
type FileMutator interface {
	MutatesFiles() bool
}

// Mutates reports whether a tool mutates the file tree.
func Mutates(t Tool) bool {
	m, ok := t.(FileMutator)
	return ok && m.MutatesFiles()
}

// Registry is a thread-safe catalogue of tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool; a tool with the same name is replaced.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns the tools in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Subset returns a new registry holding only the named tools, in the
// given order. Unknown names are skipped.
func (r *Registry) Subset(names []string) *Registry {
	sub := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			sub.Register(t)
		}
	}
	return sub
}

// ErrorResult builds a failed Result with an error kind.
func ErrorResult(kind models.ErrorKind, msg string) *Result {
	return &Result{Content: msg, IsError: true, ErrorKind: kind}
}

// ErrorResultHint builds a failed Result carrying a recovery hint.
func ErrorResultHint(kind models.ErrorKind, msg, hint string) *Result {
	return &Result{Content: msg, IsError: true, ErrorKind: kind, Hint: hint}
}

// JSONResult marshals v into a successful Result. Marshal failures are
// reported as tool errors, never panics.
func JSONResult(v any) *Result {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &Result{Content: "encode result: " + err.Error(), IsError: true}
	}
	return &Result{Content: string(payload)}
}
