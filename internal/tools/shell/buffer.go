package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ai-innovation-art/quasar/internal/tools"
)

// bufferCapacity is how many command records the terminal buffer retains.
const bufferCapacity = 20

// Buffer retains the output of recent commands so the model can consult
// what the terminal last showed.
type Buffer struct {
	mu      sync.Mutex
	records []bufferRecord
}

type bufferRecord struct {
	Command string `json:"command"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

// NewBuffer creates an empty terminal buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append records a command and its output, evicting the oldest entry
// beyond capacity.
func (b *Buffer) Append(command, stdout, stderr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, bufferRecord{Command: command, Stdout: stdout, Stderr: stderr})
	if len(b.records) > bufferCapacity {
		b.records = b.records[len(b.records)-bufferCapacity:]
	}
}

// Render formats the most recent n records.
func (b *Buffer) Render(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	records := b.records
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	var out strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&out, "$ %s\n", rec.Command)
		if rec.Stdout != "" {
			out.WriteString(rec.Stdout)
			if !strings.HasSuffix(rec.Stdout, "\n") {
				out.WriteString("\n")
			}
		}
		if rec.Stderr != "" {
			out.WriteString(rec.Stderr)
			if !strings.HasSuffix(rec.Stderr, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}

// BufferTool implements get_terminal_buffer.
type BufferTool struct {
	buffer *Buffer
}

// NewBufferTool creates a get_terminal_buffer tool over a shared buffer.
func NewBufferTool(buffer *Buffer) *BufferTool {
	return &BufferTool{buffer: buffer}
}

func (t *BufferTool) Name() string { return "get_terminal_buffer" }

func (t *BufferTool) Description() string {
	return "Return the output of recent terminal commands run this session."
}

func (t *BufferTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"last": map[string]any{"type": "integer", "description": "How many recent commands to include (default all retained).", "minimum": 1},
		},
	})
}

func (t *BufferTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Last int `json:"last"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	rendered := t.buffer.Render(input.Last)
	if rendered == "" {
		rendered = "(terminal buffer is empty)"
	}
	return &tools.Result{Content: rendered}, nil
}
