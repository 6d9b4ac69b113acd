package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

type stubTool struct {
	name    string
	execute func(ctx context.Context, args json.RawMessage) (*Result, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Schema() []byte      { return []byte(`{"type":"object"}`) }
func (t *stubTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	return t.execute(ctx, args)
}

func newTestExecutor(cfg ExecutorConfig, tools ...Tool) *Executor {
	registry := NewRegistry()
	for _, t := range tools {
		registry.Register(t)
	}
	return NewExecutor(registry, cfg, nil, nil)
}

func TestUnknownToolListsAvailable(t *testing.T) {
	exec := newTestExecutor(ExecutorConfig{},
		&stubTool{name: "read_file", execute: func(ctx context.Context, args json.RawMessage) (*Result, error) {
			return &Result{Content: "ok"}, nil
		}})

	res := exec.Execute(context.Background(), models.ToolCall{ID: "1", Name: "nope"})
	if res.Success || res.ErrorKind != models.ErrUnknownTool {
		t.Fatalf("want UnknownTool failure, got %+v", res)
	}
	if !strings.Contains(res.Content, "read_file") {
		t.Error("unknown-tool message should list available tools")
	}
}

func TestTimeoutProducesTimeoutResult(t *testing.T) {
	exec := newTestExecutor(ExecutorConfig{Timeout: 50 * time.Millisecond},
		&stubTool{name: "slow", execute: func(ctx context.Context, args json.RawMessage) (*Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &Result{Content: "too late"}, nil
			}
		}})

	res := exec.Execute(context.Background(), models.ToolCall{ID: "1", Name: "slow"})
	if res.Success || res.ErrorKind != models.ErrToolTimeout {
		t.Fatalf("want ToolTimeout, got %+v", res)
	}
	if !strings.Contains(res.Content, "timed out") {
		t.Errorf("timeout message = %q", res.Content)
	}
}

func TestTruncationCaps(t *testing.T) {
	long := strings.Repeat("x", 50000)

	fileOut := Truncate("read_file", long)
	if len(fileOut) != MaxFileContentChars+len(truncatedTag) {
		t.Errorf("file content truncated to %d", len(fileOut))
	}
	if !strings.HasSuffix(fileOut, "[TRUNCATED]") {
		t.Error("file content missing [TRUNCATED] tag")
	}

	otherOut := Truncate("list_files", long)
	if len(otherOut) != MaxResultChars+len(truncatedTag) {
		t.Errorf("structured result truncated to %d", len(otherOut))
	}

	short := "short"
	if Truncate("read_file", short) != short {
		t.Error("short content must pass through untouched")
	}
}

func TestHistoryRecordsOutcomes(t *testing.T) {
	exec := newTestExecutor(ExecutorConfig{},
		&stubTool{name: "ok", execute: func(ctx context.Context, args json.RawMessage) (*Result, error) {
			return &Result{Content: "fine"}, nil
		}},
		&stubTool{name: "bad", execute: func(ctx context.Context, args json.RawMessage) (*Result, error) {
			return &Result{Content: "broken", IsError: true}, nil
		}})

	exec.Execute(context.Background(), models.ToolCall{ID: "1", Name: "ok"})
	exec.Execute(context.Background(), models.ToolCall{ID: "2", Name: "bad"})

	history := exec.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if !history[0].Success || history[1].Success {
		t.Errorf("history outcomes wrong: %+v", history)
	}
}

func TestSubsetPreservesOrderAndSkipsUnknown(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		n := name
		registry.Register(&stubTool{name: n, execute: func(ctx context.Context, args json.RawMessage) (*Result, error) {
			return &Result{Content: n}, nil
		}})
	}
	sub := registry.Subset([]string{"c", "missing", "a"})
	names := sub.Names()
	if len(names) != 2 || names[0] != "c" || names[1] != "a" {
		t.Errorf("subset names = %v", names)
	}
}
