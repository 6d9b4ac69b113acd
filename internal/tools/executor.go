package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ai-innovation-art/quasar/internal/observability"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Formatting caps applied to successful tool output before it reaches the
// model. File-content results get the larger cap.
const (
	MaxFileContentChars = 30000
	MaxResultChars      = 10000
	truncatedTag        = "\n[TRUNCATED]"
)

// fileContentTools are the tools whose results are file contents and get
// the larger truncation cap.
var fileContentTools = map[string]bool{
	"read_file":       true,
	"read_file_chunk": true,
}

// ExecutorConfig tunes dispatch behavior.
type ExecutorConfig struct {
	// Timeout bounds each tool call. Default 30s.
	Timeout time.Duration

	// ExtendedTimeout applies to long-running tools such as package
	// installs. Default 180s.
	ExtendedTimeout time.Duration
}

// extendedTimeoutTools run under ExtendedTimeout instead of Timeout.
var extendedTimeoutTools = map[string]bool{
	"run_package_command": true,
}

// Record is one entry of the executor's per-request history.
type Record struct {
	ToolName   string
	Success    bool
	DurationMS int64
}

// Executor dispatches tool calls sequentially with per-call timeouts. It
// is created per request and holds no state beyond that request.
type Executor struct {
	registry *Registry
	config   ExecutorConfig
	history  []Record
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewExecutor creates an executor over a registry. Zero config fields get
// defaults.
func NewExecutor(registry *Registry, config ExecutorConfig, logger *observability.Logger, metrics *observability.Metrics) *Executor {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ExtendedTimeout <= 0 {
		config.ExtendedTimeout = 180 * time.Second
	}
	return &Executor{registry: registry, config: config, logger: logger, metrics: metrics}
}

// History returns the execution records accumulated this request.
func (e *Executor) History() []Record {
	out := make([]Record, len(e.history))
	copy(out, e.history)
	return out
}

// Execute dispatches a single tool call: resolve, run under timeout,
// format, record. Failures are returned as unsuccessful ToolResults, not
// Go errors, so the model can observe and react to them.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	start := time.Now()
	result := e.dispatch(ctx, call)
	result.ToolCallID = call.ID
	result.ToolName = call.Name
	result.DurationMS = time.Since(start).Milliseconds()

	e.history = append(e.history, Record{ToolName: call.Name, Success: result.Success, DurationMS: result.DurationMS})
	if e.metrics != nil {
		e.metrics.RecordToolExecution(call.Name, result.Success, time.Since(start))
	}
	if e.logger != nil {
		if result.Success {
			e.logger.Debug(ctx, "tool executed", "tool", call.Name, "duration_ms", result.DurationMS)
		} else {
			e.logger.Warn(ctx, "tool failed", "tool", call.Name, "error_kind", string(result.ErrorKind), "duration_ms", result.DurationMS)
		}
	}
	return result
}

func (e *Executor) dispatch(ctx context.Context, call models.ToolCall) models.ToolResult {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return models.ToolResult{
			Success:   false,
			ErrorKind: models.ErrUnknownTool,
			Content:   fmt.Sprintf("unknown tool %q; available tools: %s", call.Name, strings.Join(e.registry.Names(), ", ")),
		}
	}

	timeout := e.config.Timeout
	if extendedTimeoutTools[call.Name] {
		timeout = e.config.ExtendedTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		args := call.Args
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		res, err := tool.Execute(callCtx, args)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Request-level cancellation, not a per-tool timeout.
			return models.ToolResult{Success: false, Content: "request cancelled"}
		}
		return models.ToolResult{
			Success:   false,
			ErrorKind: models.ErrToolTimeout,
			Content:   fmt.Sprintf("tool %s timed out after %s", call.Name, timeout),
		}
	case out := <-done:
		if out.err != nil {
			return models.ToolResult{Success: false, Content: out.err.Error()}
		}
		if out.result == nil {
			return models.ToolResult{Success: false, Content: "tool returned no result"}
		}
		if out.result.IsError {
			return models.ToolResult{
				Success:   false,
				ErrorKind: out.result.ErrorKind,
				Content:   out.result.Content,
				Hint:      out.result.Hint,
			}
		}
		return models.ToolResult{
			Success: true,
			Content: Truncate(call.Name, out.result.Content),
			Hint:    out.result.Hint,
		}
	}
}

// Truncate applies the per-kind formatting cap, tagging cut content.
func Truncate(toolName, content string) string {
	limit := MaxResultChars
	if fileContentTools[toolName] {
		limit = MaxFileContentChars
	}
	if len(content) <= limit {
		return content
	}
	return content[:limit] + truncatedTag
}
