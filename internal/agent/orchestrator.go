// Package agent implements the Orchestrator (C6): task classification,
// prompt assembly, the bounded agentic tool-calling loop with streaming
// event emission, and the plain streaming path for non-tool tasks.
package agent

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ai-innovation-art/quasar/internal/contextmgr"
	"github.com/ai-innovation-art/quasar/internal/credentials"
	"github.com/ai-innovation-art/quasar/internal/observability"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Config tunes the orchestrator's loop and timeouts.
type Config struct {
	// MaxIterations bounds the agentic loop. Default 30.
	MaxIterations int

	// ToolTimeout bounds each tool call. Default 30s.
	ToolTimeout time.Duration

	// PackageTimeout is the extended timeout for package installs.
	// Default 180s.
	PackageTimeout time.Duration

	// ProviderTimeout bounds each model invocation. Default 60s.
	ProviderTimeout time.Duration

	// TokenChunkSize is how many characters each streamed token event
	// carries when re-streaming a collected response. Default 48.
	TokenChunkSize int
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 30
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 30 * time.Second
	}
	if c.PackageTimeout <= 0 {
		c.PackageTimeout = 180 * time.Second
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 60 * time.Second
	}
	if c.TokenChunkSize <= 0 {
		c.TokenChunkSize = 48
	}
}

// Request is one developer request with its editor context.
type Request struct {
	Query          string
	CurrentFile    string
	FileContent    string
	SelectedCode   string
	TerminalOutput string
	ErrorMessage   string

	// SelectedModel pins "<provider>/<model_key>"; when set, fallback
	// across providers is disabled.
	SelectedModel string

	// Credentials installs request-scoped credential overrides.
	Credentials map[string][]string
}

// EmitFunc receives each streamed event in causal order.
type EmitFunc func(models.Event)

// Orchestrator drives requests end to end. It is safe for concurrent
// requests; all per-request state lives on the stack of ProcessStream.
type Orchestrator struct {
	router     *routing.Router
	store      *credentials.Store
	contextMgr *contextmgr.Manager
	registry   *tools.Registry
	config     Config
	logger     *observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
}

// New creates an Orchestrator.
func New(router *routing.Router, store *credentials.Store, contextMgr *contextmgr.Manager, registry *tools.Registry, config Config, logger *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Orchestrator {
	config.applyDefaults()
	return &Orchestrator{
		router:     router,
		store:      store,
		contextMgr: contextMgr,
		registry:   registry,
		config:     config,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// ContextManager exposes the session context manager to the transport
// layer (workspace queries, websocket set_context frames).
func (o *Orchestrator) ContextManager() *contextmgr.Manager {
	return o.contextMgr
}

// Process runs a request non-streaming: events are collected internally
// and the final AgentResponse is returned.
func (o *Orchestrator) Process(ctx context.Context, req Request) *models.AgentResponse {
	return o.ProcessStream(ctx, req, func(models.Event) {})
}

// ProcessStream runs a request, emitting every intermediate event in
// causal order, and returns the final aggregate. Apart from request
// cancellation, every path ends with a done or error event.
func (o *Orchestrator) ProcessStream(ctx context.Context, req Request, emit EmitFunc) *models.AgentResponse {
	if len(req.Credentials) > 0 {
		ctx = credentials.WithOverrides(ctx, req.Credentials)
	}

	o.contextMgr.SetTaskContextWithContent(req.CurrentFile, req.FileContent, req.SelectedCode, req.ErrorMessage, req.TerminalOutput)

	classification, method := o.Classify(ctx, req.Query)
	if o.metrics != nil {
		o.metrics.RecordClassification(string(classification.TaskType), method)
	}
	emit(models.NewClassificationEvent(classification))
	ctx = context.WithValue(ctx, observability.TaskTypeKey, string(classification.TaskType))

	o.contextMgr.AddMessage(ctx, models.RoleUser, req.Query, classification.TaskType)

	var resp *models.AgentResponse
	if models.ToolEnabledTaskTypes[classification.TaskType] {
		resp = o.runLoop(ctx, req, classification.TaskType, emit)
	} else {
		resp = o.runStream(ctx, req, classification.TaskType, emit)
	}

	if o.metrics != nil {
		o.metrics.RecordRequest(string(classification.TaskType), resp.Success)
		o.metrics.RecordLoopIterations(string(classification.TaskType), resp.Iterations)
	}
	if resp.Success && resp.ResponseText != "" {
		o.contextMgr.AddMessage(ctx, models.RoleAssistant, resp.ResponseText, classification.TaskType)
	}
	if resp.Error != "" {
		o.contextMgr.RecordError(resp.Error)
	}
	return resp
}

// resolveInitial picks the starting model: the pinned selection when the
// caller set one, otherwise the first available chain entry.
func (o *Orchestrator) resolveInitial(ctx context.Context, task models.TaskType, selected string) (routing.Resolved, int, bool, error) {
	if selected != "" {
		res, err := o.router.ResolvePinned(ctx, selected)
		if err != nil {
			return routing.Resolved{}, 0, true, err
		}
		return res, 0, true, nil
	}
	res, level, ok := o.router.NextAvailable(ctx, task, 0)
	if !ok {
		return routing.Resolved{}, 0, false, routing.ErrChainExhausted
	}
	return res, level, false, nil
}

// invokeModel runs one completion under the provider timeout, recording
// metrics and a span.
func (o *Orchestrator) invokeModel(ctx context.Context, res routing.Resolved, req *providers.CompletionRequest) (*providers.Completion, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, o.config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	var completion *providers.Completion
	var err error
	if o.tracer != nil {
		spanCtx, span := o.tracer.StartModelSpan(invokeCtx, res.Entry.Provider, res.ModelName)
		completion, err = o.invokeOnce(spanCtx, res, req)
		observability.EndSpan(span, err)
	} else {
		completion, err = o.invokeOnce(invokeCtx, res, req)
	}
	if o.metrics != nil {
		o.metrics.RecordLLMRequest(res.Entry.Provider, res.ModelName, err == nil, time.Since(start))
	}
	return completion, err
}

func (o *Orchestrator) invokeOnce(ctx context.Context, res routing.Resolved, req *providers.CompletionRequest) (*providers.Completion, error) {
	attempt := *req
	attempt.Model = res.ModelName
	if attempt.MaxTokens == 0 {
		attempt.MaxTokens = res.Config.MaxTokens
	}
	ch, err := res.Model.Complete(ctx, &attempt)
	if err != nil {
		return nil, err
	}
	return providers.Collect(ctx, ch)
}

// streamText re-emits collected text as token events in small chunks.
func (o *Orchestrator) streamText(text string, emit EmitFunc) {
	size := o.config.TokenChunkSize
	for start := 0; start < len(text); start += size {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		emit(models.NewTokenEvent(text[start:end]))
	}
}

// recordSessionActivity mirrors successful tool calls into session memory.
func (o *Orchestrator) recordSessionActivity(call models.ToolCall, result models.ToolResult) {
	if !result.Success {
		o.contextMgr.RecordError(result.Content)
		return
	}
	arg := primaryArg(call)
	switch call.Name {
	case "create_file":
		o.contextMgr.RecordFileCreated(arg)
	case "modify_file", "patch_file", "move_file":
		o.contextMgr.RecordFileModified(arg)
	case "run_terminal_command", "run_script_file", "run_package_command":
		o.contextMgr.RecordCommand(arg)
	}
}

// sortedToolNames renders a tools-used set deterministically.
func sortedToolNames(used map[string]bool) []string {
	if len(used) == 0 {
		return nil
	}
	out := make([]string, 0, len(used))
	for name := range used {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// partialFailure builds the partial-success response after a terminal
// loop error, naming the tool calls that did complete.
func partialFailure(err error, task models.TaskType, res routing.Resolved, iterations, toolCalls int, used map[string]bool) *models.AgentResponse {
	text := "The request could not be completed: " + err.Error()
	if toolCalls > 0 {
		text += "\n\nBefore failing, these tools ran: " + strings.Join(sortedToolNames(used), ", ") + "."
	}
	return &models.AgentResponse{
		Success:        false,
		ResponseText:   text,
		TaskType:       task,
		Provider:       res.Entry.Provider,
		ModelUsed:      res.ModelName,
		ToolsUsed:      sortedToolNames(used),
		ToolCallsCount: toolCalls,
		Iterations:     iterations,
		Error:          err.Error(),
	}
}
