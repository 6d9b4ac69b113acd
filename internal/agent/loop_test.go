package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ai-innovation-art/quasar/internal/contextmgr"
	"github.com/ai-innovation-art/quasar/internal/credentials"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/internal/tools/catalog"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// turn scripts one model response: either an error, or text plus
// optional tool calls.
type turn struct {
	text  string
	calls []models.ToolCall
	err   error
}

type scriptedModel struct {
	provider string
	turns    []turn
	idx      int
	requests []*providers.CompletionRequest
}

func (m *scriptedModel) Provider() string    { return m.provider }
func (m *scriptedModel) SupportsTools() bool { return true }

func (m *scriptedModel) Complete(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.CompletionChunk, error) {
	m.requests = append(m.requests, req)
	idx := m.idx
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	m.idx++
	scripted := m.turns[idx]
	if scripted.err != nil {
		return nil, scripted.err
	}
	ch := make(chan *providers.CompletionChunk, len(scripted.calls)+2)
	if scripted.text != "" {
		ch <- &providers.CompletionChunk{Text: scripted.text}
	}
	for i := range scripted.calls {
		ch <- &providers.CompletionChunk{ToolCall: &scripted.calls[i]}
	}
	ch <- &providers.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

type fakeSource struct {
	models map[string]*scriptedModel
}

func (s *fakeSource) GetModel(ctx context.Context, provider, modelName string, temperature float64) (providers.ChatModel, bool) {
	m, ok := s.models[provider]
	return m, ok
}

func testTables() map[string]map[string]routing.ModelConfig {
	return map[string]map[string]routing.ModelConfig{
		"alpha": {"fast": {ModelName: "alpha-8b", Temperature: 0.3, MaxTokens: 1024}},
		"beta":  {"fast": {ModelName: "beta-8b", Temperature: 0.3, MaxTokens: 1024}},
	}
}

type fixture struct {
	orch   *Orchestrator
	store  *credentials.Store
	events []models.Event
	ws     string
}

func (f *fixture) emit(e models.Event) { f.events = append(f.events, e) }

func (f *fixture) eventsOfType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newFixture(t *testing.T, chains map[models.TaskType][]routing.ChainEntry, source *fakeSource, creds map[string][]string, cfg Config) *fixture {
	t.Helper()
	ws := t.TempDir()
	store := credentials.NewStore()
	for provider, keys := range creds {
		store.Register(provider, keys)
	}
	router := routing.New(source, store, chains, testTables(), nil)
	manager := contextmgr.NewManager(ws)
	registry := catalog.Build(catalog.Config{Workspace: ws})
	orch := New(router, store, manager, registry, cfg, nil, nil, nil)
	return &fixture{orch: orch, store: store, ws: ws}
}

func toolCallJSON(name string, args map[string]any) models.ToolCall {
	payload, _ := json.Marshal(args)
	return models.ToolCall{ID: "call-" + name, Name: name, Args: payload}
}

func TestCreateFileScenario(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{calls: []models.ToolCall{toolCallJSON("create_file", map[string]any{
			"path":    "hello.py",
			"content": "print('hi')\n",
		})}},
		{text: "Created hello.py with a print statement."},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		map[string][]string{"alpha": {"key"}},
		Config{},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{Query: "Create hello.py that prints hi"}, f.emit)

	if !resp.Success {
		t.Fatalf("response failed: %s", resp.Error)
	}
	data, err := os.ReadFile(filepath.Join(f.ws, "hello.py"))
	if err != nil || string(data) != "print('hi')\n" {
		t.Fatalf("hello.py = %q, %v", data, err)
	}
	if resp.ToolCallsCount != 1 || resp.Iterations != 2 {
		t.Errorf("tool_calls=%d iterations=%d", resp.ToolCallsCount, resp.Iterations)
	}
	if len(resp.ToolsUsed) != 1 || resp.ToolsUsed[0] != "create_file" {
		t.Errorf("tools used = %v", resp.ToolsUsed)
	}

	if f.events[0].Type != models.EventClassification {
		t.Error("classification must be the first event")
	}
	if f.events[len(f.events)-1].Type != models.EventDone {
		t.Error("done must be the final event")
	}
	if len(f.eventsOfType(models.EventFileTreeUpdated)) != 1 {
		t.Error("file_tree_updated missing after the mutating tool")
	}
}

func TestToolStartCompletePairing(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{calls: []models.ToolCall{
			toolCallJSON("create_file", map[string]any{"path": "a.txt", "content": "1"}),
			toolCallJSON("create_file", map[string]any{"path": "b.txt", "content": "2"}),
		}},
		{calls: []models.ToolCall{toolCallJSON("read_file", map[string]any{"path": "a.txt"})}},
		{text: "done"},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		map[string][]string{"alpha": {"key"}},
		Config{},
	)

	f.orch.ProcessStream(context.Background(), Request{Query: "generate two files"}, f.emit)

	starts := f.eventsOfType(models.EventToolStart)
	completes := f.eventsOfType(models.EventToolComplete)
	if len(starts) != 3 || len(completes) != 3 {
		t.Fatalf("starts=%d completes=%d, want 3 each", len(starts), len(completes))
	}
	// Each tool_start must be succeeded by its matching tool_complete
	// before the next tool_start.
	pending := ""
	for _, e := range f.events {
		switch e.Type {
		case models.EventToolStart:
			if pending != "" {
				t.Fatalf("tool_start for %s while %s still pending", e.ToolCall.ID, pending)
			}
			pending = e.ToolCall.ID
		case models.EventToolComplete:
			if e.ToolCall.ID != pending {
				t.Fatalf("tool_complete %s does not match pending %s", e.ToolCall.ID, pending)
			}
			pending = ""
		}
	}
}

func TestRateLimitRotationStaysOnProvider(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{err: errors.New("429 rate limit exceeded")},
		{text: "answer from alpha"},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}, {Provider: "beta", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		map[string][]string{"alpha": {"key1", "key2"}, "beta": {"key"}},
		Config{},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{Query: "create a widget"}, f.emit)

	if !resp.Success || resp.Provider != "alpha" {
		t.Fatalf("provider = %q success=%v err=%s", resp.Provider, resp.Success, resp.Error)
	}
	if resp.Iterations != 1 {
		t.Errorf("iterations = %d, want 1 (retried iteration does not count twice)", resp.Iterations)
	}
}

func TestRateLimitFallbackToNextProvider(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{err: errors.New("429 rate limit exceeded")},
	}}
	beta := &scriptedModel{provider: "beta", turns: []turn{
		{text: "answer from beta"},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}, {Provider: "beta", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha, "beta": beta}},
		map[string][]string{"alpha": {"only-key"}, "beta": {"key"}},
		Config{},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{Query: "create a widget"}, f.emit)

	if !resp.Success || resp.Provider != "beta" {
		t.Fatalf("provider = %q, want beta (err=%s)", resp.Provider, resp.Error)
	}
	switchSeen := false
	for _, e := range f.eventsOfType(models.EventMessage) {
		if strings.Contains(e.Content, "Switching") {
			switchSeen = true
		}
	}
	if !switchSeen {
		t.Error("a message event should explain the provider switch")
	}
}

func TestPinnedModelNeverCrossesProviders(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{err: errors.New("429 rate limit exceeded")},
	}}
	beta := &scriptedModel{provider: "beta", turns: []turn{
		{text: "should never be used"},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}, {Provider: "beta", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha, "beta": beta}},
		map[string][]string{"alpha": {"only-key"}, "beta": {"key"}},
		Config{},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{
		Query:         "create a widget",
		SelectedModel: "alpha/fast",
	}, f.emit)

	if resp.Success {
		t.Fatal("pinned request must fail instead of crossing providers")
	}
	if len(beta.requests) != 0 {
		t.Error("beta must not be invoked for a pinned alpha request")
	}
	if len(f.eventsOfType(models.EventError)) == 0 {
		t.Error("a terminal error event is required")
	}
}

func TestLoopDetectionScenario(t *testing.T) {
	listCall := toolCallJSON("list_files", map[string]any{"path": "."})
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{calls: []models.ToolCall{listCall}},
		{calls: []models.ToolCall{listCall}},
		{calls: []models.ToolCall{listCall}},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskBugFixing: {{Provider: "alpha", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		map[string][]string{"alpha": {"key"}},
		Config{},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{Query: "fix the listing bug"}, f.emit)

	if !resp.LoopDetected {
		t.Fatal("loop must be detected")
	}
	if resp.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", resp.Iterations)
	}
	done := f.eventsOfType(models.EventDone)
	if len(done) != 1 || !done[0].LoopDetected {
		t.Fatalf("done event = %+v", done)
	}
	repetitive := false
	for _, e := range f.eventsOfType(models.EventMessage) {
		if strings.Contains(strings.ToLower(e.Content), "repetitive") {
			repetitive = true
		}
	}
	if !repetitive {
		t.Error("a message event should explain the loop stop")
	}
}

func TestMaxIterationsWithWarning(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{calls: []models.ToolCall{toolCallJSON("create_file", map[string]any{"path": "x1.txt", "content": "1"})}},
		{calls: []models.ToolCall{toolCallJSON("create_file", map[string]any{"path": "x2.txt", "content": "2"})}},
		{text: "PROGRESS SUMMARY: created x1.txt and x2.txt; nothing pending."},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		map[string][]string{"alpha": {"key"}},
		Config{MaxIterations: 3},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{Query: "generate many files"}, f.emit)

	warnings := f.eventsOfType(models.EventIterationWarn)
	if len(warnings) != 1 || warnings[0].Remaining != 1 {
		t.Fatalf("iteration warnings = %+v", warnings)
	}
	if !resp.MaxIterations {
		t.Error("max_iterations_reached must be set when the final turn used the budget")
	}
	if !strings.Contains(resp.ResponseText, "PROGRESS SUMMARY") {
		t.Errorf("final text = %q", resp.ResponseText)
	}

	demanded := false
	for _, req := range alpha.requests {
		for _, msg := range req.Messages {
			if msg.Role == models.RoleSystem && strings.Contains(msg.Content, "PROGRESS SUMMARY") {
				demanded = true
			}
		}
	}
	if !demanded {
		t.Error("the summary-demand system message was never injected")
	}
}

func TestBudgetExhaustedWithoutFinalText(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{calls: []models.ToolCall{toolCallJSON("create_file", map[string]any{"path": "y1.txt", "content": "1"})}},
		{calls: []models.ToolCall{toolCallJSON("create_file", map[string]any{"path": "y2.txt", "content": "2"})}},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		map[string][]string{"alpha": {"key"}},
		Config{MaxIterations: 2},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{Query: "generate forever"}, f.emit)

	if !resp.MaxIterations || resp.Iterations != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	done := f.eventsOfType(models.EventDone)
	if len(done) != 1 || !done[0].MaxIterations {
		t.Fatalf("done = %+v", done)
	}
}

func TestSimpleChatScenario(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		// The same chain serves the classifier, so the first scripted
		// turn is the classification verdict.
		{text: `{"task_type": "chat", "confidence": 0.95, "estimated_complexity": "low", "reasoning": "general question"}`},
		{text: "A B-tree is a self-balancing search tree optimised for block storage."},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskChat: {{Provider: "alpha", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		map[string][]string{"alpha": {"key"}},
		Config{},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{Query: "What is a B-tree?"}, f.emit)

	if !resp.Success || resp.TaskType != models.TaskChat {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ToolCallsCount != 0 || resp.Iterations != 1 {
		t.Errorf("tool_calls=%d iterations=%d", resp.ToolCallsCount, resp.Iterations)
	}
	if len(f.eventsOfType(models.EventToken)) == 0 {
		t.Error("token events must stream the answer")
	}
	done := f.eventsOfType(models.EventDone)
	if len(done) != 1 || done[0].Iterations != 1 {
		t.Fatalf("done = %+v", done)
	}
}

func TestRequestScopedCredentialOverride(t *testing.T) {
	alpha := &scriptedModel{provider: "alpha", turns: []turn{
		{text: "answered"},
	}}
	f := newFixture(t,
		map[models.TaskType][]routing.ChainEntry{
			models.TaskCodeGeneration: {{Provider: "alpha", ModelKey: "fast"}},
		},
		&fakeSource{models: map[string]*scriptedModel{"alpha": alpha}},
		nil, // no process-wide credentials at all
		Config{},
	)

	resp := f.orch.ProcessStream(context.Background(), Request{
		Query:       "create a widget",
		Credentials: map[string][]string{"alpha": {"request-scoped-key"}},
	}, f.emit)

	if !resp.Success {
		t.Fatalf("override credential should serve the request: %s", resp.Error)
	}
}
