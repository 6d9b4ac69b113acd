package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ai-innovation-art/quasar/internal/agent"
	"github.com/ai-innovation-art/quasar/internal/contextmgr"
	"github.com/ai-innovation-art/quasar/internal/credentials"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/internal/tools/catalog"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

type cannedModel struct {
	turns []string
	idx   int
}

func (m *cannedModel) Provider() string    { return "alpha" }
func (m *cannedModel) SupportsTools() bool { return true }

func (m *cannedModel) Complete(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.CompletionChunk, error) {
	idx := m.idx
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	m.idx++
	ch := make(chan *providers.CompletionChunk, 2)
	ch <- &providers.CompletionChunk{Text: m.turns[idx]}
	ch <- &providers.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

type cannedSource struct{ model *cannedModel }

func (s *cannedSource) GetModel(ctx context.Context, provider, modelName string, temperature float64) (providers.ChatModel, bool) {
	if provider != "alpha" {
		return nil, false
	}
	return s.model, true
}

func newTestServer(t *testing.T, turns ...string) *Server {
	t.Helper()
	store := credentials.NewStore()
	store.Register("alpha", []string{"key"})
	chains := map[models.TaskType][]routing.ChainEntry{
		models.TaskChat: {{Provider: "alpha", ModelKey: "fast"}},
	}
	tables := map[string]map[string]routing.ModelConfig{
		"alpha": {"fast": {ModelName: "alpha-8b", MaxTokens: 512}},
	}
	router := routing.New(&cannedSource{model: &cannedModel{turns: turns}}, store, chains, tables, nil)
	manager := contextmgr.NewManager(t.TempDir())
	registry := catalog.Build(catalog.Config{Workspace: manager.Workspace()})
	orch := agent.New(router, store, manager, registry, agent.Config{}, nil, nil, nil)
	listings := []ModelListing{{Provider: "alpha", ModelKey: "fast", ModelName: "alpha-8b", DisplayName: "Alpha 8B"}}
	return NewServer(orch, router, store, listings, nil, nil, nil)
}

func TestChatStreamSSE(t *testing.T) {
	srv := newTestServer(t,
		`{"task_type": "chat", "confidence": 0.9, "estimated_complexity": "low", "reasoning": "q"}`,
		"hello from the model")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/chat/stream", "application/json",
		strings.NewReader(`{"query": "What is a B-tree?"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-cache") {
		t.Errorf("Cache-Control = %q", cc)
	}

	// The handler returns after the final event, closing the stream.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var events []models.Event
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e models.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, e)
	}

	if len(events) == 0 {
		t.Fatal("no events parsed")
	}
	if events[0].Type != models.EventClassification {
		t.Errorf("first event = %s", events[0].Type)
	}
	if events[len(events)-1].Type != models.EventDone {
		t.Errorf("last event = %s", events[len(events)-1].Type)
	}
	tokens := 0
	for _, e := range events {
		if e.Type == models.EventToken {
			tokens++
		}
	}
	if tokens == 0 {
		t.Error("token events missing")
	}
}

func TestChatNonStreaming(t *testing.T) {
	srv := newTestServer(t,
		`{"task_type": "chat", "confidence": 0.9, "estimated_complexity": "low", "reasoning": "q"}`,
		"direct answer")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/chat", "application/json",
		strings.NewReader(`{"query": "hi there"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out models.AgentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.ResponseText != "direct answer" {
		t.Errorf("response = %+v", out)
	}
}

func TestHealthAndModelsList(t *testing.T) {
	srv := newTestServer(t, "x")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health struct {
		Status    string                         `json:"status"`
		Providers map[string]credentials.Status `json:"providers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if health.Status != "ok" || !health.Providers["alpha"].Available {
		t.Errorf("health = %+v", health)
	}

	resp, err = http.Get(ts.URL + "/models/list")
	if err != nil {
		t.Fatal(err)
	}
	var listing struct {
		Models []ModelListing `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(listing.Models) != 1 || listing.Models[0].ModelKey != "fast" {
		t.Errorf("models = %+v", listing.Models)
	}
}

func TestChatRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t, "x")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
