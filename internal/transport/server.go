// Package transport exposes the orchestrator over HTTP: JSON request/
// response, Server-Sent Events streaming, and a framed-JSON websocket.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ai-innovation-art/quasar/internal/agent"
	"github.com/ai-innovation-art/quasar/internal/credentials"
	"github.com/ai-innovation-art/quasar/internal/observability"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Server wires the HTTP surface to the orchestrator.
type Server struct {
	orchestrator *agent.Orchestrator
	router       *routing.Router
	store        *credentials.Store
	providers    []ModelListing
	logger       *observability.Logger
	metrics      *observability.Metrics
	registry     *prometheus.Registry
}

// ModelListing is one row of GET /models/list.
type ModelListing struct {
	Provider    string `json:"provider"`
	ModelKey    string `json:"model_key"`
	ModelName   string `json:"model_name"`
	DisplayName string `json:"display_name"`
}

// NewServer builds the HTTP server facade.
func NewServer(orchestrator *agent.Orchestrator, router *routing.Router, store *credentials.Store, listings []ModelListing, logger *observability.Logger, metrics *observability.Metrics, promRegistry *prometheus.Registry) *Server {
	return &Server{
		orchestrator: orchestrator,
		router:       router,
		store:        store,
		providers:    listings,
		logger:       logger,
		metrics:      metrics,
		registry:     promRegistry,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.instrument("/chat", s.handleChat))
	mux.HandleFunc("POST /chat/stream", s.instrument("/chat/stream", s.handleChatStream))
	mux.HandleFunc("POST /classify", s.instrument("/classify", s.handleClassify))
	mux.HandleFunc("GET /health", s.instrument("/health", s.handleHealth))
	mux.HandleFunc("GET /models/list", s.instrument("/models/list", s.handleModelsList))
	mux.HandleFunc("/ws", s.handleWS)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE streaming works through
// the instrumentation wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), observability.RequestIDKey, uuid.NewString())
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r.WithContext(ctx))
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(rec.status), time.Since(start))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ChatRequest is the POST /chat and /chat/stream body.
type ChatRequest struct {
	Query          string              `json:"query"`
	Workspace      string              `json:"workspace,omitempty"`
	CurrentFile    string              `json:"current_file,omitempty"`
	FileContent    string              `json:"file_content,omitempty"`
	SelectedCode   string              `json:"selected_code,omitempty"`
	TerminalOutput string              `json:"terminal_output,omitempty"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	SelectedModel  string              `json:"selected_model,omitempty"`
	Credentials    map[string][]string `json:"credentials,omitempty"`
}

func (r *ChatRequest) toAgentRequest() agent.Request {
	return agent.Request{
		Query:          r.Query,
		CurrentFile:    r.CurrentFile,
		FileContent:    r.FileContent,
		SelectedCode:   r.SelectedCode,
		TerminalOutput: r.TerminalOutput,
		ErrorMessage:   r.ErrorMessage,
		SelectedModel:  r.SelectedModel,
		Credentials:    r.Credentials,
	}
}

func decodeChatRequest(r *http.Request) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return &req, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := s.orchestrator.Process(r.Context(), req.toAgentRequest())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	classification, _ := s.orchestrator.Classify(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, classification)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": s.store.Status(),
	})
}

func (s *Server) handleModelsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.providers})
}

// eventBuffer is how many events the per-request channel holds before
// the orchestrator blocks on a slow client.
const eventBuffer = 64

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	events := make(chan models.Event, eventBuffer)
	go func() {
		defer close(events)
		s.orchestrator.ProcessStream(ctx, req.toAgentRequest(), func(e models.Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		})
	}()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}
