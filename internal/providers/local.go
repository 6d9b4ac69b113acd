package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ai-innovation-art/quasar/pkg/models"
	"github.com/google/uuid"
)

// LocalConfig configures the local inference server provider (e.g. an
// Ollama-compatible endpoint running on the developer's machine).
type LocalConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// LocalProvider talks to a local inference server over its own chat API.
// It never requires a credential: the Credential Store treats it as
// local-only and always-available.
type LocalProvider struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

// NewLocalProvider builds the local inference server provider.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &LocalProvider{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
	}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Models() []Model {
	if p.defaultModel == "" {
		return nil
	}
	return []Model{{ID: p.defaultModel, Name: p.defaultModel}}
}

func (p *LocalProvider) SupportsTools() bool { return true }

func (p *LocalProvider) Bind(model string, temperature float64) ChatModel {
	return &localChatModel{provider: p, model: model, temperature: temperature}
}

type localChatModel struct {
	provider    *LocalProvider
	model       string
	temperature float64
}

func (m *localChatModel) Provider() string    { return "local" }
func (m *localChatModel) SupportsTools() bool { return true }

type localChatRequest struct {
	Model    string         `json:"model"`
	Stream   bool           `json:"stream"`
	Messages []localMessage `json:"messages"`
	Options  map[string]any `json:"options,omitempty"`
	Tools    []localTool    `json:"tools,omitempty"`
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type localChatResponse struct {
	Message *struct {
		Content   string `json:"content"`
		ToolCalls []struct {
			Function struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (m *localChatModel) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	model := strings.TrimSpace(m.model)
	if model == "" {
		model = m.provider.defaultModel
	}
	if model == "" {
		return nil, NewProviderError("local", model, errors.New("model is required"))
	}

	payload := localChatRequest{Model: model, Stream: true}
	if strings.TrimSpace(req.System) != "" {
		payload.Messages = append(payload.Messages, localMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		payload.Messages = append(payload.Messages, localMessage{Role: string(msg.Role), Content: msg.Content})
	}
	for _, t := range req.Tools {
		var lt localTool
		lt.Type = "function"
		lt.Function.Name = t.Name()
		lt.Function.Description = t.Description()
		lt.Function.Parameters = t.Schema()
		payload.Tools = append(payload.Tools, lt)
	}
	if req.MaxTokens > 0 {
		payload.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError("local", model, fmt.Errorf("marshal request: %w", err))
	}

	url := m.provider.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError("local", model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.provider.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError("local", model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError("local", model, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	out := make(chan *CompletionChunk)
	go streamLocal(resp.Body, out, model)
	return out, nil
}

func streamLocal(body io.ReadCloser, out chan *CompletionChunk, model string) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var resp localChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			out <- &CompletionChunk{Error: NewProviderError("local", model, fmt.Errorf("decode response: %w", err)), Done: true}
			return
		}
		if resp.Error != "" {
			out <- &CompletionChunk{Error: NewProviderError("local", model, errors.New(resp.Error)), Done: true}
			return
		}
		if resp.Message != nil {
			if resp.Message.Content != "" {
				out <- &CompletionChunk{Text: resp.Message.Content}
			}
			for _, tc := range resp.Message.ToolCalls {
				args := tc.Function.Arguments
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				out <- &CompletionChunk{ToolCall: &models.ToolCall{ID: uuid.NewString(), Name: tc.Function.Name, Args: args}}
			}
		}
		if resp.Done {
			out <- &CompletionChunk{Done: true, InputTokens: resp.PromptEvalCount, OutputTokens: resp.EvalCount}
			return
		}
	}
}
