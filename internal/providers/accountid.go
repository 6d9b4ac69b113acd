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

// AccountScopedConfig configures the third remote provider pattern: the
// account identifier is embedded in the request URL itself rather than
// carried only in a header, alongside a bearer API token.
type AccountScopedConfig struct {
	Name         string
	BaseURL      string // e.g. "https://api.example.com/accounts"
	AccountID    string
	APIToken     string
	DefaultModel string
	ModelCatalog []Model
	Timeout      time.Duration
}

// AccountScopedProvider implements a remote chat endpoint shaped
// `{base_url}/{account_id}/ai/run/{model}` with `Authorization: Bearer
// {token}`, the account-id-in-URL pattern distinct from the other two
// remote providers' plain bearer-token/base-URL shape.
type AccountScopedProvider struct {
	name         string
	baseURL      string
	accountID    string
	apiToken     string
	defaultModel string
	catalog      []Model
	client       *http.Client
}

// NewAccountScopedProvider builds the account-id+token remote provider.
func NewAccountScopedProvider(cfg AccountScopedConfig) *AccountScopedProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AccountScopedProvider{
		name:         cfg.Name,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		accountID:    cfg.AccountID,
		apiToken:     cfg.APIToken,
		defaultModel: cfg.DefaultModel,
		catalog:      cfg.ModelCatalog,
		client:       &http.Client{Timeout: timeout},
	}
}

func (p *AccountScopedProvider) Name() string       { return p.name }
func (p *AccountScopedProvider) Models() []Model    { return p.catalog }
func (p *AccountScopedProvider) SupportsTools() bool { return true }

func (p *AccountScopedProvider) Bind(model string, temperature float64) ChatModel {
	return &accountScopedChatModel{provider: p, model: model, temperature: temperature}
}

type accountScopedChatModel struct {
	provider    *AccountScopedProvider
	model       string
	temperature float64
}

func (m *accountScopedChatModel) Provider() string    { return m.provider.name }
func (m *accountScopedChatModel) SupportsTools() bool { return true }

type accountRunRequest struct {
	Messages    []accountMessage       `json:"messages"`
	Tools       []accountToolSchema    `json:"tools,omitempty"`
	Temperature float64                `json:"temperature,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Stream      bool                   `json:"stream"`
}

type accountMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type accountToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type accountStreamChunk struct {
	Response  string `json:"response"`
	ToolCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"tool_calls"`
	Done bool `json:"done"`
}

func (m *accountScopedChatModel) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	model := m.model
	if model == "" {
		model = m.provider.defaultModel
	}
	if model == "" {
		return nil, NewProviderError(m.provider.name, model, errors.New("model is required"))
	}

	payload := accountRunRequest{Stream: true, Temperature: m.temperature, MaxTokens: req.MaxTokens}
	if strings.TrimSpace(req.System) != "" {
		payload.Messages = append(payload.Messages, accountMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		payload.Messages = append(payload.Messages, accountMessage{Role: string(msg.Role), Content: msg.Content})
	}
	for _, t := range req.Tools {
		payload.Tools = append(payload.Tools, accountToolSchema{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError(m.provider.name, model, fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/%s/ai/run/%s", m.provider.baseURL, m.provider.accountID, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError(m.provider.name, model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.provider.apiToken)

	resp, err := m.provider.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError(m.provider.name, model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError(m.provider.name, model, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	out := make(chan *CompletionChunk)
	go streamAccountScoped(resp.Body, out, m.provider.name, model)
	return out, nil
}

func streamAccountScoped(body io.ReadCloser, out chan *CompletionChunk, provider, model string) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "data:")
		line = strings.TrimSpace(line)
		if line == "" || line == "[DONE]" {
			continue
		}
		var chunk accountStreamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			out <- &CompletionChunk{Error: NewProviderError(provider, model, fmt.Errorf("decode chunk: %w", err)), Done: true}
			return
		}
		if chunk.Response != "" {
			out <- &CompletionChunk{Text: chunk.Response}
		}
		for _, tc := range chunk.ToolCalls {
			args := tc.Arguments
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			out <- &CompletionChunk{ToolCall: &models.ToolCall{ID: uuid.NewString(), Name: tc.Name, Args: args}}
		}
		if chunk.Done {
			out <- &CompletionChunk{Done: true}
			return
		}
	}
	out <- &CompletionChunk{Done: true}
}
