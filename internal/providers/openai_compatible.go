package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/ai-innovation-art/quasar/pkg/models"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatibleConfig configures a remote provider that speaks the
// OpenAI chat-completions wire format and authenticates with a bearer
// token against a configurable base URL. Two of the three remote
// providers the registry exposes are instances of this type.
type OpenAICompatibleConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	DefaultModel string
	ModelCatalog []Model
}

// OpenAICompatibleProvider is a bearer-token/base-URL remote provider
// backed by github.com/sashabaranov/go-openai.
type OpenAICompatibleProvider struct {
	BaseProvider
	client  *openai.Client
	catalog []Model
}

// NewOpenAICompatibleProvider builds a provider bound to one API key and
// base URL. Passing the canonical OpenAI base URL yields the "openai"
// provider; any other base URL yields an OpenAI-wire-compatible peer
// (e.g. a hosted inference gateway).
func NewOpenAICompatibleProvider(cfg OpenAICompatibleConfig) *OpenAICompatibleProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAICompatibleProvider{
		BaseProvider: NewBaseProvider(cfg.Name),
		client:       openai.NewClientWithConfig(clientCfg),
		catalog:      cfg.ModelCatalog,
	}
}

func (p *OpenAICompatibleProvider) Name() string { return p.name }

func (p *OpenAICompatibleProvider) Models() []Model { return p.catalog }

func (p *OpenAICompatibleProvider) SupportsTools() bool { return true }

// Bind returns a ChatModel pinned to model and temperature.
func (p *OpenAICompatibleProvider) Bind(model string, temperature float64) ChatModel {
	return &openaiChatModel{provider: p, model: model, temperature: temperature}
}

type openaiChatModel struct {
	provider    *OpenAICompatibleProvider
	model       string
	temperature float64
}

func (m *openaiChatModel) Provider() string     { return m.provider.name }
func (m *openaiChatModel) SupportsTools() bool  { return true }

func (m *openaiChatModel) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: float32(m.temperature),
		Stream:      true,
		Messages:    convertMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}

	out := make(chan *CompletionChunk)
	var stream *openai.ChatCompletionStream
	err := m.provider.Retry(ctx, isRetryableStatus, func() error {
		s, err := m.provider.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, NewProviderError(m.provider.name, m.model, err)
	}

	go streamOpenAI(stream, out, m.provider.name, m.model)
	return out, nil
}

func streamOpenAI(stream *openai.ChatCompletionStream, out chan *CompletionChunk, provider, model string) {
	defer close(out)
	defer stream.Close()

	type pending struct {
		id, name string
		args     strings.Builder
	}
	calls := map[int]*pending{}
	order := []int{}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || isStreamDone(err) {
				break
			}
			out <- &CompletionChunk{Error: NewProviderError(provider, model, err), Done: true}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			out <- &CompletionChunk{Text: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			p, ok := calls[idx]
			if !ok {
				p = &pending{}
				calls[idx] = p
				order = append(order, idx)
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason == "tool_calls" || choice.FinishReason == "stop" {
			for _, idx := range order {
				p := calls[idx]
				if p.name == "" {
					continue
				}
				id := p.id
				if id == "" {
					id = uuid.NewString()
				}
				args := p.args.String()
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				out <- &CompletionChunk{ToolCall: &models.ToolCall{ID: id, Name: p.name, Args: json.RawMessage(args)}}
			}
			out <- &CompletionChunk{Done: true}
			return
		}
	}
	for _, idx := range order {
		p := calls[idx]
		if p.name == "" {
			continue
		}
		id := p.id
		if id == "" {
			id = uuid.NewString()
		}
		args := p.args.String()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		out <- &CompletionChunk{ToolCall: &models.ToolCall{ID: id, Name: p.name, Args: json.RawMessage(args)}}
	}
	out <- &CompletionChunk{Done: true}
}

func convertMessages(system string, msgs []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case models.RoleAssistant:
			cm := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Args),
					},
				})
			}
			out = append(out, cm)
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		}
	}
	return out
}

func convertTools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params map[string]interface{}
		if err := json.Unmarshal(t.Schema(), &params); err != nil {
			continue
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return out
}

func isStreamDone(err error) bool {
	return err != nil && strings.Contains(err.Error(), "EOF")
}

// isRetryableStatus matches the teacher's substring-based retryability
// check: transient HTTP statuses and timeouts are retried at the provider
// layer; rate limits are deliberately excluded here because the router's
// credential-rotation logic owns that retry.
func isRetryableStatus(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"500", "502", "503", "504", "timeout", "deadline exceeded", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
