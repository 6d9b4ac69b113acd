// Package providers implements the Model Provider Registry (C2): a
// uniform ChatModel capability over a local inference server and three
// remote endpoints: two OpenAI-compatible, one account-scoped.
package providers

import (
	"context"
	"fmt"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Model describes one selectable model a provider advertises.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}

// CompletionRequest is what the orchestrator hands to a ChatModel.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []models.Message
	Tools       []Tool
	MaxTokens   int
	Temperature float64
}

// CompletionChunk is one unit of a streamed completion: either plain text,
// a completed tool-call request, or a terminal error/done marker.
type CompletionChunk struct {
	Text         string
	ToolCall     *models.ToolCall
	Done         bool
	Error        error
	InputTokens  int
	OutputTokens int
}

// Tool is the subset of the tool registry's Tool interface the provider
// layer needs in order to advertise function-calling schemas.
type Tool interface {
	Name() string
	Description() string
	Schema() []byte
}

// ChatModel is the capability set the router hands to the orchestrator:
// a model bound to one provider, one model name, and one temperature.
type ChatModel interface {
	// Complete streams a completion for the given messages. If Tools is
	// non-empty and the provider supports tool binding, the returned
	// chunks may include ToolCall requests.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Provider is the provider name this handle is bound to.
	Provider() string

	// SupportsTools reports whether this handle can bind tool schemas. The
	// orchestrator falls back to the non-tool path transparently when false.
	SupportsTools() bool
}

// Provider is the lower-level handle the registry constructs ChatModels
// from. Each concrete provider (ollama, the two bearer-token remotes, the
// account-id remote) implements this.
type Provider interface {
	Name() string
	Models() []Model
	SupportsTools() bool
	Bind(model string, temperature float64) ChatModel
}

// ProviderError wraps a failure from a specific provider/model pair so
// router/credential-rotation logic can inspect it without string-sniffing
// alone.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s/%s: %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WithStatus attaches an HTTP status code to the error, fluently.
func (e *ProviderError) WithStatus(code int) *ProviderError {
	e.StatusCode = code
	return e
}

// NewProviderError constructs a ProviderError.
func NewProviderError(provider, model string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Err: err}
}
