package agent

import (
	"context"

	"github.com/ai-innovation-art/quasar/internal/contextmgr"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// RouterSummarizer compacts old conversation turns through the fast chat
// chain. The context manager falls back to its keyword heuristic when
// this fails.
type RouterSummarizer struct {
	Router *routing.Router
}

// Summarize sends the old turns to a fast model with the fixed
// summarisation prompt.
func (s *RouterSummarizer) Summarize(ctx context.Context, msgs []contextmgr.HistoryMessage) (string, error) {
	completion, _, _, err := s.Router.InvokeWithFallback(ctx, models.TaskChat, &providers.CompletionRequest{
		System:    contextmgr.SummarizePrompt,
		Messages:  []models.Message{{Role: models.RoleUser, Content: contextmgr.RenderForSummary(msgs)}},
		MaxTokens: 300,
	})
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}
