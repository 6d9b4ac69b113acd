package providers

import (
	"context"
	"strings"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Completion is a fully-drained model turn: the concatenated text plus any
// tool-call requests the model emitted.
type Completion struct {
	Text      string
	ToolCalls []models.ToolCall
}

// Collect drains a completion stream into a single Completion. It returns
// the first chunk-level error encountered, and respects ctx cancellation.
func Collect(ctx context.Context, ch <-chan *CompletionChunk) (*Completion, error) {
	var text strings.Builder
	var calls []models.ToolCall
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return &Completion{Text: text.String(), ToolCalls: calls}, nil
			}
			if chunk.Error != nil {
				return nil, chunk.Error
			}
			if chunk.Text != "" {
				text.WriteString(chunk.Text)
			}
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
			if chunk.Done {
				return &Completion{Text: text.String(), ToolCalls: calls}, nil
			}
		}
	}
}
