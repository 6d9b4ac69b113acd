package agent

import (
	"context"
	"strings"
	"time"

	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// runStream is the non-tool path: tokens stream straight from the model
// to the client, with the same rotation and fallback handling as the
// loop applied between attempts. A provider is only swapped while no
// tokens have reached the client yet; after that, a failure is terminal.
func (o *Orchestrator) runStream(ctx context.Context, req Request, task models.TaskType, emit EmitFunc) *models.AgentResponse {
	res, level, pinned, err := o.resolveInitial(ctx, task, req.SelectedModel)
	if err != nil {
		emit(models.NewErrorEvent(err.Error()))
		return &models.AgentResponse{Success: false, TaskType: task, Error: err.Error()}
	}

	built := o.contextMgr.Build(task)
	system := BuildSystemPrompt(task, nil)
	messages := []models.Message{{Role: models.RoleUser, Content: BuildUserMessage(built, req.Query)}}

	for {
		text, emitted, streamErr := o.streamOnce(ctx, res, system, messages, emit)
		if streamErr == nil {
			emit(models.Event{
				Type:       models.EventDone,
				Provider:   res.Entry.Provider,
				Model:      res.ModelName,
				Iterations: 1,
			})
			return &models.AgentResponse{
				Success:      true,
				ResponseText: text,
				TaskType:     task,
				Provider:     res.Entry.Provider,
				ModelUsed:    res.ModelName,
				Iterations:   1,
			}
		}
		if ctx.Err() != nil {
			return &models.AgentResponse{Success: false, TaskType: task, Error: ctx.Err().Error()}
		}
		if emitted {
			emit(models.NewErrorEvent(streamErr.Error()))
			return &models.AgentResponse{
				Success:      false,
				ResponseText: text,
				TaskType:     task,
				Provider:     res.Entry.Provider,
				ModelUsed:    res.ModelName,
				Iterations:   1,
				Error:        streamErr.Error(),
			}
		}

		nextLevel, switched, handleErr := o.handleInvokeError(ctx, streamErr, task, level, pinned, res, emit)
		if handleErr != nil {
			emit(models.NewErrorEvent(handleErr.Error()))
			return &models.AgentResponse{
				Success:   false,
				TaskType:  task,
				Provider:  res.Entry.Provider,
				ModelUsed: res.ModelName,
				Error:     handleErr.Error(),
			}
		}
		if switched.Model != nil {
			res = switched
			level = nextLevel
		}
	}
}

// streamOnce runs one streaming completion, forwarding text chunks as
// token events as they arrive. It reports whether anything was emitted.
func (o *Orchestrator) streamOnce(ctx context.Context, res routing.Resolved, system string, messages []models.Message, emit EmitFunc) (string, bool, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, o.config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	ch, err := res.Model.Complete(invokeCtx, &providers.CompletionRequest{
		System:    system,
		Messages:  messages,
		Model:     res.ModelName,
		MaxTokens: res.Config.MaxTokens,
	})
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordLLMRequest(res.Entry.Provider, res.ModelName, false, time.Since(start))
		}
		return "", false, err
	}

	var text strings.Builder
	emitted := false
	for chunk := range ch {
		if chunk.Error != nil {
			if o.metrics != nil {
				o.metrics.RecordLLMRequest(res.Entry.Provider, res.ModelName, false, time.Since(start))
			}
			return text.String(), emitted, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			emit(models.NewTokenEvent(chunk.Text))
			emitted = true
		}
		if chunk.Done {
			break
		}
	}
	if o.metrics != nil {
		o.metrics.RecordLLMRequest(res.Entry.Provider, res.ModelName, true, time.Since(start))
	}
	return text.String(), emitted, nil
}
