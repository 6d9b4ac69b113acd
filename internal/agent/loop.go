package agent

import (
	"context"
	"fmt"

	"github.com/ai-innovation-art/quasar/internal/credentials"
	"github.com/ai-innovation-art/quasar/internal/observability"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/internal/tools/catalog"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// runLoop drives the bounded agentic tool-calling loop for one request.
func (o *Orchestrator) runLoop(ctx context.Context, req Request, task models.TaskType, emit EmitFunc) *models.AgentResponse {
	res, level, pinned, err := o.resolveInitial(ctx, task, req.SelectedModel)
	if err != nil {
		emit(models.NewErrorEvent(err.Error()))
		return &models.AgentResponse{Success: false, TaskType: task, Error: err.Error()}
	}

	toolset := catalog.ForTask(o.registry, task)
	if !res.Model.SupportsTools() || len(toolset.Names()) == 0 {
		// Providers that cannot bind tools fall back to plain streaming.
		return o.runStream(ctx, req, task, emit)
	}

	executor := tools.NewExecutor(toolset, tools.ExecutorConfig{
		Timeout:         o.config.ToolTimeout,
		ExtendedTimeout: o.config.PackageTimeout,
	}, o.logger, o.metrics)

	built := o.contextMgr.Build(task)
	system := BuildSystemPrompt(task, toolset)
	history := []models.Message{{Role: models.RoleUser, Content: BuildUserMessage(built, req.Query)}}
	boundTools := providerTools(toolset)

	detector := &loopDetector{}
	used := make(map[string]bool)
	toolCalls := 0
	summaryDemanded := false

	maxIter := o.config.MaxIterations
	for i := 1; i <= maxIter; i++ {
		if maxIter-i <= 1 && !summaryDemanded {
			history = append(history, models.Message{Role: models.RoleSystem, Content: summaryDemand})
			summaryDemanded = true
			emit(models.NewIterationWarningEvent(i, maxIter-i))
		}
		emit(models.NewIterationEvent(i))

		completion, invokeErr := o.invokeModel(ctx, res, &providers.CompletionRequest{
			System:   system,
			Messages: history,
			Tools:    boundTools,
		})
		if invokeErr != nil {
			if ctx.Err() != nil {
				// Request cancelled: no done event, the transport closes
				// the stream.
				return partialFailure(ctx.Err(), task, res, i, toolCalls, used)
			}
			next, switched, handleErr := o.handleInvokeError(ctx, invokeErr, task, level, pinned, res, emit)
			if handleErr != nil {
				emit(models.NewErrorEvent(handleErr.Error()))
				return partialFailure(handleErr, task, res, i, toolCalls, used)
			}
			if switched.Model != nil {
				res = switched
				level = next
			}
			i-- // retry the same iteration after rotation or fallback
			continue
		}

		if len(completion.ToolCalls) == 0 {
			o.streamText(completion.Text, emit)
			done := models.Event{
				Type:           models.EventDone,
				Provider:       res.Entry.Provider,
				Model:          res.ModelName,
				Iterations:     i,
				ToolCallsCount: toolCalls,
				ToolsUsed:      sortedToolNames(used),
				MaxIterations:  i >= maxIter,
			}
			emit(done)
			return &models.AgentResponse{
				Success:        true,
				ResponseText:   completion.Text,
				TaskType:       task,
				Provider:       res.Entry.Provider,
				ModelUsed:      res.ModelName,
				ToolsUsed:      sortedToolNames(used),
				ToolCallsCount: toolCalls,
				Iterations:     i,
				MaxIterations:  i >= maxIter,
			}
		}

		history = append(history, models.Message{
			Role:      models.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			detector.Add(call)
			if detector.Looping() {
				emit(models.NewMessageEvent("Detected repetitive actions; stopping to avoid a loop."))
				emit(models.Event{
					Type:           models.EventDone,
					Provider:       res.Entry.Provider,
					Model:          res.ModelName,
					Iterations:     i,
					ToolCallsCount: toolCalls,
					ToolsUsed:      sortedToolNames(used),
					LoopDetected:   true,
				})
				return &models.AgentResponse{
					Success:        true,
					ResponseText:   "Stopped after detecting repeated identical tool calls.",
					TaskType:       task,
					Provider:       res.Entry.Provider,
					ModelUsed:      res.ModelName,
					ToolsUsed:      sortedToolNames(used),
					ToolCallsCount: toolCalls,
					Iterations:     i,
					LoopDetected:   true,
				}
			}

			emit(models.NewMessageEvent(progressMessage(call)))
			emit(models.NewToolStartEvent(call))

			var result models.ToolResult
			if o.tracer != nil {
				spanCtx, span := o.tracer.StartToolSpan(ctx, call.Name)
				result = executor.Execute(spanCtx, call)
				var spanErr error
				if !result.Success {
					spanErr = fmt.Errorf("%s", result.Content)
				}
				observability.EndSpan(span, spanErr)
			} else {
				result = executor.Execute(ctx, call)
			}
			if ctx.Err() != nil {
				return partialFailure(ctx.Err(), task, res, i, toolCalls, used)
			}

			toolCalls++
			used[call.Name] = true
			history = append(history, models.Message{
				Role:       models.RoleTool,
				Content:    toolMessageContent(result),
				ToolCallID: call.ID,
				ToolResult: &result,
			})

			emit(models.NewToolCompleteEvent(call, result))
			emit(models.NewMessageEvent(observation(call, result)))
			o.recordSessionActivity(call, result)
			if mutatingTools[call.Name] && result.Success {
				emit(models.NewFileTreeUpdatedEvent())
			}
		}
	}

	emit(models.Event{
		Type:           models.EventDone,
		Provider:       res.Entry.Provider,
		Model:          res.ModelName,
		Iterations:     maxIter,
		ToolCallsCount: toolCalls,
		ToolsUsed:      sortedToolNames(used),
		MaxIterations:  true,
	})
	return &models.AgentResponse{
		Success:        true,
		ResponseText:   "",
		TaskType:       task,
		Provider:       res.Entry.Provider,
		ModelUsed:      res.ModelName,
		ToolsUsed:      sortedToolNames(used),
		ToolCallsCount: toolCalls,
		Iterations:     maxIter,
		MaxIterations:  true,
	}
}

// handleInvokeError implements the mid-loop rate-limit protocol: rotate
// within the provider first; in Auto-mode advance the fallback chain;
// pinned requests surface a terminal error instead of crossing providers.
// Non-rate-limit transport errors advance the chain directly in Auto-mode.
func (o *Orchestrator) handleInvokeError(ctx context.Context, invokeErr error, task models.TaskType, level int, pinned bool, current routing.Resolved, emit EmitFunc) (int, routing.Resolved, error) {
	rateLimited := credentials.IsRateLimitError(invokeErr)

	if rateLimited && o.store.Rotate(current.Entry.Provider) {
		if o.metrics != nil {
			o.metrics.RecordCredentialRotation(current.Entry.Provider)
		}
		if o.logger != nil {
			o.logger.Warn(ctx, "rate limited, rotated credential", "provider", current.Entry.Provider)
		}
		// Same chain entry, next credential: re-resolve to pick it up.
		if pinned {
			res, err := o.router.ResolvePinned(ctx, current.Entry.Provider+"/"+current.Entry.ModelKey)
			if err != nil {
				return level, routing.Resolved{}, err
			}
			return level, res, nil
		}
		res, ok := o.router.ModelAt(ctx, task, level)
		if !ok {
			return level, routing.Resolved{}, invokeErr
		}
		return level, res, nil
	}

	if pinned {
		return level, routing.Resolved{}, fmt.Errorf("pinned model %s/%s failed: %w", current.Entry.Provider, current.Entry.ModelKey, invokeErr)
	}

	res, nextLevel, ok := o.router.NextAvailable(ctx, task, level+1)
	if !ok {
		return level, routing.Resolved{}, fmt.Errorf("%w: %w", routing.ErrChainExhausted, invokeErr)
	}
	if o.metrics != nil {
		o.metrics.RecordFallbackAdvance(string(task), current.Entry.Provider, res.Entry.Provider)
	}
	emit(models.NewMessageEvent(fmt.Sprintf("Switching from %s to %s after a provider failure.", current.Entry.Provider, res.Entry.Provider)))
	return nextLevel, res, nil
}

// toolMessageContent renders a ToolResult for the model's transcript.
func toolMessageContent(result models.ToolResult) string {
	if result.Success {
		return result.Content
	}
	content := "ERROR"
	if result.ErrorKind != "" {
		content += " (" + string(result.ErrorKind) + ")"
	}
	content += ": " + result.Content
	if result.Hint != "" {
		content += "\nHint: " + result.Hint
	}
	return content
}

// providerTools adapts the registry's tools to the provider binding
// interface.
func providerTools(registry *tools.Registry) []providers.Tool {
	all := registry.All()
	out := make([]providers.Tool, len(all))
	for i, t := range all {
		out[i] = t
	}
	return out
}
