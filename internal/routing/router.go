// Package routing implements the Router (C3): it maps each task type to
// an ordered fallback chain of (provider, model-key) pairs and resolves
// chain entries into concrete ChatModel handles, skipping providers whose
// credentials are exhausted.
package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/credentials"
	"github.com/ai-innovation-art/quasar/internal/observability"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// ErrChainExhausted is returned when every entry of a task's fallback
// chain has been tried and none produced a usable model handle.
var ErrChainExhausted = errors.New("model fallback chain exhausted")

// ModelSource constructs ChatModel handles; *providers.Registry is the
// production implementation.
type ModelSource interface {
	GetModel(ctx context.Context, provider, modelName string, temperature float64) (providers.ChatModel, bool)
}

// Resolved is a chain entry resolved into a live handle.
type Resolved struct {
	Entry     ChainEntry
	Config    ModelConfig
	Model     providers.ChatModel
	ModelName string
}

// Router resolves task types to model handles through the credential
// store (availability) and provider registry (construction).
type Router struct {
	registry ModelSource
	store    *credentials.Store
	chains   map[models.TaskType][]ChainEntry
	tables   map[string]map[string]ModelConfig
	logger   *observability.Logger
}

// New builds a Router. Nil chains or tables fall back to the built-in
// defaults.
func New(registry ModelSource, store *credentials.Store, chains map[models.TaskType][]ChainEntry, tables map[string]map[string]ModelConfig, logger *observability.Logger) *Router {
	if chains == nil {
		chains = DefaultChains()
	}
	if tables == nil {
		tables = DefaultModelTables()
	}
	return &Router{registry: registry, store: store, chains: chains, tables: tables, logger: logger}
}

// Chain returns the fallback chain for a task type. Unknown task types
// get the chat chain.
func (r *Router) Chain(task models.TaskType) []ChainEntry {
	if chain, ok := r.chains[task]; ok {
		return chain
	}
	return r.chains[models.TaskChat]
}

// ModelConfigFor resolves (provider, model-key) to its concrete config.
func (r *Router) ModelConfigFor(entry ChainEntry) (ModelConfig, bool) {
	table, ok := r.tables[entry.Provider]
	if !ok {
		return ModelConfig{}, false
	}
	cfg, ok := table[entry.ModelKey]
	return cfg, ok
}

// ModelAt resolves the chain entry at the given level for task into a
// live handle. Returns (nil-resolved, false) when the level is out of
// range or the entry cannot currently be resolved (unknown key, provider
// unavailable).
func (r *Router) ModelAt(ctx context.Context, task models.TaskType, level int) (Resolved, bool) {
	chain := r.Chain(task)
	if level < 0 || level >= len(chain) {
		return Resolved{}, false
	}
	return r.resolve(ctx, chain[level])
}

// NextAvailable scans the chain from level (inclusive) and returns the
// first entry that resolves, along with its level. Skipped entries are
// logged at debug level.
func (r *Router) NextAvailable(ctx context.Context, task models.TaskType, level int) (Resolved, int, bool) {
	chain := r.Chain(task)
	for i := level; i < len(chain); i++ {
		res, ok := r.resolve(ctx, chain[i])
		if ok {
			return res, i, true
		}
		if r.logger != nil {
			r.logger.Debug(ctx, "skipping unavailable chain entry",
				"task", string(task), "provider", chain[i].Provider, "model_key", chain[i].ModelKey)
		}
	}
	return Resolved{}, 0, false
}

// ResolvePinned resolves a caller-pinned "<provider>/<model_key>" spec.
// A pinned model disables cross-provider fallback; only credential
// rotation within the pinned provider applies.
func (r *Router) ResolvePinned(ctx context.Context, selected string) (Resolved, error) {
	provider, key, found := strings.Cut(selected, "/")
	if !found || provider == "" || key == "" {
		return Resolved{}, fmt.Errorf("invalid model selector %q: want provider/model_key", selected)
	}
	res, ok := r.resolve(ctx, ChainEntry{Provider: provider, ModelKey: key})
	if !ok {
		return Resolved{}, fmt.Errorf("pinned model %s unavailable", selected)
	}
	return res, nil
}

func (r *Router) resolve(ctx context.Context, entry ChainEntry) (Resolved, bool) {
	if !r.store.IsAvailable(entry.Provider) {
		// Request-scoped overrides can supply credentials for providers
		// the process-wide store cannot serve; let GetModel decide.
		if _, ok := r.store.Get(ctx, entry.Provider); !ok {
			return Resolved{}, false
		}
	}
	cfg, ok := r.ModelConfigFor(entry)
	if !ok {
		return Resolved{}, false
	}
	model, ok := r.registry.GetModel(ctx, entry.Provider, cfg.ModelName, cfg.Temperature)
	if !ok {
		return Resolved{}, false
	}
	return Resolved{Entry: entry, Config: cfg, Model: model, ModelName: cfg.ModelName}, true
}

// Classifier resolves the designated classification model: the fixed
// classifier entry when available, otherwise the first resolvable entry
// of the chat chain. Returns false when nothing is reachable, in which
// case the caller falls back to keyword classification.
func (r *Router) Classifier(ctx context.Context) (Resolved, bool) {
	if res, ok := r.resolve(ctx, ClassifierEntry); ok {
		return res, true
	}
	res, _, ok := r.NextAvailable(ctx, models.TaskChat, 0)
	return res, ok
}

// InvokeWithFallback runs one non-streaming completion for task, walking
// the fallback chain and rotating credentials on rate-limit signals. It
// returns the drained completion plus the provider and model that served
// it.
func (r *Router) InvokeWithFallback(ctx context.Context, task models.TaskType, req *providers.CompletionRequest) (*providers.Completion, string, string, error) {
	level := 0
	var lastErr error
	for {
		res, lvl, ok := r.NextAvailable(ctx, task, level)
		if !ok {
			if lastErr != nil {
				return nil, "", "", fmt.Errorf("%w: %w", ErrChainExhausted, lastErr)
			}
			return nil, "", "", ErrChainExhausted
		}
		level = lvl

		attempt := *req
		attempt.Model = res.ModelName
		if attempt.MaxTokens == 0 {
			attempt.MaxTokens = res.Config.MaxTokens
		}

		completion, err := r.invokeOnce(ctx, res.Model, &attempt)
		if err == nil {
			return completion, res.Entry.Provider, res.ModelName, nil
		}
		lastErr = err

		if credentials.IsRateLimitError(err) && r.store.Rotate(res.Entry.Provider) {
			if r.logger != nil {
				r.logger.Warn(ctx, "rate limited, rotated credential", "provider", res.Entry.Provider)
			}
			continue // retry the same level with the next credential
		}
		if r.logger != nil {
			r.logger.Warn(ctx, "model invocation failed, advancing fallback chain",
				"provider", res.Entry.Provider, "model", res.ModelName, "error", err.Error())
		}
		level = lvl + 1
	}
}

func (r *Router) invokeOnce(ctx context.Context, model providers.ChatModel, req *providers.CompletionRequest) (*providers.Completion, error) {
	ch, err := model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return providers.Collect(ctx, ch)
}
