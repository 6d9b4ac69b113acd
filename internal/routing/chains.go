package routing

import "github.com/ai-innovation-art/quasar/pkg/models"

// ChainEntry is one (provider, model-key) step in a task's fallback chain.
type ChainEntry struct {
	Provider string `yaml:"provider" json:"provider"`
	ModelKey string `yaml:"model" json:"model_key"`
}

// ModelConfig resolves a model key within one provider to the concrete
// wire-level model name and sampling parameters.
type ModelConfig struct {
	ModelName   string  `yaml:"model_name" json:"model_name"`
	DisplayName string  `yaml:"display_name" json:"display_name"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// DefaultChains is the built-in task→model preference table, used when the
// configuration file does not override it. Fast models front the cheap
// conversational tasks; the larger models front generation and
// architecture work; the local provider is the universal last resort.
func DefaultChains() map[models.TaskType][]ChainEntry {
	fast := []ChainEntry{
		{Provider: "groq", ModelKey: "fast"},
		{Provider: "cerebras", ModelKey: "fast"},
		{Provider: "cloudflare", ModelKey: "fast"},
		{Provider: "ollama", ModelKey: "default"},
	}
	coding := []ChainEntry{
		{Provider: "cerebras", ModelKey: "coder"},
		{Provider: "groq", ModelKey: "coder"},
		{Provider: "cloudflare", ModelKey: "coder"},
		{Provider: "ollama", ModelKey: "default"},
	}
	reasoning := []ChainEntry{
		{Provider: "groq", ModelKey: "reasoning"},
		{Provider: "cerebras", ModelKey: "coder"},
		{Provider: "cloudflare", ModelKey: "coder"},
		{Provider: "ollama", ModelKey: "default"},
	}
	return map[models.TaskType][]ChainEntry{
		models.TaskChat:                fast,
		models.TaskCodeExplainSimple:   fast,
		models.TaskCodeExplainComplex:  reasoning,
		models.TaskCodeGeneration:      coding,
		models.TaskCodeGenerationMulti: reasoning,
		models.TaskBugFixing:           coding,
		models.TaskRefactor:            coding,
		models.TaskArchitecture:        reasoning,
		models.TaskTestGeneration:      coding,
		models.TaskDocumentation:       fast,
		models.TaskResearch:            reasoning,
	}
}

// DefaultModelTables maps provider → model key → concrete model config,
// used when the configuration file does not override it.
func DefaultModelTables() map[string]map[string]ModelConfig {
	return map[string]map[string]ModelConfig{
		"groq": {
			"fast":      {ModelName: "llama-3.1-8b-instant", DisplayName: "Llama 3.1 8B Instant", Temperature: 0.3, MaxTokens: 4096},
			"coder":     {ModelName: "llama-3.3-70b-versatile", DisplayName: "Llama 3.3 70B", Temperature: 0.2, MaxTokens: 8192},
			"reasoning": {ModelName: "deepseek-r1-distill-llama-70b", DisplayName: "DeepSeek R1 Distill 70B", Temperature: 0.6, MaxTokens: 8192},
		},
		"cerebras": {
			"fast":  {ModelName: "llama3.1-8b", DisplayName: "Llama 3.1 8B", Temperature: 0.3, MaxTokens: 4096},
			"coder": {ModelName: "qwen-3-coder-480b", DisplayName: "Qwen3 Coder 480B", Temperature: 0.2, MaxTokens: 8192},
		},
		"cloudflare": {
			"fast":  {ModelName: "@cf/meta/llama-3.1-8b-instruct", DisplayName: "Llama 3.1 8B (Workers AI)", Temperature: 0.3, MaxTokens: 2048},
			"coder": {ModelName: "@cf/qwen/qwen2.5-coder-32b-instruct", DisplayName: "Qwen2.5 Coder 32B (Workers AI)", Temperature: 0.2, MaxTokens: 4096},
		},
		"ollama": {
			"default": {ModelName: "qwen2.5-coder:7b", DisplayName: "Qwen2.5 Coder 7B (local)", Temperature: 0.2, MaxTokens: 4096},
		},
	}
}

// ClassifierEntry is the designated short-context, low-temperature model
// used for task classification.
var ClassifierEntry = ChainEntry{Provider: "groq", ModelKey: "fast"}
