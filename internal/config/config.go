// Package config loads quasar.yaml and layers process environment
// variables over it. The file supports $include directives and
// ${ENV_VAR} expansion.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ai-innovation-art/quasar/internal/credentials"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Logging   LoggingConfig             `yaml:"logging"`
	Workspace string                    `yaml:"workspace"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Tasks     map[string][]routing.ChainEntry `yaml:"tasks"`
	Agent     AgentConfig               `yaml:"agent"`
	Tools     ToolsConfig               `yaml:"tools"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProviderConfig is the static configuration for one model provider.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Kind    string `yaml:"kind"`
	BaseURL string `yaml:"base_url"`

	// APIKeys are ordered credentials; later entries serve after the
	// earlier ones are rate-limited. Normally populated from the
	// environment rather than the file.
	APIKeys []string `yaml:"api_keys"`

	// AccountID is decoded and merged but not read when the credential
	// store is built; account-scoped providers take their APIKeys entries
	// already packed as accountID:token.
	AccountID string `yaml:"account_id"`

	DefaultModel string                           `yaml:"default_model"`
	Models       map[string]routing.ModelConfig   `yaml:"models"`
}

// AgentConfig tunes the agentic loop.
type AgentConfig struct {
	MaxIterations          int `yaml:"max_iterations"`
	ToolTimeoutSeconds     int `yaml:"tool_timeout_seconds"`
	PackageTimeoutSeconds  int `yaml:"package_timeout_seconds"`
	ProviderTimeoutSeconds int `yaml:"provider_timeout_seconds"`
	SummarizeThreshold     int `yaml:"summarize_threshold"`
}

// ToolsConfig gates tool capabilities.
type ToolsConfig struct {
	EnableExec  bool   `yaml:"enable_exec"`
	EnableWeb   bool   `yaml:"enable_web"`
	BraveAPIKey string `yaml:"brave_api_key"`
}

// Default returns the built-in configuration: all four providers known,
// enabled lazily by the presence of credentials in the environment.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Providers: map[string]ProviderConfig{
			"groq": {
				Enabled: true,
				Kind:    string(providers.KindOpenAICompatible),
				BaseURL: "https://api.groq.com/openai/v1",
			},
			"cerebras": {
				Enabled: true,
				Kind:    string(providers.KindOpenAICompatible),
				BaseURL: "https://api.cerebras.ai/v1",
			},
			"cloudflare": {
				Enabled: true,
				Kind:    string(providers.KindAccountScoped),
				BaseURL: "https://api.cloudflare.com/client/v4/accounts",
			},
			"ollama": {
				Enabled:      true,
				Kind:         string(providers.KindLocal),
				BaseURL:      "http://localhost:11434",
				DefaultModel: "qwen2.5-coder:7b",
			},
		},
		Agent: AgentConfig{
			MaxIterations:          30,
			ToolTimeoutSeconds:     30,
			PackageTimeoutSeconds:  180,
			ProviderTimeoutSeconds: 60,
			SummarizeThreshold:     10,
		},
		Tools: ToolsConfig{EnableExec: true, EnableWeb: true},
	}
}

// Load reads path (optional), merges it over the defaults, then layers
// environment credentials on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		raw, err := LoadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		fileCfg, err := decodeRawConfig(raw)
		if err != nil {
			return nil, err
		}
		cfg.merge(fileCfg)
	}

	cfg.applyEnv()
	return cfg, nil
}

// merge overlays non-zero fields of other onto c. A provider entry's
// Enabled flag is the exception: it is always taken from other, so a file
// entry that omits enabled disables that provider.
func (c *Config) merge(other *Config) {
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
	if other.Workspace != "" {
		c.Workspace = other.Workspace
	}
	for name, pc := range other.Providers {
		base, ok := c.Providers[name]
		if !ok {
			c.Providers[name] = pc
			continue
		}
		base.Enabled = pc.Enabled
		if pc.Kind != "" {
			base.Kind = pc.Kind
		}
		if pc.BaseURL != "" {
			base.BaseURL = pc.BaseURL
		}
		if len(pc.APIKeys) > 0 {
			base.APIKeys = pc.APIKeys
		}
		if pc.AccountID != "" {
			base.AccountID = pc.AccountID
		}
		if pc.DefaultModel != "" {
			base.DefaultModel = pc.DefaultModel
		}
		if len(pc.Models) > 0 {
			base.Models = pc.Models
		}
		c.Providers[name] = base
	}
	if len(other.Tasks) > 0 {
		c.Tasks = other.Tasks
	}
	if other.Agent.MaxIterations != 0 {
		c.Agent.MaxIterations = other.Agent.MaxIterations
	}
	if other.Agent.ToolTimeoutSeconds != 0 {
		c.Agent.ToolTimeoutSeconds = other.Agent.ToolTimeoutSeconds
	}
	if other.Agent.PackageTimeoutSeconds != 0 {
		c.Agent.PackageTimeoutSeconds = other.Agent.PackageTimeoutSeconds
	}
	if other.Agent.ProviderTimeoutSeconds != 0 {
		c.Agent.ProviderTimeoutSeconds = other.Agent.ProviderTimeoutSeconds
	}
	if other.Agent.SummarizeThreshold != 0 {
		c.Agent.SummarizeThreshold = other.Agent.SummarizeThreshold
	}
	c.Tools.EnableExec = c.Tools.EnableExec || other.Tools.EnableExec
	c.Tools.EnableWeb = c.Tools.EnableWeb || other.Tools.EnableWeb
	if other.Tools.BraveAPIKey != "" {
		c.Tools.BraveAPIKey = other.Tools.BraveAPIKey
	}
}

// applyEnv reads the numbered credential slots once and layers them over
// the file configuration:
//
//	GROQ_API_KEY_1, GROQ_API_KEY_2, ...
//	CEREBRAS_API_KEY_1, ...
//	CLOUDFLARE_ACCOUNT_ID_1 + CLOUDFLARE_API_TOKEN_1, ...
//	OLLAMA_URL
//	BRAVE_API_KEY
func (c *Config) applyEnv() {
	for name, pc := range c.Providers {
		prefix := strings.ToUpper(name)
		switch pc.Kind {
		case string(providers.KindOpenAICompatible):
			if keys := readNumberedEnv(prefix + "_API_KEY_"); len(keys) > 0 {
				pc.APIKeys = keys
			}
		case string(providers.KindAccountScoped):
			var packed []string
			for n := 1; ; n++ {
				account := os.Getenv(fmt.Sprintf("%s_ACCOUNT_ID_%d", prefix, n))
				token := os.Getenv(fmt.Sprintf("%s_API_TOKEN_%d", prefix, n))
				if account == "" || token == "" {
					break
				}
				packed = append(packed, providers.JoinAccountCredential(account, token))
			}
			if len(packed) > 0 {
				pc.APIKeys = packed
			}
		case string(providers.KindLocal):
			if url := os.Getenv("OLLAMA_URL"); url != "" {
				pc.BaseURL = url
			}
		}
		c.Providers[name] = pc
	}
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		c.Tools.BraveAPIKey = key
	}
}

func readNumberedEnv(prefix string) []string {
	var out []string
	for n := 1; ; n++ {
		v := os.Getenv(fmt.Sprintf("%s%d", prefix, n))
		if v == "" {
			break
		}
		out = append(out, v)
	}
	return out
}

// BuildCredentialStore registers every enabled provider's credentials.
func (c *Config) BuildCredentialStore() *credentials.Store {
	store := credentials.NewStore()
	for name, pc := range c.Providers {
		if !pc.Enabled {
			continue
		}
		if pc.Kind == string(providers.KindLocal) {
			store.RegisterLocalOnly(name)
			continue
		}
		if len(pc.APIKeys) > 0 {
			store.Register(name, pc.APIKeys)
		}
	}
	return store
}

// ProviderSpecs converts the provider table into registry specs.
func (c *Config) ProviderSpecs() []providers.Spec {
	specs := make([]providers.Spec, 0, len(c.Providers))
	for name, pc := range c.Providers {
		specs = append(specs, providers.Spec{
			Name:         name,
			Kind:         providers.Kind(pc.Kind),
			Enabled:      pc.Enabled,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	}
	return specs
}

// Chains converts the task table into the router's chain map, falling
// back to the built-in defaults when the file does not override it.
func (c *Config) Chains() map[models.TaskType][]routing.ChainEntry {
	if len(c.Tasks) == 0 {
		return routing.DefaultChains()
	}
	out := make(map[models.TaskType][]routing.ChainEntry, len(c.Tasks))
	for name, chain := range c.Tasks {
		out[models.TaskType(name)] = chain
	}
	return out
}

// ModelTables converts per-provider model tables for the router, falling
// back to the built-in defaults when no provider declares models.
func (c *Config) ModelTables() map[string]map[string]routing.ModelConfig {
	out := make(map[string]map[string]routing.ModelConfig)
	defaults := routing.DefaultModelTables()
	for name, pc := range c.Providers {
		if len(pc.Models) > 0 {
			out[name] = pc.Models
		} else if table, ok := defaults[name]; ok {
			out[name] = table
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

// ToolTimeout returns the per-tool timeout.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Agent.ToolTimeoutSeconds) * time.Second
}

// PackageTimeout returns the extended timeout for package installs.
func (c *Config) PackageTimeout() time.Duration {
	return time.Duration(c.Agent.PackageTimeoutSeconds) * time.Second
}

// ProviderTimeout returns the model invocation timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Agent.ProviderTimeoutSeconds) * time.Second
}
