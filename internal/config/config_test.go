package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.MaxIterations != 30 {
		t.Errorf("MaxIterations = %d", cfg.Agent.MaxIterations)
	}
	if _, ok := cfg.Providers["ollama"]; !ok {
		t.Error("ollama provider missing from defaults")
	}
}

func TestLoadFileOverridesAndInclude(t *testing.T) {
	dir := t.TempDir()
	include := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(include, []byte(`
providers:
  groq:
    enabled: true
    kind: openai_compatible
    models:
      fast:
        model_name: test-model
        temperature: 0.1
        max_tokens: 512
`), 0o644); err != nil {
		t.Fatal(err)
	}

	main := filepath.Join(dir, "quasar.yaml")
	if err := os.WriteFile(main, []byte(`
include: providers.yaml
workspace: /srv/code
agent:
  max_iterations: 12
tasks:
  chat:
    - provider: groq
      model: fast
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workspace != "/srv/code" {
		t.Errorf("workspace = %q", cfg.Workspace)
	}
	if cfg.Agent.MaxIterations != 12 {
		t.Errorf("MaxIterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ToolTimeoutSeconds != 30 {
		t.Error("unset agent fields should keep defaults")
	}

	chains := cfg.Chains()
	chat := chains[models.TaskChat]
	if len(chat) != 1 || chat[0].Provider != "groq" || chat[0].ModelKey != "fast" {
		t.Errorf("chat chain = %+v", chat)
	}

	tables := cfg.ModelTables()
	if tables["groq"]["fast"].ModelName != "test-model" {
		t.Errorf("groq fast model = %+v", tables["groq"]["fast"])
	}
}

func TestEnvLayering(t *testing.T) {
	t.Setenv("GROQ_API_KEY_1", "gsk_one")
	t.Setenv("GROQ_API_KEY_2", "gsk_two")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID_1", "acct1")
	t.Setenv("CLOUDFLARE_API_TOKEN_1", "tok1")
	t.Setenv("OLLAMA_URL", "http://10.0.0.5:11434")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.Providers["groq"].APIKeys; len(got) != 2 || got[0] != "gsk_one" {
		t.Errorf("groq keys = %v", got)
	}
	if got := cfg.Providers["cloudflare"].APIKeys; len(got) != 1 || got[0] != "acct1:tok1" {
		t.Errorf("cloudflare packed credential = %v", got)
	}
	if cfg.Providers["ollama"].BaseURL != "http://10.0.0.5:11434" {
		t.Errorf("ollama base url = %q", cfg.Providers["ollama"].BaseURL)
	}

	store := cfg.BuildCredentialStore()
	if !store.IsAvailable("groq") || !store.IsAvailable("ollama") {
		t.Error("credential store should report groq and ollama available")
	}
	if store.IsAvailable("cerebras") {
		t.Error("cerebras has no credentials and should be unavailable")
	}
}
