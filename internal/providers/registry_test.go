package providers

import (
	"context"
	"testing"

	"github.com/ai-innovation-art/quasar/internal/credentials"
)

func testRegistry() (*Registry, *credentials.Store) {
	store := credentials.NewStore()
	store.Register("groq", []string{"gsk_first", "gsk_second"})
	store.Register("edge", []string{JoinAccountCredential("acct-123", "tok-abc")})
	store.RegisterLocalOnly("local")
	reg := NewRegistry(store, []Spec{
		{Name: "groq", Kind: KindOpenAICompatible, Enabled: true, BaseURL: "https://api.groq.example/v1"},
		{Name: "edge", Kind: KindAccountScoped, Enabled: true, BaseURL: "https://api.edge.example/accounts"},
		{Name: "local", Kind: KindLocal, Enabled: true, BaseURL: "http://localhost:11434", DefaultModel: "qwen2.5-coder"},
		{Name: "disabled", Kind: KindOpenAICompatible, Enabled: false},
	})
	return reg, store
}

func TestGetModelKnownProviders(t *testing.T) {
	reg, _ := testRegistry()
	ctx := context.Background()

	for _, name := range []string{"groq", "edge", "local"} {
		m, ok := reg.GetModel(ctx, name, "some-model", 0.2)
		if !ok {
			t.Fatalf("GetModel(%q) not ok", name)
		}
		if m.Provider() != name {
			t.Errorf("Provider() = %q, want %q", m.Provider(), name)
		}
	}
}

func TestGetModelUnknownAndDisabled(t *testing.T) {
	reg, _ := testRegistry()
	ctx := context.Background()

	if _, ok := reg.GetModel(ctx, "nope", "m", 0); ok {
		t.Error("unknown provider should not resolve")
	}
	if _, ok := reg.GetModel(ctx, "disabled", "m", 0); ok {
		t.Error("disabled provider should not resolve")
	}
}

func TestGetModelAfterRotationExhaustion(t *testing.T) {
	reg, store := testRegistry()
	ctx := context.Background()

	if !store.Rotate("groq") {
		t.Fatal("first rotation should land on the second credential")
	}
	if _, ok := reg.GetModel(ctx, "groq", "m", 0); !ok {
		t.Fatal("second credential should still resolve a handle")
	}
	if store.Rotate("groq") {
		t.Fatal("second rotation should exhaust the provider")
	}
	if _, ok := reg.GetModel(ctx, "groq", "m", 0); ok {
		t.Error("exhausted provider should not resolve")
	}
}

func TestGetModelRequestScopedOverride(t *testing.T) {
	reg, _ := testRegistry()
	ctx := credentials.WithOverrides(context.Background(), map[string][]string{
		"groq": {"gsk_override"},
	})
	if _, ok := reg.GetModel(ctx, "groq", "m", 0); !ok {
		t.Fatal("override credential should resolve a handle")
	}
}

func TestSplitAccountCredential(t *testing.T) {
	tests := []struct {
		in        string
		id, token string
		ok        bool
	}{
		{"acct:tok", "acct", "tok", true},
		{"acct:tok:with:colons", "acct", "tok:with:colons", true},
		{"no-separator", "", "", false},
		{":leading", "", "", false},
		{"trailing:", "", "", false},
	}
	for _, tt := range tests {
		id, token, ok := SplitAccountCredential(tt.in)
		if id != tt.id || token != tt.token || ok != tt.ok {
			t.Errorf("SplitAccountCredential(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, id, token, ok, tt.id, tt.token, tt.ok)
		}
	}
}
