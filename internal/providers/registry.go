package providers

import (
	"context"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/credentials"
)

// Kind selects which wire implementation backs a configured provider.
type Kind string

const (
	KindLocal            Kind = "local"
	KindOpenAICompatible Kind = "openai_compatible"
	KindAccountScoped    Kind = "account_scoped"
)

// Spec is the static configuration for one provider entry in the registry.
// Secrets are NOT part of the spec; the registry resolves the current
// credential through the credential store on every GetModel call, so a
// rotation is picked up the next time a handle is constructed.
type Spec struct {
	Name         string
	Kind         Kind
	Enabled      bool
	BaseURL      string
	DefaultModel string
	Catalog      []Model
}

// Registry implements the Model Provider Registry (C2). It owns the static
// provider specs and constructs ChatModel handles on demand, consulting
// the credential store for the secret each handle should carry.
type Registry struct {
	store *credentials.Store
	specs map[string]Spec
}

// NewRegistry builds a registry over the given provider specs.
func NewRegistry(store *credentials.Store, specs []Spec) *Registry {
	byName := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if !s.Enabled {
			continue
		}
		byName[s.Name] = s
	}
	return &Registry{store: store, specs: byName}
}

// Providers returns the names of enabled providers in no particular order.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.specs))
	for name := range r.specs {
		out = append(out, name)
	}
	return out
}

// Spec returns the static spec for a provider, if enabled.
func (r *Registry) Spec(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// GetModel constructs a ChatModel for (provider, modelName, temperature),
// bound to the provider's current credential. Returns (nil, false) when
// the provider is unknown, disabled, or has no active credential.
//
// Handles are cheap to construct and are deliberately not cached: after a
// credential rotation the caller simply asks again and receives a handle
// carrying the next credential.
func (r *Registry) GetModel(ctx context.Context, provider, modelName string, temperature float64) (ChatModel, bool) {
	spec, ok := r.specs[provider]
	if !ok {
		return nil, false
	}

	switch spec.Kind {
	case KindLocal:
		p := NewLocalProvider(LocalConfig{BaseURL: spec.BaseURL, DefaultModel: spec.DefaultModel})
		return p.Bind(modelName, temperature), true

	case KindOpenAICompatible:
		key, ok := r.store.Get(ctx, provider)
		if !ok || key == "" {
			return nil, false
		}
		p := NewOpenAICompatibleProvider(OpenAICompatibleConfig{
			Name:         spec.Name,
			BaseURL:      spec.BaseURL,
			APIKey:       key,
			DefaultModel: spec.DefaultModel,
			ModelCatalog: spec.Catalog,
		})
		return p.Bind(modelName, temperature), true

	case KindAccountScoped:
		key, ok := r.store.Get(ctx, provider)
		if !ok || key == "" {
			return nil, false
		}
		accountID, token, ok := SplitAccountCredential(key)
		if !ok {
			return nil, false
		}
		p := NewAccountScopedProvider(AccountScopedConfig{
			Name:         spec.Name,
			BaseURL:      spec.BaseURL,
			AccountID:    accountID,
			APIToken:     token,
			DefaultModel: spec.DefaultModel,
			ModelCatalog: spec.Catalog,
		})
		return p.Bind(modelName, temperature), true
	}
	return nil, false
}

// JoinAccountCredential packs an account-id + API-token pair into the
// single opaque string the credential store rotates over.
func JoinAccountCredential(accountID, token string) string {
	return accountID + ":" + token
}

// SplitAccountCredential is the inverse of JoinAccountCredential. The
// account id never contains a colon; the token may.
func SplitAccountCredential(cred string) (accountID, token string, ok bool) {
	i := strings.IndexByte(cred, ':')
	if i <= 0 || i == len(cred)-1 {
		return "", "", false
	}
	return cred[:i], cred[i+1:], true
}
