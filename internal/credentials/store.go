// Package credentials implements the process-wide credential store (C1):
// an ordered, rotatable credential list per provider with request-scoped
// overrides layered on top.
package credentials

import (
	"context"
	"strings"
	"sync"
)

// Credential is an opaque secret with an active flag. Rotation marks the
// current credential inactive rather than deleting it, so status() can
// still report how many total credentials a provider was configured with.
type Credential struct {
	Key    string
	Active bool
}

// providerCredentials is an ordered list of credentials plus a cursor into
// the currently-selected entry.
type providerCredentials struct {
	creds        []*Credential
	cursor       int
	userProvided bool
	localOnly    bool
}

// Status reports availability for one provider.
type Status struct {
	Available    bool `json:"available"`
	Total        int  `json:"total"`
	Active       int  `json:"active"`
	UserProvided bool `json:"user_provided"`
}

// Store is the process-wide credential store. It is safe for concurrent
// use; registration and rotation are the only writers and take the
// store's write lock.
type Store struct {
	mu        sync.RWMutex
	providers map[string]*providerCredentials
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{providers: make(map[string]*providerCredentials)}
}

// Register installs the ordered credential list for a provider. Calling it
// again replaces the provider's list and resets the cursor.
func (s *Store) Register(provider string, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds := make([]*Credential, 0, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		creds = append(creds, &Credential{Key: k, Active: true})
	}
	s.providers[provider] = &providerCredentials{creds: creds, userProvided: true}
}

// RegisterLocalOnly marks a provider (e.g. a local inference server) as
// always available without needing a credential.
func (s *Store) RegisterLocalOnly(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[provider] = &providerCredentials{localOnly: true}
}

type overrideKey struct{}

// overrides holds a request-scoped credential overlay: provider -> ordered keys.
type overrides struct {
	keys map[string][]string
}

// WithOverrides returns a context carrying a request-scoped credential
// overlay. Lookups made with that context consult the overlay before
// falling back to the process-wide store. The overlay is never written to
// the store and disappears when the context is discarded.
func WithOverrides(ctx context.Context, perProvider map[string][]string) context.Context {
	return context.WithValue(ctx, overrideKey{}, &overrides{keys: perProvider})
}

func overridesFrom(ctx context.Context) *overrides {
	v, _ := ctx.Value(overrideKey{}).(*overrides)
	return v
}

// Get returns the credential at the current cursor for provider, consulting
// the request-scoped overlay first. Returns ("", false) when unavailable.
func (s *Store) Get(ctx context.Context, provider string) (string, bool) {
	if ov := overridesFrom(ctx); ov != nil {
		if keys, ok := ov.keys[provider]; ok && len(keys) > 0 {
			return keys[0], true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.providers[provider]
	if !ok {
		return "", false
	}
	if pc.localOnly {
		return "", true
	}
	if pc.cursor >= len(pc.creds) {
		return "", false
	}
	cur := pc.creds[pc.cursor]
	if !cur.Active {
		return "", false
	}
	return cur.Key, true
}

// Rotate marks the current credential for provider inactive and advances
// the cursor to the next active entry. Returns false when none remain.
func (s *Store) Rotate(provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.providers[provider]
	if !ok || pc.localOnly {
		return false
	}
	if pc.cursor < len(pc.creds) {
		pc.creds[pc.cursor].Active = false
	}
	for i := pc.cursor + 1; i < len(pc.creds); i++ {
		if pc.creds[i].Active {
			pc.cursor = i
			return true
		}
	}
	pc.cursor = len(pc.creds)
	return false
}

// IsAvailable reports whether provider currently has an active credential
// (or is local-only, which is always available).
func (s *Store) IsAvailable(provider string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.providers[provider]
	if !ok {
		return false
	}
	if pc.localOnly {
		return true
	}
	return pc.cursor < len(pc.creds) && pc.creds[pc.cursor].Active
}

// Status reports current availability for every registered provider.
func (s *Store) Status() map[string]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Status, len(s.providers))
	for name, pc := range s.providers {
		if pc.localOnly {
			out[name] = Status{Available: true, Total: 1, Active: 1}
			continue
		}
		active := 0
		for _, c := range pc.creds {
			if c.Active {
				active++
			}
		}
		out[name] = Status{
			Available:    pc.cursor < len(pc.creds) && pc.creds[pc.cursor].Active,
			Total:        len(pc.creds),
			Active:       active,
			UserProvided: pc.userProvided,
		}
	}
	return out
}

// IsRateLimitError reports whether err's message looks like a rate-limit
// or quota signal (HTTP 429 or the textual substrings "rate limit"/"quota").
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota")
}
