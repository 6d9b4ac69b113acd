package credentials

import (
	"context"
	"errors"
	"testing"
)

func TestRotateAdvancesToNextActive(t *testing.T) {
	s := NewStore()
	s.Register("openai", []string{"key-a", "key-b"})

	key, ok := s.Get(context.Background(), "openai")
	if !ok || key != "key-a" {
		t.Fatalf("expected key-a, got %q ok=%v", key, ok)
	}

	if !s.Rotate("openai") {
		t.Fatal("expected rotation to succeed")
	}
	key, ok = s.Get(context.Background(), "openai")
	if !ok || key != "key-b" {
		t.Fatalf("expected key-b after rotation, got %q ok=%v", key, ok)
	}
}

func TestRotateExhaustsCredentials(t *testing.T) {
	s := NewStore()
	s.Register("openai", []string{"only-key"})

	if s.Rotate("openai") {
		t.Fatal("expected rotation to fail with a single credential")
	}
	if s.IsAvailable("openai") {
		t.Fatal("expected provider to be unavailable after exhausting credentials")
	}
}

func TestLocalOnlyAlwaysAvailable(t *testing.T) {
	s := NewStore()
	s.RegisterLocalOnly("ollama")
	if !s.IsAvailable("ollama") {
		t.Fatal("expected local-only provider to be available")
	}
	if s.Rotate("ollama") {
		t.Fatal("rotation on a local-only provider should be a no-op failure")
	}
}

func TestRequestScopedOverrideTakesPrecedence(t *testing.T) {
	s := NewStore()
	s.Register("openai", []string{"process-key"})

	ctx := WithOverrides(context.Background(), map[string][]string{"openai": {"override-key"}})
	key, ok := s.Get(ctx, "openai")
	if !ok || key != "override-key" {
		t.Fatalf("expected override-key, got %q ok=%v", key, ok)
	}

	key, ok = s.Get(context.Background(), "openai")
	if !ok || key != "process-key" {
		t.Fatalf("override must not leak into the process-wide lookup, got %q ok=%v", key, ok)
	}
}

func TestIsRateLimitError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("HTTP 429: Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("quota exceeded for this month"), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsRateLimitError(c.err); got != c.want {
			t.Errorf("IsRateLimitError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
