package memory

import "testing"

func TestTokenRegistry(t *testing.T) {
	registry := NewTokenRegistry()

	token := registry.Issue("admin-1")
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if other := registry.Issue("admin-1"); other == token {
		t.Fatalf("expected distinct tokens per issue")
	}

	userID, ok := registry.Lookup(token)
	if !ok || userID != "admin-1" {
		t.Fatalf("expected lookup to resolve admin-1, got %q %v", userID, ok)
	}

	registry.Revoke(token)
	if _, ok := registry.Lookup(token); ok {
		t.Fatalf("expected revoked token to miss")
	}
	registry.Revoke(token) // no-op
}
