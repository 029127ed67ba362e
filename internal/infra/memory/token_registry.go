package memory

import (
	"sync"

	"github.com/google/uuid"
)

// TokenRegistry maps opaque admin tokens to user ids. Authentication itself
// lives outside this service; handlers only need the token -> owner lookup.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{tokens: make(map[string]string)}
}

// Issue creates a fresh opaque token for the user.
func (r *TokenRegistry) Issue(userID string) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.tokens[token] = userID
	r.mu.Unlock()
	return token
}

// Lookup resolves a token to its owning user.
func (r *TokenRegistry) Lookup(token string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.tokens[token]
	return userID, ok
}

// Revoke drops a token; a no-op for unknown tokens.
func (r *TokenRegistry) Revoke(token string) {
	r.mu.Lock()
	delete(r.tokens, token)
	r.mu.Unlock()
}
