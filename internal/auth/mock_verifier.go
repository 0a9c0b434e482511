package auth

import (
	"context"
	"fmt"
	"sync"
)

// MockVerifier is a Verifier for tests. Tokens map directly to identities.
type MockVerifier struct {
	mu     sync.Mutex
	tokens map[string]*Identity
	Calls  []string

	// VerifyFunc overrides the token table when set
	VerifyFunc func(ctx context.Context, token string) (*Identity, error)
}

// NewMockVerifier creates a mock with no known tokens
func NewMockVerifier() *MockVerifier {
	return &MockVerifier{tokens: make(map[string]*Identity)}
}

// AddToken registers token as valid for uid
func (m *MockVerifier) AddToken(token, uid string) *MockVerifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = &Identity{UID: uid, Email: uid + "@example.com"}
	return m
}

func (m *MockVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	fn := m.VerifyFunc
	identity, ok := m.tokens[token]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, token)
	}
	if token == "" {
		return nil, ErrNoToken
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", ErrInvalidToken)
	}
	copied := *identity
	return &copied, nil
}
