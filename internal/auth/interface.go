package auth

import (
	"context"
	"errors"
)

var (
	// ErrNoToken means the request carried no usable bearer token.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken covers every verification failure: signature, expiry, audience, issuer, subject.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the caller a verified token describes
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier checks a bearer token and returns who it belongs to.
// Implementations return an error wrapping ErrInvalidToken when the token is rejected.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

var (
	_ Verifier = (*FirebaseVerifier)(nil)
	_ Verifier = (*HMACVerifier)(nil)
	_ Verifier = (*MockVerifier)(nil)
)
