package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HMACIssuer is the iss claim of locally issued development tokens
const HMACIssuer = "localmind"

// HMACVerifier validates HS256 tokens signed with a shared secret.
// Used for local development and tests where no identity provider is reachable.
type HMACVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewHMACVerifier creates a verifier for the given secret
func NewHMACVerifier(secret []byte) *HMACVerifier {
	return &HMACVerifier{secret: secret, now: time.Now}
}

// IssueToken signs a token for uid valid for ttl
func (v *HMACVerifier) IssueToken(identity Identity, ttl time.Duration) (string, error) {
	if identity.UID == "" {
		return "", errors.New("uid is required")
	}
	now := v.now()
	claims := FirebaseClaims{
		Email: identity.Email,
		Name:  identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			Issuer:    HMACIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates an HS256 token
func (v *HMACVerifier) Verify(_ context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims := &FirebaseClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithIssuer(HMACIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Identity{UID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}
