package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACIssueAndVerify(t *testing.T) {
	v := NewHMACVerifier([]byte("test_jwt_secret_key"))

	token, err := v.IssueToken(Identity{UID: "dev-user", Email: "dev@example.com"}, time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "dev-user", identity.UID)
	assert.Equal(t, "dev@example.com", identity.Email)
}

func TestHMACRejectsWrongSecretAndExpiry(t *testing.T) {
	issuer := NewHMACVerifier([]byte("one"))
	token, err := issuer.IssueToken(Identity{UID: "u"}, time.Hour)
	require.NoError(t, err)

	_, err = NewHMACVerifier([]byte("two")).Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := issuer.IssueToken(Identity{UID: "u"}, -time.Minute)
	require.NoError(t, err)
	_, err = issuer.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = issuer.IssueToken(Identity{}, time.Hour)
	assert.Error(t, err)
}

func TestMockVerifier(t *testing.T) {
	m := NewMockVerifier().AddToken("good", "alice")

	identity, err := m.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UID)

	_, err = m.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, []string{"good", "bad"}, m.Calls)
}
