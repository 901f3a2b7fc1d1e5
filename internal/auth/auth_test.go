package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewManagerEmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewManager("", time.Hour)
	require.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	m, err := NewManager("secret", time.Hour)
	require.NoError(t, err)

	token, err := m.IssueToken(42)
	require.NoError(t, err)

	id, err := m.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestVerifyTokenExpired(t *testing.T) {
	t.Parallel()

	m, err := NewManager("secret", -time.Minute)
	require.NoError(t, err)

	token, err := m.IssueToken(42)
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	require.Equal(t, ErrInvalidToken, err)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	t.Parallel()

	issuer, err := NewManager("secret", time.Hour)
	require.NoError(t, err)
	verifier, err := NewManager("another", time.Hour)
	require.NoError(t, err)

	token, err := issuer.IssueToken(42)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	require.Equal(t, ErrInvalidToken, err)
}

func TestVerifyTokenGarbage(t *testing.T) {
	t.Parallel()

	m, err := NewManager("secret", time.Hour)
	require.NoError(t, err)

	_, err = m.VerifyToken("not.a.token")
	require.Equal(t, ErrInvalidToken, err)
}

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.True(t, VerifyPassword(hash, "hunter2"))
	require.False(t, VerifyPassword(hash, "hunter3"))
}
