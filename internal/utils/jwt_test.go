package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenRoundTrip(t *testing.T) {
	const secret = "test-secret"

	at, err := NewAccessToken(secret, 42, "ADMIN", 15)
	require.NoError(t, err)
	require.NotEmpty(t, at.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), at.Exp, 5*time.Second)

	tok, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, tok.Valid)

	claims, ok := tok.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.EqualValues(t, 42, claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
}

func TestNewAccessTokenWrongSecret(t *testing.T) {
	at, err := NewAccessToken("right", 1, "USER", 5)
	require.NoError(t, err)

	tok, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("wrong"), nil
	})
	assert.Error(t, err)
	assert.True(t, tok == nil || !tok.Valid)
}

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96) // 48 random bytes hex encoded
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), a.Exp, 5*time.Second)

	// Hashing is deterministic and never stores the raw value.
	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
	assert.NotEqual(t, a.Raw, HashRefreshRaw(a.Raw))
	assert.Len(t, HashRefreshRaw(a.Raw), 64)
}
