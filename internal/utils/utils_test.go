package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, 15*time.Minute, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)

	id, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestParseAccessTokenRejects(t *testing.T) {
	expired, err := NewAccessToken("s3cret", 42, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	good, err := NewAccessToken("s3cret", 42, time.Minute, time.Now())
	require.NoError(t, err)

	cases := map[string]struct{ secret, token string }{
		"expired":      {"s3cret", expired.Token},
		"wrong secret": {"other", good.Token},
		"alg none":     {"s3cret", unsigned},
		"garbage":      {"s3cret", "not.a.jwt"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(c.secret, c.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRefreshToken(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	a, err := NewRefreshToken(7*24*time.Hour, now)
	require.NoError(t, err)
	b, err := NewRefreshToken(7*24*time.Hour, now)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Equal(t, now.Add(7*24*time.Hour), a.Exp)

	h := HashRefreshRaw(a.Raw)
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashRefreshRaw(a.Raw))
	assert.NotEqual(t, h, HashRefreshRaw(b.Raw))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("master123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "master123"))
	assert.False(t, VerifyPassword(hash, "master124"))
	assert.False(t, VerifyPassword("not-a-hash", "master123"))
}
