package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ADMIN", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ADMIN", 15)
	require.NoError(t, err)
	_, err = ParseAccessToken("other", tok.Token)
	assert.Error(t, err, "wrong secret")

	expired, err := NewAccessToken("s3cret", 42, "ADMIN", -5)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	// HS384 is signed with the right key but not an accepted method
	other := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, err := other.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", raw)
	assert.Error(t, err)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "ana",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, err = noSub.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", raw)
	assert.ErrorContains(t, err, "invalid subject")
}

func TestRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), a.Exp, 5*time.Second)

	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
	assert.Len(t, HashRefreshRaw(a.Raw), 64)
	assert.NotEqual(t, a.Raw, HashRefreshRaw(a.Raw))
}

func TestActivationCode(t *testing.T) {
	code, err := NewActivationCode()
	require.NoError(t, err)
	assert.Len(t, code, 32)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("Tr1p-Planner!", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "Tr1p-Planner!"))
	assert.False(t, VerifyPassword(hash, "tr1p-planner!"))
	assert.False(t, VerifyPassword("not-a-hash", "Tr1p-Planner!"))
}

func TestStrongPassword(t *testing.T) {
	for pw, want := range map[string]bool{
		"Tr1p-Planner!": true,
		"tr1p-planner!": false,
		"TRIP-PLANNER1": false,
		"Trip-Planner!": false,
		"Tr1pPlanner":   false,
		"Viagem#2026":   true,
	} {
		assert.Equal(t, want, StrongPassword(pw), pw)
	}
}
