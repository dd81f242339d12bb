package auth

import (
	"testing"
	"time"

	"travelbook/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123", "travelbook")
	now := time.Now()

	token, err := issuer.Issue("USR0001", "SES0001", now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "USR0001", claims.Subject)
	assert.Equal(t, "SES0001", claims.SessionID)
	assert.Equal(t, "travelbook", claims.Issuer)

	again, err := issuer.Issue("USR0001", "SES0001", now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, token, again)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123", "travelbook")
	now := time.Now()

	t.Run("Empty", func(t *testing.T) {
		_, err := issuer.Parse("")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := issuer.Issue("USR0001", "SES0001", now.Add(-2*time.Hour), now.Add(-time.Hour))
		require.NoError(t, err)
		_, err = issuer.Parse(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenIssuer("another-secret-of-length", "travelbook")
		token, err := other.Issue("USR0001", "SES0001", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = issuer.Parse(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnsignedAlgorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "USR0001", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Parse(signed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	ok, err := CheckPassword(hash, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong-pass")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "s3cret-pass")
	assert.Error(t, err)
}
