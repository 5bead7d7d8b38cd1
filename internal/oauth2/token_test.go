package oauth2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenResponse_IsExpired(t *testing.T) {
	t.Run("zero expiry never expires", func(t *testing.T) {
		token := &TokenResponse{AccessToken: "A"}
		assert.False(t, token.IsExpired(DefaultExpirySkew))
		assert.False(t, token.IsExpired(0))
	})

	t.Run("expires_in zero is expired immediately", func(t *testing.T) {
		token := NewTokenResponse("A", 0)
		assert.True(t, token.IsExpired(0))
	})

	t.Run("future expiry is valid", func(t *testing.T) {
		token := NewTokenResponse("A", 3600)
		assert.False(t, token.IsExpired(DefaultExpirySkew))
	})

	t.Run("skew expires tokens early", func(t *testing.T) {
		// Expires in 30s, but the 60s skew should treat it as dead.
		token := NewTokenResponse("A", 30)
		assert.True(t, token.IsExpired(DefaultExpirySkew))
		assert.False(t, token.IsExpired(0))
	})

	t.Run("negative expires_in is expired", func(t *testing.T) {
		token := NewTokenResponse("A", -10)
		assert.True(t, token.IsExpired(0))
	})
}

func TestTokenRoundTrip(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		token := &TokenResponse{
			AccessToken:  "access-abc",
			TokenType:    "Bearer",
			RefreshToken: "refresh-xyz",
			ExpiresIn:    3600,
			Scope:        "Chat.ReadWrite User.Read",
			ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond),
		}

		restored, err := TokenFromMap(token.ToMap())
		require.NoError(t, err)
		assert.Equal(t, token.AccessToken, restored.AccessToken)
		assert.Equal(t, token.TokenType, restored.TokenType)
		assert.Equal(t, token.RefreshToken, restored.RefreshToken)
		assert.Equal(t, token.ExpiresIn, restored.ExpiresIn)
		assert.Equal(t, token.Scope, restored.Scope)
		assert.True(t, token.ExpiresAt.Equal(restored.ExpiresAt))
	})

	t.Run("absent optional fields stay absent", func(t *testing.T) {
		token := &TokenResponse{AccessToken: "A", TokenType: "Bearer"}

		m := token.ToMap()
		assert.NotContains(t, m, "refresh_token")
		assert.NotContains(t, m, "expires_in")
		assert.NotContains(t, m, "expires_at")
		assert.NotContains(t, m, "scope")

		restored, err := TokenFromMap(m)
		require.NoError(t, err)
		assert.Empty(t, restored.RefreshToken)
		assert.True(t, restored.ExpiresAt.IsZero())
		assert.False(t, restored.IsExpired(DefaultExpirySkew))
	})
}

func TestTokenFromMap(t *testing.T) {
	t.Run("missing access_token", func(t *testing.T) {
		_, err := TokenFromMap(map[string]interface{}{"refresh_token": "R"})
		require.Error(t, err)
	})

	t.Run("expires_in as float64 from JSON", func(t *testing.T) {
		token, err := TokenFromMap(map[string]interface{}{
			"access_token": "A",
			"expires_in":   float64(120),
		})
		require.NoError(t, err)
		assert.Equal(t, 120, token.ExpiresIn)
		assert.False(t, token.ExpiresAt.IsZero())
	})

	t.Run("negative expires_in yields expired token", func(t *testing.T) {
		token, err := TokenFromMap(map[string]interface{}{
			"access_token":  "A",
			"refresh_token": "R",
			"expires_in":    float64(-10),
		})
		require.NoError(t, err)
		assert.True(t, token.IsExpired(0))
	})

	t.Run("token_type defaults to Bearer", func(t *testing.T) {
		token, err := TokenFromMap(map[string]interface{}{"access_token": "A"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer", token.TokenType)
	})

	t.Run("invalid expires_at is rejected", func(t *testing.T) {
		_, err := TokenFromMap(map[string]interface{}{
			"access_token": "A",
			"expires_at":   "not-a-time",
		})
		require.Error(t, err)
	})
}
