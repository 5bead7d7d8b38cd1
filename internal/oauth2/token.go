package oauth2

import (
	"fmt"
	"time"
)

// DefaultExpirySkew is subtracted from a token's expiry when checking
// validity, so tokens are refreshed slightly before the provider considers
// them dead. Absorbs clock drift and network latency.
const DefaultExpirySkew = 60 * time.Second

// TokenResponse is the result of a successful code exchange or refresh.
// Once constructed it is never mutated; refreshing produces a new value.
type TokenResponse struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the token lifetime in seconds as reported by the
	// provider at issuance time.
	ExpiresIn int `json:"expires_in,omitempty"`

	// Scope is the granted scope(s).
	Scope string `json:"scope,omitempty"`

	// ExpiresAt is the absolute expiration instant derived from
	// ExpiresIn. A zero value means the token never expires.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NewTokenResponse constructs a token with ExpiresAt derived from expiresIn
// seconds. expiresIn == 0 yields a token that expires immediately. Tokens
// without a lifetime are constructed directly, leaving ExpiresAt zero.
func NewTokenResponse(accessToken string, expiresIn int) *TokenResponse {
	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		ExpiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

// IsExpired reports whether the token has expired or will expire within the
// given skew. Tokens without an expiration instant never expire.
func (t *TokenResponse) IsExpired(skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(t.ExpiresAt.Add(-skew))
}

// ToMap converts the token to a map for transport across the tool boundary.
// Absent optional fields are omitted so the round trip through TokenFromMap
// is lossless.
func (t *TokenResponse) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"access_token": t.AccessToken,
		"token_type":   t.TokenType,
	}
	if t.RefreshToken != "" {
		m["refresh_token"] = t.RefreshToken
	}
	if t.ExpiresIn != 0 {
		m["expires_in"] = t.ExpiresIn
	}
	if t.Scope != "" {
		m["scope"] = t.Scope
	}
	if !t.ExpiresAt.IsZero() {
		m["expires_at"] = t.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

// TokenFromMap reconstructs a token from its map form. It accepts the
// output of ToMap as well as caller-supplied token objects that carry only
// access_token, refresh_token and expires_in/expires_at.
func TokenFromMap(m map[string]interface{}) (*TokenResponse, error) {
	accessToken, _ := m["access_token"].(string)
	if accessToken == "" {
		return nil, fmt.Errorf("token map missing access_token")
	}

	t := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}
	if v, ok := m["token_type"].(string); ok && v != "" {
		t.TokenType = v
	}
	if v, ok := m["refresh_token"].(string); ok {
		t.RefreshToken = v
	}
	if v, ok := m["scope"].(string); ok {
		t.Scope = v
	}

	// expires_in arrives as float64 from JSON decoding or as int when
	// constructed in-process.
	switch v := m["expires_in"].(type) {
	case float64:
		t.ExpiresIn = int(v)
	case int:
		t.ExpiresIn = v
	}

	if v, ok := m["expires_at"].(string); ok && v != "" {
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_at %q: %w", v, err)
		}
		t.ExpiresAt = parsed
	} else if _, ok := m["expires_in"]; ok {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	return t, nil
}
