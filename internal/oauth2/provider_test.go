package oauth2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ClientID:    "client-123",
		RedirectURI: "http://localhost:3000/auth/callback",
		Scopes:      []string{"Chat.ReadWrite", "User.Read"},
	}
}

func mustParseQuery(t *testing.T, rawURL string) url.Values {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query()
}

func TestMicrosoftProvider_AuthorizationURL(t *testing.T) {
	p := NewMicrosoftProvider(testConfig(), "my-tenant")
	require.Equal(t, "microsoft", p.Name())
	require.Equal(t, "my-tenant", p.TenantID())

	authURL, err := p.AuthorizationURL("state-abc", "challenge-xyz")
	require.NoError(t, err)

	assert.Contains(t, authURL, "login.microsoftonline.com/my-tenant/")

	q := mustParseQuery(t, authURL)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "http://localhost:3000/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "Chat.ReadWrite User.Read", q.Get("scope"))
	assert.Equal(t, "challenge-xyz", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "query", q.Get("response_mode"))
	assert.Equal(t, "select_account", q.Get("prompt"))
}

func TestMicrosoftProvider_DefaultTenant(t *testing.T) {
	p := NewMicrosoftProvider(testConfig(), "")
	authURL, err := p.AuthorizationURL("s", "")
	require.NoError(t, err)
	assert.Contains(t, authURL, "/common/")
}

func TestGoogleProvider_AuthorizationURL(t *testing.T) {
	p := NewGoogleProvider(testConfig())
	require.Equal(t, "google", p.Name())

	authURL, err := p.AuthorizationURL("state-abc", "")
	require.NoError(t, err)

	q := mustParseQuery(t, authURL)
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	// No challenge was supplied, so no PKCE parameters.
	assert.Empty(t, q.Get("code_challenge"))
	assert.Empty(t, q.Get("code_challenge_method"))
}

func TestGitHubProvider_RefreshNotSupported(t *testing.T) {
	p := NewGitHubProvider(testConfig())
	require.Equal(t, "github", p.Name())

	_, err := p.RefreshToken(context.Background(), "refresh-abc")
	assert.ErrorIs(t, err, ErrRefreshNotSupported)
}

func TestGenericProvider_RequiresEndpoints(t *testing.T) {
	_, err := NewGenericProvider("custom", testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints")

	cfg := testConfig()
	cfg.AuthorizationEndpoint = "https://idp.example.com/authorize"
	cfg.TokenEndpoint = "https://idp.example.com/token"
	p, err := NewGenericProvider("custom", cfg)
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name())
}

func TestGenericProvider_RequiresName(t *testing.T) {
	cfg := testConfig()
	cfg.AuthorizationEndpoint = "https://idp.example.com/authorize"
	cfg.TokenEndpoint = "https://idp.example.com/token"
	_, err := NewGenericProvider("", cfg)
	require.Error(t, err)
}

func genericAgainst(t *testing.T, ts *httptest.Server, secret string) *GenericProvider {
	t.Helper()
	cfg := testConfig()
	cfg.ClientSecret = secret
	cfg.AuthorizationEndpoint = ts.URL + "/authorize"
	cfg.TokenEndpoint = ts.URL + "/token"
	p, err := NewGenericProvider("custom", cfg)
	require.NoError(t, err)
	return p
}

func TestExchangeCode_Success(t *testing.T) {
	var gotForm url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"A","token_type":"Bearer","expires_in":3600,"refresh_token":"R","scope":"read"}`))
	}))
	defer ts.Close()

	p := genericAgainst(t, ts, "")
	token, err := p.ExchangeCode(context.Background(), "code-abc", "verifier-xyz")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "code-abc", gotForm.Get("code"))
	assert.Equal(t, "verifier-xyz", gotForm.Get("code_verifier"))
	assert.Equal(t, "client-123", gotForm.Get("client_id"))
	assert.Empty(t, gotForm.Get("client_secret"))

	assert.Equal(t, "A", token.AccessToken)
	assert.Equal(t, "R", token.RefreshToken)
	assert.Equal(t, 3600, token.ExpiresIn)
	assert.False(t, token.ExpiresAt.IsZero())
	assert.False(t, token.IsExpired(DefaultExpirySkew))
}

func TestExchangeCode_ConfidentialClient(t *testing.T) {
	var gotForm url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"A"}`))
	}))
	defer ts.Close()

	p := genericAgainst(t, ts, "sssh")
	token, err := p.ExchangeCode(context.Background(), "code-abc", "")
	require.NoError(t, err)

	assert.Equal(t, "sssh", gotForm.Get("client_secret"))
	assert.Empty(t, gotForm.Get("code_verifier"))

	// No expires_in: token never expires, type defaults to Bearer.
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, token.ExpiresAt.IsZero())
}

func TestExchangeCode_ProviderError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer ts.Close()

	p := genericAgainst(t, ts, "")
	_, err := p.ExchangeCode(context.Background(), "stale-code", "v")
	require.Error(t, err)

	var exchErr *TokenExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, "invalid_grant", exchErr.Code)
	assert.Equal(t, "code expired", exchErr.Description)
	assert.Equal(t, http.StatusBadRequest, exchErr.StatusCode)
}

func TestExchangeCode_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // refuse connections

	p := genericAgainst(t, ts, "")
	_, err := p.ExchangeCode(context.Background(), "code", "v")
	require.Error(t, err)

	var exchErr *TokenExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Zero(t, exchErr.StatusCode)
	assert.Error(t, exchErr.Err)
}

func TestExchangeCode_FormEncodedResponse(t *testing.T) {
	// GitHub answers form-encoded unless JSON is requested; make sure the
	// fallback parser handles it.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
		w.Write([]byte("access_token=gho_abc&token_type=bearer&scope=repo"))
	}))
	defer ts.Close()

	p := genericAgainst(t, ts, "")
	token, err := p.ExchangeCode(context.Background(), "code", "")
	require.NoError(t, err)
	assert.Equal(t, "gho_abc", token.AccessToken)
	assert.Equal(t, "repo", token.Scope)
}

func TestRefreshToken_PreservesRefreshToken(t *testing.T) {
	var gotForm url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"A2","expires_in":3600}`))
	}))
	defer ts.Close()

	p := genericAgainst(t, ts, "")
	token, err := p.RefreshToken(context.Background(), "refresh-old")
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "refresh-old", gotForm.Get("refresh_token"))

	// Provider omitted a new refresh token; the old one is carried over.
	assert.Equal(t, "refresh-old", token.RefreshToken)
	assert.Equal(t, "A2", token.AccessToken)
}

func TestExchangeCode_ErrorWith200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"bad_verification_code"}`))
	}))
	defer ts.Close()

	p := genericAgainst(t, ts, "")
	_, err := p.ExchangeCode(context.Background(), "wrong", "")
	var exchErr *TokenExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, "bad_verification_code", exchErr.Code)
}
