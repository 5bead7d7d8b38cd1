package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// requestTimeout bounds every call to a provider's token endpoint.
const requestTimeout = 30 * time.Second

// Config holds the immutable configuration of a provider instance.
type Config struct {
	// ClientID is the OAuth2 client identifier (required).
	ClientID string

	// ClientSecret is the client secret for confidential clients.
	// When empty the client is treated as public and PKCE is used.
	ClientSecret string

	// RedirectURI must match the provider's app registration (required).
	RedirectURI string

	// Scopes requested during authorization, space-joined on the wire.
	Scopes []string

	// AuthorizationEndpoint and TokenEndpoint must be set before first
	// use. Built-in providers fill them automatically; the generic
	// provider requires them explicitly.
	AuthorizationEndpoint string
	TokenEndpoint         string
}

// Validate checks that the config is complete enough to run a flow.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("redirect URI is required")
	}
	if c.AuthorizationEndpoint == "" || c.TokenEndpoint == "" {
		return fmt.Errorf("authorization and token endpoints are required")
	}
	return nil
}

// Provider is the capability contract implemented by each concrete OAuth2
// provider. Implementations differ only in endpoint construction and minor
// request/response adjustments; the flow orchestration is shared.
type Provider interface {
	// Name is a stable identifier used as the tool name prefix.
	Name() string

	// Config returns the provider's immutable configuration.
	Config() Config

	// AuthorizationURL builds the URL the user must visit. codeChallenge
	// is empty for confidential clients; when present, code_challenge and
	// code_challenge_method=S256 are included.
	AuthorizationURL(state, codeChallenge string) (string, error)

	// ExchangeCode exchanges an authorization code for tokens.
	// codeVerifier is empty when PKCE was not active for the flow.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error)

	// RefreshToken performs the refresh grant. Providers without refresh
	// support return ErrRefreshNotSupported.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// base implements the pieces of the provider contract that are identical
// across providers. Concrete providers embed it and layer on their
// endpoint-specific parameters.
type base struct {
	cfg Config
	hc  *http.Client
}

func newBase(cfg Config) base {
	return base{
		cfg: cfg,
		hc:  &http.Client{Timeout: requestTimeout},
	}
}

func (b *base) Config() Config {
	return b.cfg
}

// authorizationURL builds the authorization URL from the config plus the
// flow-specific state and challenge. extra carries provider-specific
// parameters such as Microsoft's response_mode.
func (b *base) authorizationURL(state, codeChallenge string, extra url.Values) (string, error) {
	u, err := url.Parse(b.cfg.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", b.cfg.ClientID)
	q.Set("redirect_uri", b.cfg.RedirectURI)
	q.Set("state", state)

	if len(b.cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(b.cfg.Scopes, " "))
	}

	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "S256")
	}

	for key, values := range extra {
		for _, v := range values {
			q.Set(key, v)
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// exchangeForm builds the authorization_code grant request body.
func (b *base) exchangeForm(code, codeVerifier string) url.Values {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", b.cfg.RedirectURI)
	form.Set("client_id", b.cfg.ClientID)

	if b.cfg.ClientSecret != "" {
		form.Set("client_secret", b.cfg.ClientSecret)
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}
	return form
}

// refreshForm builds the refresh_token grant request body. The previous
// refresh token is preserved on the result when the provider omits one.
func (b *base) refreshForm(refreshToken string) url.Values {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", b.cfg.ClientID)

	if b.cfg.ClientSecret != "" {
		form.Set("client_secret", b.cfg.ClientSecret)
	}
	return form
}

// tokenWire is the token endpoint response shape.
type tokenWire struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postToken performs the token endpoint request and parses the response.
// All failures are surfaced as *TokenExchangeError.
func (b *base) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TokenExchangeError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.hc.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Err: err}
	}

	wire, parseErr := parseTokenBody(resp.Header.Get("Content-Type"), body)

	if resp.StatusCode != http.StatusOK {
		exchErr := &TokenExchangeError{StatusCode: resp.StatusCode}
		if parseErr == nil {
			exchErr.Code = wire.Error
			exchErr.Description = wire.ErrorDescription
		}
		return nil, exchErr
	}

	if parseErr != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Err: parseErr}
	}
	// Some providers report errors with a 200 status.
	if wire.Error != "" {
		return nil, &TokenExchangeError{
			StatusCode:  resp.StatusCode,
			Code:        wire.Error,
			Description: wire.ErrorDescription,
		}
	}
	if wire.AccessToken == "" {
		return nil, &TokenExchangeError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("token response missing access_token"),
		}
	}

	token := &TokenResponse{
		AccessToken:  wire.AccessToken,
		TokenType:    wire.TokenType,
		RefreshToken: wire.RefreshToken,
		ExpiresIn:    wire.ExpiresIn,
		Scope:        wire.Scope,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return token, nil
}

// parseTokenBody decodes a token endpoint response. JSON is the norm, but
// some providers (GitHub) default to form encoding.
func parseTokenBody(contentType string, body []byte) (*tokenWire, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse token response: %w", err)
		}
		wire := &tokenWire{
			AccessToken:      values.Get("access_token"),
			TokenType:        values.Get("token_type"),
			RefreshToken:     values.Get("refresh_token"),
			Scope:            values.Get("scope"),
			Error:            values.Get("error"),
			ErrorDescription: values.Get("error_description"),
		}
		if v := values.Get("expires_in"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				wire.ExpiresIn = n
			}
		}
		return wire, nil
	}

	var wire tokenWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &wire, nil
}
