package oauth2

import (
	"context"
	"net/url"

	"golang.org/x/oauth2/endpoints"
)

// GoogleProvider authenticates against Google's OAuth2 endpoints.
type GoogleProvider struct {
	base
}

// NewGoogleProvider creates a Google provider with the standard endpoints.
func NewGoogleProvider(cfg Config) *GoogleProvider {
	cfg.AuthorizationEndpoint = endpoints.Google.AuthURL
	cfg.TokenEndpoint = endpoints.Google.TokenURL

	return &GoogleProvider{base: newBase(cfg)}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) AuthorizationURL(state, codeChallenge string) (string, error) {
	// access_type=offline plus forced consent is what makes Google issue
	// a refresh token.
	return p.authorizationURL(state, codeChallenge, url.Values{
		"access_type": {"offline"},
		"prompt":      {"consent"},
	})
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	return p.postToken(ctx, p.exchangeForm(code, codeVerifier))
}

func (p *GoogleProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	token, err := p.postToken(ctx, p.refreshForm(refreshToken))
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}
