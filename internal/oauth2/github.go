package oauth2

import (
	"context"

	"golang.org/x/oauth2/endpoints"
)

// GitHubProvider authenticates against GitHub's OAuth endpoints. GitHub
// answers token requests form-encoded unless JSON is requested explicitly,
// which postToken handles either way.
type GitHubProvider struct {
	base
}

// NewGitHubProvider creates a GitHub provider with the standard endpoints.
func NewGitHubProvider(cfg Config) *GitHubProvider {
	cfg.AuthorizationEndpoint = endpoints.GitHub.AuthURL
	cfg.TokenEndpoint = endpoints.GitHub.TokenURL

	return &GitHubProvider{base: newBase(cfg)}
}

func (p *GitHubProvider) Name() string {
	return "github"
}

func (p *GitHubProvider) AuthorizationURL(state, codeChallenge string) (string, error) {
	return p.authorizationURL(state, codeChallenge, nil)
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	return p.postToken(ctx, p.exchangeForm(code, codeVerifier))
}

// RefreshToken is not supported: classic GitHub OAuth apps issue
// non-expiring access tokens without a refresh grant.
func (p *GitHubProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return nil, ErrRefreshNotSupported
}
