package oauth2

import (
	"context"
	"fmt"
)

// GenericProvider works with any compliant OAuth2 service. Unlike the
// built-in providers it requires the authorization and token endpoints to
// be supplied explicitly in the config.
type GenericProvider struct {
	base
	name string
}

// NewGenericProvider creates a provider for an arbitrary OAuth2 service.
// name becomes the tool name prefix and must not be empty.
func NewGenericProvider(name string, cfg Config) (*GenericProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	return &GenericProvider{
		base: newBase(cfg),
		name: name,
	}, nil
}

func (p *GenericProvider) Name() string {
	return p.name
}

func (p *GenericProvider) AuthorizationURL(state, codeChallenge string) (string, error) {
	return p.authorizationURL(state, codeChallenge, nil)
}

func (p *GenericProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	return p.postToken(ctx, p.exchangeForm(code, codeVerifier))
}

func (p *GenericProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	token, err := p.postToken(ctx, p.refreshForm(refreshToken))
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}
