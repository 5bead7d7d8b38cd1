package oauth2

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/oauth2/endpoints"
)

// MicrosoftProvider authenticates against Microsoft Entra ID (Azure AD)
// using tenant-scoped v2.0 endpoints.
type MicrosoftProvider struct {
	base
	tenantID string
}

// NewMicrosoftProvider creates a Microsoft provider. An empty tenantID
// falls back to the multi-tenant "common" endpoint.
func NewMicrosoftProvider(cfg Config, tenantID string) *MicrosoftProvider {
	if tenantID == "" {
		tenantID = "common"
	}

	endpoint := endpoints.AzureAD(tenantID)
	cfg.AuthorizationEndpoint = endpoint.AuthURL
	cfg.TokenEndpoint = endpoint.TokenURL

	return &MicrosoftProvider{
		base:     newBase(cfg),
		tenantID: tenantID,
	}
}

func (p *MicrosoftProvider) Name() string {
	return "microsoft"
}

// TenantID returns the tenant the provider is scoped to.
func (p *MicrosoftProvider) TenantID() string {
	return p.tenantID
}

func (p *MicrosoftProvider) AuthorizationURL(state, codeChallenge string) (string, error) {
	return p.authorizationURL(state, codeChallenge, url.Values{
		"response_mode": {"query"},
		"prompt":        {"select_account"},
	})
}

func (p *MicrosoftProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	form := p.exchangeForm(code, codeVerifier)
	// Microsoft expects the scope parameter on token requests as well.
	if len(p.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(p.cfg.Scopes, " "))
	}
	return p.postToken(ctx, form)
}

func (p *MicrosoftProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := p.refreshForm(refreshToken)
	if len(p.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(p.cfg.Scopes, " "))
	}

	token, err := p.postToken(ctx, form)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}
