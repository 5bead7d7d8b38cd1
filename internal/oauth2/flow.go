package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"teamsmcp/pkg/logging"
)

// CheckResult is the structured response of Flow.IsAuthenticated.
type CheckResult struct {
	Authenticated bool                   `json:"authenticated"`
	Tokens        map[string]interface{} `json:"tokens,omitempty"`
	AuthURL       string                 `json:"auth_url,omitempty"`
	State         string                 `json:"state,omitempty"`
	CallbackState interface{}            `json:"callback_state,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Message       string                 `json:"message,omitempty"`
}

// AuthorizeResult is the structured response of Flow.Authorize.
type AuthorizeResult struct {
	Success       bool                   `json:"success"`
	Tokens        map[string]interface{} `json:"tokens,omitempty"`
	CallbackState interface{}            `json:"callback_state,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Message       string                 `json:"message,omitempty"`
}

// Flow orchestrates the two-operation authorization protocol for one
// provider. All faults are normalized into structured results; neither
// operation ever fails with a bare error.
type Flow struct {
	provider Provider
	store    PendingStore
	skew     time.Duration

	// refreshGroup deduplicates concurrent refreshes of the same refresh
	// token so a burst of expired-token checks results in one remote call.
	refreshGroup singleflight.Group
}

// NewFlow creates a flow for the given provider backed by store.
func NewFlow(provider Provider, store PendingStore) *Flow {
	return &Flow{
		provider: provider,
		store:    store,
		skew:     DefaultExpirySkew,
	}
}

// Provider returns the provider this flow authenticates against.
func (f *Flow) Provider() Provider {
	return f.provider
}

// IsAuthenticated checks whether the supplied tokens are valid, refreshing
// them when possible, or starts a new authorization flow when no usable
// tokens exist.
func (f *Flow) IsAuthenticated(ctx context.Context, tokens *TokenResponse, callbackURL string, callbackState interface{}) *CheckResult {
	if tokens != nil && tokens.AccessToken != "" {
		if !tokens.IsExpired(f.skew) {
			return &CheckResult{
				Authenticated: true,
				Tokens:        tokens.ToMap(),
				Message:       "Valid tokens provided",
			}
		}

		if tokens.RefreshToken != "" {
			return f.refresh(ctx, tokens)
		}
		// Expired with no refresh token: fall through and start over.
	}

	return f.start(callbackURL, callbackState)
}

// start begins a new authorization flow: state, optional PKCE pair, pending
// record, authorization URL.
func (f *Flow) start(callbackURL string, callbackState interface{}) *CheckResult {
	if callbackURL == "" {
		return &CheckResult{
			Authenticated: false,
			Error:         "callback_url_required",
			Message:       "callback_url required when tokens not provided",
		}
	}

	state, err := GenerateState()
	if err != nil {
		return f.startFailed(err)
	}

	// Public clients (no secret) are protected by PKCE instead.
	var verifier, challenge string
	if f.provider.Config().ClientSecret == "" {
		verifier, challenge, err = GeneratePKCE()
		if err != nil {
			return f.startFailed(err)
		}
	}

	if err := f.store.Put(&PendingAuthorization{
		State:         state,
		CodeVerifier:  verifier,
		CallbackState: callbackState,
	}); err != nil {
		return f.startFailed(err)
	}

	authURL, err := f.provider.AuthorizationURL(state, challenge)
	if err != nil {
		return f.startFailed(err)
	}

	logging.Debug("OAuth", "Started authorization flow for provider=%s pkce=%v", f.provider.Name(), verifier != "")

	return &CheckResult{
		Authenticated: false,
		AuthURL:       authURL,
		State:         state,
		CallbackState: callbackState,
		Message:       fmt.Sprintf("Visit the auth_url to authenticate with %s", f.provider.Name()),
	}
}

func (f *Flow) startFailed(err error) *CheckResult {
	logging.Error("OAuth", err, "Failed to start authorization flow for provider=%s", f.provider.Name())
	return &CheckResult{
		Authenticated: false,
		Error:         "internal_error",
		Message:       err.Error(),
	}
}

// refresh exchanges the refresh token for new tokens, deduplicating
// concurrent attempts for the same refresh token.
func (f *Flow) refresh(ctx context.Context, tokens *TokenResponse) *CheckResult {
	result, err, _ := f.refreshGroup.Do(tokens.RefreshToken, func() (interface{}, error) {
		return f.provider.RefreshToken(ctx, tokens.RefreshToken)
	})
	if err != nil {
		logging.Warn("OAuth", "Token refresh failed for provider=%s: %v", f.provider.Name(), err)
		return &CheckResult{
			Authenticated: false,
			Error:         errorCode(err),
			Message:       err.Error(),
		}
	}

	newTokens := result.(*TokenResponse)
	logging.Debug("OAuth", "Refreshed tokens for provider=%s (expires_in=%d)", f.provider.Name(), newTokens.ExpiresIn)

	return &CheckResult{
		Authenticated: true,
		Tokens:        newTokens.ToMap(),
		Message:       "Tokens refreshed successfully",
	}
}

// Authorize completes a flow: it consumes the pending record named by the
// callback URL's state parameter and exchanges the authorization code.
func (f *Flow) Authorize(ctx context.Context, code, callbackURL string, callbackState interface{}) *AuthorizeResult {
	if code == "" || callbackURL == "" {
		return &AuthorizeResult{
			Success: false,
			Error:   "invalid_request",
			Message: "code and callback_url are required",
		}
	}

	state, err := stateFromCallbackURL(callbackURL)
	if err != nil {
		return &AuthorizeResult{
			Success: false,
			Error:   "invalid_state",
			Message: err.Error(),
		}
	}

	// Take is single-use: a second call with the same state always fails
	// here, even if the first exchange is still in flight.
	rec, err := f.store.Take(state)
	if err != nil {
		logging.Warn("OAuth", "Rejected authorization for provider=%s: %v", f.provider.Name(), err)
		return &AuthorizeResult{
			Success: false,
			Error:   "invalid_state",
			Message: err.Error(),
		}
	}

	tokens, err := f.provider.ExchangeCode(ctx, code, rec.CodeVerifier)
	if err != nil {
		logging.Warn("OAuth", "Code exchange failed for provider=%s: %v", f.provider.Name(), err)
		return &AuthorizeResult{
			Success: false,
			Error:   errorCode(err),
			Message: "Failed to exchange authorization code",
		}
	}

	echoed := rec.CallbackState
	if echoed == nil {
		echoed = callbackState
	}

	logging.Info("OAuth", "Completed authorization flow for provider=%s", f.provider.Name())

	return &AuthorizeResult{
		Success:       true,
		Tokens:        tokens.ToMap(),
		CallbackState: echoed,
		Message:       fmt.Sprintf("Successfully authenticated with %s", f.provider.Name()),
	}
}

// stateFromCallbackURL extracts the state query parameter.
func stateFromCallbackURL(callbackURL string) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("invalid callback_url: %w", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		return "", fmt.Errorf("callback_url missing state parameter")
	}
	return state, nil
}

// errorCode maps engine and provider errors to the stable error identifiers
// exposed at the operation boundary.
func errorCode(err error) string {
	var exchErr *TokenExchangeError
	switch {
	case errors.Is(err, ErrRefreshNotSupported):
		return "refresh_not_supported"
	case errors.Is(err, ErrUnknownState), errors.Is(err, ErrExpiredState):
		return "invalid_state"
	case errors.As(err, &exchErr):
		if exchErr.Code != "" {
			return exchErr.Code
		}
		return "token_exchange_failed"
	default:
		return "internal_error"
	}
}
