package oauth2

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateState is returned by PendingStore.Put when a record with
	// the same state value already exists. With 256 bits of state entropy
	// this is practically unreachable, but it is checked anyway.
	ErrDuplicateState = errors.New("oauth2: duplicate state")

	// ErrUnknownState is returned by PendingStore.Take when no record
	// exists for the given state, including states that were already
	// consumed by an earlier Take.
	ErrUnknownState = errors.New("oauth2: unknown state")

	// ErrExpiredState is returned by PendingStore.Take when the record
	// exists but its TTL has elapsed. The record is removed on this path
	// so the state can never be reused.
	ErrExpiredState = errors.New("oauth2: expired state")

	// ErrRefreshNotSupported is returned by providers that cannot refresh
	// tokens. Callers must fall back to a full re-authorization.
	ErrRefreshNotSupported = errors.New("oauth2: provider does not support token refresh")
)

// TokenExchangeError describes a failed token-endpoint request, either a
// transport failure or a non-2xx response. Code and Description carry the
// provider's error fields when the response body contained them.
type TokenExchangeError struct {
	// Code is the OAuth2 error code (e.g. "invalid_grant"), if provided.
	Code string

	// Description is the provider's human-readable error description.
	Description string

	// StatusCode is the HTTP status of the token endpoint response,
	// or 0 for transport-level failures.
	StatusCode int

	// Err is the underlying transport error, if any.
	Err error
}

func (e *TokenExchangeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("token exchange failed: %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("token exchange failed: %s", e.Code)
	default:
		return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
	}
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
