// Package oauth2 implements a provider-agnostic OAuth2 authorization-code
// engine for tool-calling servers.
//
// The engine is exposed through exactly two idempotent operations on Flow:
//
//  1. IsAuthenticated checks supplied tokens, refreshes them when expired
//     and a refresh token is available, or starts a new flow by generating
//     a CSRF state (plus a PKCE pair for public clients) and returning the
//     authorization URL the user must visit.
//  2. Authorize completes a flow by consuming the pending record keyed by
//     the callback's state parameter and exchanging the authorization code
//     for tokens.
//
// Because the two operations may be invoked by independent processes at
// arbitrary delay, the PKCE verifier and caller context survive between
// them only in the PendingStore. Records are single-use and time-bounded:
// Take removes a record atomically, so a state value can complete at most
// one flow, and abandoned flows expire after DefaultPendingTTL.
//
// Concrete providers (Microsoft, Google, GitHub, generic) differ only in
// endpoint construction and minor request/response adjustments; the
// exchange and refresh plumbing is shared. Secrets are never encoded into
// the state parameter and tokens are never logged.
package oauth2
