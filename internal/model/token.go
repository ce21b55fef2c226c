package model

import "time"

// ProviderToken models a row in the `provider_tokens` table. Each row holds
// the Spotify OAuth credential linked by one session (the host of a room).
// Access tokens expire quickly and are refreshed in place using the refresh
// token; the row is keyed by session so a returning host does not have to
// run the consent flow again.
//
// Fields:
//  SessionID    – session that completed the consent flow.
//  AccessToken  – short-lived bearer token for provider API calls.
//  RefreshToken – long-lived token used to mint new access tokens.
//  TokenType    – token type reported by the provider (normally "Bearer").
//  ExpiresAt    – when AccessToken stops being accepted.
//  CreatedAt    – timestamp of the first link.
//  UpdatedAt    – timestamp of the last refresh.
type ProviderToken struct {
	SessionID    string    // provider_tokens.session_id
	AccessToken  string    // provider_tokens.access_token
	RefreshToken string    // provider_tokens.refresh_token
	TokenType    string    // provider_tokens.token_type
	ExpiresAt    time.Time // provider_tokens.expires_at
	CreatedAt    time.Time // provider_tokens.created_at
	UpdatedAt    time.Time // provider_tokens.updated_at
}

// Expired reports whether the access token needs a refresh before use.
func (t ProviderToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
