// Package repository contains the data access layer. The only durable state
// in this service is the provider credential table: rooms and sessions are
// process-lifetime by design, but a host's Spotify tokens must survive a
// restart or every host would be sent back through the consent flow.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/party-rooms/internal/model"
)

// ProviderTokenRepo persists Spotify OAuth tokens keyed by session id.
type ProviderTokenRepo struct{ DB *sql.DB }

func NewProviderTokenRepo(db *sql.DB) *ProviderTokenRepo { return &ProviderTokenRepo{DB: db} }

// Get returns the credential linked by sessionID, or sql.ErrNoRows.
func (r *ProviderTokenRepo) Get(ctx context.Context, sessionID string) (model.ProviderToken, error) {
	var t model.ProviderToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT session_id, access_token, refresh_token, token_type, expires_at, created_at, updated_at FROM provider_tokens WHERE session_id=? LIMIT 1",
		sessionID).Scan(&t.SessionID, &t.AccessToken, &t.RefreshToken, &t.TokenType, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.ProviderToken{}, err
	}
	return t, nil
}

// Upsert inserts or replaces the credential for sessionID. Called both when
// the consent flow completes and on every access-token refresh.
func (r *ProviderTokenRepo) Upsert(ctx context.Context, sessionID, accessToken, refreshToken, tokenType string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO provider_tokens (session_id, access_token, refresh_token, token_type, expires_at)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE access_token=VALUES(access_token), refresh_token=VALUES(refresh_token),
		 token_type=VALUES(token_type), expires_at=VALUES(expires_at), updated_at=NOW()`,
		sessionID, accessToken, refreshToken, tokenType, expiresAt)
	return err
}

// Delete removes the credential for sessionID, unlinking the account.
func (r *ProviderTokenRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM provider_tokens WHERE session_id=?", sessionID)
	return err
}
