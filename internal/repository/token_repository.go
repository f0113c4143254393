package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// TokenRepo persists refresh token hashes (never the raw token).
type TokenRepo struct{ DB *sql.DB }

// NewTokenRepo creates a new TokenRepo.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC())
	if err != nil {
		return fmt.Errorf("repository.TokenRepo.StoreRefresh: %w", err)
	}
	return nil
}

// ValidateRefresh returns the owner of a live token. Unknown, revoked and
// expired tokens all report model.ErrUnauthorized.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("refresh token: %w", model.ErrUnauthorized)
	}
	if err != nil {
		return 0, fmt.Errorf("repository.TokenRepo.ValidateRefresh: %w", err)
	}
	if revokedAt.Valid || now.After(expiresAt) {
		return 0, fmt.Errorf("refresh token: %w", model.ErrUnauthorized)
	}
	return userID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	if err != nil {
		return fmt.Errorf("repository.TokenRepo.RevokeByHash: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes all of a user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	if err != nil {
		return fmt.Errorf("repository.TokenRepo.RevokeAllForUser: %w", err)
	}
	return nil
}
