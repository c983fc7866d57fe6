package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/ksyq12/tsm/internal/errors"
)

// CreateResetToken stores a hashed password reset token for a user.
// Earlier tokens for the same user are discarded.
func (s *Store) CreateResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE user_id = ?", userID); err != nil {
		return storeErr("failed to clear reset tokens", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (token_hash, user_id, expires_at) VALUES (?, ?, ?)",
		tokenHash, userID, formatTime(expiresAt)); err != nil {
		return storeErr("failed to insert reset token", err)
	}
	return tx.Commit()
}

// ConsumeResetToken deletes the token and returns its user id. Unknown and
// expired tokens both fail with UNAUTHORIZED.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var (
		userID    int64
		expiresAt string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM password_reset_tokens WHERE token_hash = ?", tokenHash).
		Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.Unauthorized("invalid or expired reset token")
		}
		return 0, storeErr("failed to load reset token", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE token_hash = ?", tokenHash); err != nil {
		return 0, storeErr("failed to delete reset token", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("failed to commit reset token", err)
	}

	if !s.now().Before(parseTime(expiresAt)) {
		return 0, errors.Unauthorized("invalid or expired reset token")
	}
	return userID, nil
}
