package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/google/uuid"
)

const sessionColumns = `
	id, role, account_id, email, display_name, refresh_token_hash,
	device_type, browser, ip_address, user_agent,
	created_at, expires_at, last_used_at, revoked_at`

// SessionRepository handles server-side session storage
type SessionRepository struct {
	db Queryer
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db Queryer) *SessionRepository {
	return &SessionRepository{db: db}
}

// HashToken creates a SHA-256 hash of the token for storage
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Create stores a new session with a caller-chosen id
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (
			id, role, account_id, email, display_name, refresh_token_hash,
			device_type, browser, ip_address, user_agent, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Role,
		s.AccountID,
		s.Email,
		s.DisplayName,
		s.RefreshTokenHash,
		s.DeviceType,
		s.Browser,
		s.IPAddress,
		s.UserAgent,
		s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session; returns nil, nil when it does not exist
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var s models.Session
	err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// RotateRefreshToken swaps the stored refresh token hash if oldHash still
// matches on a live session. Returns false when the swap did not happen.
func (r *SessionRepository) RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash string) (bool, error) {
	query := `
		UPDATE sessions
		SET refresh_token_hash = $3, last_used_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
		  AND revoked_at IS NULL AND expires_at > NOW()`

	result, err := r.db.ExecContext(ctx, query, id, oldHash, newHash)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// UpdateDisplay refreshes the identity fields cached on an account's live sessions
func (r *SessionRepository) UpdateDisplay(ctx context.Context, role models.Role, accountID uuid.UUID, displayName string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET display_name = $3 WHERE role = $1 AND account_id = $2 AND revoked_at IS NULL`,
		role, accountID, displayName)
	if err != nil {
		return fmt.Errorf("failed to update session display name: %w", err)
	}
	return nil
}

// Revoke marks one session revoked
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllExcept revokes an account's other sessions, e.g. after a password change
func (r *SessionRepository) RevokeAllExcept(ctx context.Context, role models.Role, accountID, keep uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = NOW()
		WHERE role = $1 AND account_id = $2 AND id <> $3 AND revoked_at IS NULL`,
		role, accountID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes sessions that expired, or were revoked, before cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
