package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one row of the audit log
type AuditEntry struct {
	ActorRole  string
	ActorID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{}
}

// AuditRepository writes and prunes audit log rows
type AuditRepository struct {
	db Queryer
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db Queryer) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert writes an audit entry
func (r *AuditRepository) Insert(ctx context.Context, e AuditEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (actor_role, actor_id, action, entity_type, entity_id, ip_address, user_agent, details)
		VALUES (NULLIF($1, ''), $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)`

	_, err = r.db.ExecContext(ctx, query,
		e.ActorRole, e.ActorID, e.Action, e.EntityType, e.EntityID, e.IPAddress, e.UserAgent, string(payload))
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}
	return nil
}

// DeleteOlderThan removes audit entries created before cutoff
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}
	return result.RowsAffected()
}
