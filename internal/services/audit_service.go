package services

import (
	"context"
	"time"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditService records security and lifecycle events. A nil *AuditService is
// valid and records nothing.
type AuditService struct {
	repo   *database.AuditRepository
	logger logrus.FieldLogger
}

// NewAuditService creates a new audit service
func NewAuditService(repo *database.AuditRepository, logger logrus.FieldLogger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	Actor      *models.Identity // nil for pre-authentication events
	Action     string           // e.g. "sign_in", "shift_posted", "timesheet_reviewed"
	EntityType string
	EntityID   uuid.UUID
	Client     models.ClientInfo
	Details    map[string]interface{}
}

// Log writes the event. Failures are logged, never returned, so auditing
// cannot fail the request that triggered it.
func (s *AuditService) Log(ctx context.Context, event AuditEvent) {
	if s == nil || s.repo == nil {
		return
	}

	details := event.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	if event.Client.UserAgent != "" {
		details["device_info"] = utils.ParseUserAgent(event.Client.UserAgent)
	}

	entry := database.AuditEntry{
		Action:     event.Action,
		EntityType: event.EntityType,
		IPAddress:  event.Client.IPAddress,
		UserAgent:  event.Client.UserAgent,
		Details:    details,
	}
	if event.EntityID != uuid.Nil {
		entry.EntityID = event.EntityID.String()
	}
	if event.Actor != nil {
		actorID := event.Actor.AccountID
		entry.ActorRole = string(event.Actor.Role)
		entry.ActorID = &actorID
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", event.Action).Warn("Failed to write audit log")
	}
}

// LogSignIn logs a sign-in attempt. actor is nil when the attempt failed.
func (s *AuditService) LogSignIn(ctx context.Context, actor *models.Identity, role models.Role, email string, client models.ClientInfo, success bool) {
	action := "sign_in_failed"
	if success {
		action = "sign_in"
	}
	event := AuditEvent{
		Actor:      actor,
		Action:     action,
		EntityType: "session",
		Client:     client,
		Details:    map[string]interface{}{"role": role, "email": email},
	}
	if actor != nil {
		event.EntityID = actor.SessionID
	}
	s.Log(ctx, event)
}

// LogEntity logs an action performed by actor on one entity
func (s *AuditService) LogEntity(ctx context.Context, actor models.Identity, action, entityType string, entityID uuid.UUID, details map[string]interface{}) {
	s.Log(ctx, AuditEvent{
		Actor:      &actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteOlderThan(ctx, time.Now().Add(-olderThan))
}
