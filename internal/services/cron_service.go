package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	auditCleanupSchedule    = "0 0 4 * * 0"
	attemptsCleanupSchedule = "0 */30 * * * *"
	auditRetention          = 90 * 24 * time.Hour
	jobTimeout              = 2 * time.Minute
)

// CronService manages scheduled background jobs
type CronService struct {
	cron          *cron.Cron
	sessions      *SessionService
	audit         *AuditService
	limiter       *RateLimitService
	purgeSchedule string
	logger        logrus.FieldLogger
}

// NewCronService creates a new CronService. purgeSchedule is a cron spec with
// a leading seconds field.
// audit and limiter may be nil, which skips their cleanup jobs.
func NewCronService(sessions *SessionService, audit *AuditService, limiter *RateLimitService, purgeSchedule string, logger logrus.FieldLogger) *CronService {
	return &CronService{
		cron:          cron.New(cron.WithSeconds()),
		sessions:      sessions,
		audit:         audit,
		limiter:       limiter,
		purgeSchedule: purgeSchedule,
		logger:        logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.purgeSchedule, s.purgeSessionsJob); err != nil {
		return fmt.Errorf("failed to schedule session purge job: %w", err)
	}
	s.logger.WithField("schedule", s.purgeSchedule).Info("Scheduled: purge expired sessions")

	if s.audit != nil {
		if _, err := s.cron.AddFunc(auditCleanupSchedule, s.cleanupAuditJob); err != nil {
			return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
		}
		s.logger.WithField("schedule", auditCleanupSchedule).Info("Scheduled: cleanup old audit logs")
	}

	if s.limiter != nil {
		if _, err := s.cron.AddFunc(attemptsCleanupSchedule, s.cleanupAttemptsJob); err != nil {
			return fmt.Errorf("failed to schedule sign-in attempt cleanup job: %w", err)
		}
		s.logger.WithField("schedule", attemptsCleanupSchedule).Info("Scheduled: cleanup sign-in attempts")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) purgeSessionsJob() {
	if _, err := s.RunPurgeNow(); err != nil {
		s.logger.WithError(err).Error("Session purge failed")
	}
}

func (s *CronService) cleanupAuditJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	deleted, err := s.audit.CleanupOldAuditLogs(ctx, auditRetention)
	if err != nil {
		s.logger.WithError(err).Error("Audit cleanup failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"duration": time.Since(start).String(),
	}).Info("Cleaned up old audit logs")
}

func (s *CronService) cleanupAttemptsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	deleted, err := s.limiter.CleanupExpired(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Sign-in attempt cleanup failed")
		return
	}
	s.logger.WithField("deleted", deleted).Debug("Cleaned up sign-in attempts")
}

// RunPurgeNow deletes expired and revoked sessions immediately
func (s *CronService) RunPurgeNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	purged, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"purged":   purged,
		"duration": time.Since(start).String(),
	}).Info("Purged expired sessions")
	return purged, nil
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
