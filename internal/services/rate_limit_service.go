package services

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds sign-in throttling limits
type RateLimitConfig struct {
	MaxEmailAttempts int           // failed sign-ins per email; 0 disables the check
	EmailWindow      time.Duration // window for the email limit
	MaxIPAttempts    int           // failed sign-ins per client IP; 0 disables the check
	IPWindow         time.Duration // window for the IP limit
}

// DefaultRateLimitConfig returns the default sign-in limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailAttempts: 5,
		EmailWindow:      15 * time.Minute,
		MaxIPAttempts:    20,
		IPWindow:         time.Hour,
	}
}

// RateLimitError is returned when too many sign-ins have failed recently
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// RateLimitService throttles repeated failed sign-ins. A nil service allows
// everything.
type RateLimitService struct {
	db     database.Queryer
	cfg    RateLimitConfig
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.Queryer, cfg RateLimitConfig, logger logrus.FieldLogger) *RateLimitService {
	return &RateLimitService{
		db:     db,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// CheckSignIn returns a *RateLimitError when email or ip has used up its
// failed attempts
func (s *RateLimitService) CheckSignIn(ctx context.Context, email, ip string) error {
	if s == nil {
		return nil
	}

	if email != "" && s.cfg.MaxEmailAttempts > 0 {
		count, last, err := s.countFailures(ctx, email, "email", s.cfg.EmailWindow)
		if err != nil {
			return fmt.Errorf("failed to check email rate limit: %w", err)
		}
		if count >= s.cfg.MaxEmailAttempts {
			return s.limited("email", last.Add(s.cfg.EmailWindow), "Too many failed sign-in attempts for this account")
		}
	}

	if ip != "" && s.cfg.MaxIPAttempts > 0 {
		count, last, err := s.countFailures(ctx, ip, "ip", s.cfg.IPWindow)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if count >= s.cfg.MaxIPAttempts {
			return s.limited("ip", last.Add(s.cfg.IPWindow), "Too many failed sign-in attempts from this address")
		}
	}

	return nil
}

func (s *RateLimitService) limited(kind string, retryAfter time.Time, msg string) *RateLimitError {
	s.logger.WithFields(logrus.Fields{
		"type":        kind,
		"retry_after": retryAfter,
	}).Warn("Sign-in rate limited")
	return &RateLimitError{
		Message:    fmt.Sprintf("%s. Please try again after %s", msg, retryAfter.UTC().Format("15:04:05")),
		RetryAfter: retryAfter,
		Type:       kind,
	}
}

func (s *RateLimitService) countFailures(ctx context.Context, identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	query := `
		SELECT COUNT(*) AS attempts, COALESCE(MAX(created_at), $3) AS last_attempt
		FROM sign_in_attempts
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var row struct {
		Attempts    int       `db:"attempts"`
		LastAttempt time.Time `db:"last_attempt"`
	}
	if err := s.db.GetContext(ctx, &row, query, identifier, identifierType, s.now().Add(-window)); err != nil {
		return 0, time.Time{}, err
	}
	return row.Attempts, row.LastAttempt, nil
}

// RecordFailure stores a failed sign-in against email and ip
func (s *RateLimitService) RecordFailure(ctx context.Context, email, ip string) error {
	if s == nil {
		return nil
	}
	if email != "" {
		if err := s.record(ctx, email, "email"); err != nil {
			return fmt.Errorf("failed to record email attempt: %w", err)
		}
	}
	if ip != "" {
		if err := s.record(ctx, ip, "ip"); err != nil {
			return fmt.Errorf("failed to record IP attempt: %w", err)
		}
	}
	return nil
}

func (s *RateLimitService) record(ctx context.Context, identifier, identifierType string) error {
	query := `
		INSERT INTO sign_in_attempts (identifier, identifier_type, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query, identifier, identifierType, s.now())
	return err
}

// Reset clears the failures recorded against email after a good sign-in.
// IP failures are kept.
func (s *RateLimitService) Reset(ctx context.Context, email string) error {
	if s == nil || email == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sign_in_attempts WHERE identifier = $1 AND identifier_type = 'email'`, email)
	return err
}

// CleanupExpired removes attempts older than the longest window
func (s *RateLimitService) CleanupExpired(ctx context.Context) (int64, error) {
	maxWindow := s.cfg.IPWindow
	if s.cfg.EmailWindow > maxWindow {
		maxWindow = s.cfg.EmailWindow
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sign_in_attempts WHERE created_at < $1`, s.now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sign-in attempts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
