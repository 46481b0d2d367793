package services

import (
	"context"
	"time"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/jwt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionService is the server-side session store. Every signed-in identity
// is a row in the sessions table, addressed by the sid claim of its tokens.
type SessionService struct {
	sessions   *database.SessionRepository
	jwtService *jwt.Service
	ttl        time.Duration
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(sessions *database.SessionRepository, jwtService *jwt.Service, ttl time.Duration, logger logrus.FieldLogger) *SessionService {
	return &SessionService{
		sessions:   sessions,
		jwtService: jwtService,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

func subjectOf(id models.Identity) jwt.Subject {
	return jwt.Subject{
		SessionID: id.SessionID,
		AccountID: id.AccountID,
		Role:      string(id.Role),
		Email:     id.Email,
		Name:      id.Name,
	}
}

// Set opens a session for identity and returns its tokens. Any SessionID on
// identity is replaced by the new session's id.
func (s *SessionService) Set(ctx context.Context, identity models.Identity, client models.ClientInfo) (*models.AuthTokens, error) {
	identity.SessionID = uuid.New()
	sub := subjectOf(identity)

	accessToken, err := s.jwtService.GenerateAccessToken(sub)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(sub)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.ttl)
	err = s.sessions.Create(ctx, &models.Session{
		ID:               identity.SessionID,
		Role:             identity.Role,
		AccountID:        identity.AccountID,
		Email:            identity.Email,
		DisplayName:      identity.Name,
		RefreshTokenHash: database.HashToken(refreshToken),
		DeviceType:       models.NewNullString(client.DeviceType),
		Browser:          models.NewNullString(client.Browser),
		IPAddress:        models.NewNullString(client.IPAddress),
		UserAgent:        models.NewNullString(client.UserAgent),
		ExpiresAt:        expiresAt,
	})
	if err != nil {
		return nil, err
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		ExpiresAt:    expiresAt,
		Identity:     identity,
	}, nil
}

// Get returns the identity of a live session, or ErrUnauthenticated when the
// session is missing, revoked or expired
func (s *SessionService) Get(ctx context.Context, sessionID uuid.UUID) (*models.Identity, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive(s.now()) {
		return nil, ErrUnauthenticated
	}

	identity := session.Identity()
	return &identity, nil
}

// ValidateSession implements the middleware's session check
func (s *SessionService) ValidateSession(ctx context.Context, sessionID uuid.UUID) (*models.Identity, error) {
	return s.Get(ctx, sessionID)
}

// Clear revokes a session
func (s *SessionService) Clear(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Revoke(ctx, sessionID)
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token stops working; presenting it again fails.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.logger.WithError(err).Debug("Refresh token rejected")
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive(s.now()) {
		return nil, ErrUnauthenticated
	}

	identity := session.Identity()
	sub := subjectOf(identity)

	newRefresh, err := s.jwtService.GenerateRefreshToken(sub)
	if err != nil {
		return nil, err
	}

	rotated, err := s.sessions.RotateRefreshToken(ctx, session.ID, database.HashToken(refreshToken), database.HashToken(newRefresh))
	if err != nil {
		return nil, err
	}
	if !rotated {
		s.logger.WithField("session_id", session.ID).Warn("Stale refresh token presented")
		return nil, ErrUnauthenticated
	}

	accessToken, err := s.jwtService.GenerateAccessToken(sub)
	if err != nil {
		return nil, err
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		ExpiresAt:    session.ExpiresAt,
		Identity:     identity,
	}, nil
}

// RevokeOthers signs the account out everywhere except the given session
func (s *SessionService) RevokeOthers(ctx context.Context, identity models.Identity) (int64, error) {
	return s.sessions.RevokeAllExcept(ctx, identity.Role, identity.AccountID, identity.SessionID)
}

// Rename updates the display name cached on an account's sessions
func (s *SessionService) Rename(ctx context.Context, role models.Role, accountID uuid.UUID, name string) error {
	return s.sessions.UpdateDisplay(ctx, role, accountID, name)
}

// PurgeExpired deletes sessions that have expired or been revoked
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}
