package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the portal an account belongs to
type Role string

const (
	RoleCareHome   Role = "care_home"
	RoleCareWorker Role = "care_worker"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleCareHome || r == RoleCareWorker
}

// Identity is the signed-in actor attached to each authenticated request
type Identity struct {
	SessionID uuid.UUID `json:"session_id"`
	Role      Role      `json:"role"`
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
}

// IsCareHome reports whether the identity is a care home
func (i Identity) IsCareHome() bool { return i.Role == RoleCareHome }

// IsWorker reports whether the identity is a care worker
func (i Identity) IsWorker() bool { return i.Role == RoleCareWorker }

// Session is a server-side sign-in record
type Session struct {
	ID               uuid.UUID  `json:"session_id" db:"id"`
	Role             Role       `json:"role" db:"role"`
	AccountID        uuid.UUID  `json:"account_id" db:"account_id"`
	Email            string     `json:"email" db:"email"`
	DisplayName      string     `json:"display_name" db:"display_name"`
	RefreshTokenHash string     `json:"-" db:"refresh_token_hash"`
	DeviceType       NullString `json:"device_type" db:"device_type"`
	Browser          NullString `json:"browser" db:"browser"`
	IPAddress        NullString `json:"ip_address" db:"ip_address"`
	UserAgent        NullString `json:"user_agent" db:"user_agent"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt       time.Time  `json:"last_used_at" db:"last_used_at"`
	RevokedAt        NullTime   `json:"revoked_at" db:"revoked_at"`
}

// Identity returns the identity the session represents
func (s *Session) Identity() Identity {
	return Identity{
		SessionID: s.ID,
		Role:      s.Role,
		AccountID: s.AccountID,
		Email:     s.Email,
		Name:      s.DisplayName,
	}
}

// IsActive reports whether the session is neither revoked nor expired at now
func (s *Session) IsActive(now time.Time) bool {
	return !s.RevokedAt.Valid && now.Before(s.ExpiresAt)
}

// ClientInfo describes the device a session was opened from
type ClientInfo struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
	Browser    string
}

// AuthTokens is returned on sign-in and refresh
type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"session_expires_at"`
	Identity     Identity  `json:"identity"`
}

// RefreshTokenRequest carries a refresh token to exchange
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
