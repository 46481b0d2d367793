package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionColumns = []string{
	"id", "role", "account_id", "email", "display_name", "refresh_token_hash",
	"device_type", "browser", "ip_address", "user_agent",
	"created_at", "expires_at", "last_used_at", "revoked_at",
}

func sessionRows(id models.Identity, refreshHash string, expiresAt time.Time, revokedAt interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(sessionColumns).AddRow(
		id.SessionID.String(), string(id.Role), id.AccountID.String(), id.Email, id.Name, refreshHash,
		"desktop", "Firefox", "203.0.113.9", "Mozilla/5.0",
		fixedNow, expiresAt, fixedNow, revokedAt,
	)
}

func newTestJWT() *jwt.Service {
	return jwt.NewService("test-access-secret", "test-refresh-secret", 15*time.Minute, 24*time.Hour)
}

func newTestSessionService(t *testing.T) (*SessionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewSessionService(database.NewSessionRepository(db), newTestJWT(), 12*time.Hour, testLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}

func TestSessionService_Set(t *testing.T) {
	svc, mock := newTestSessionService(t)
	id := careHomeIdentity()
	previous := id.SessionID

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(sqlmock.AnyArg(), "care_home", id.AccountID.String(), id.Email, id.Name,
			sqlmock.AnyArg(), "desktop", "Firefox", "203.0.113.9", "Mozilla/5.0", fixedNow.Add(12*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tokens, err := svc.Set(context.Background(), id, models.ClientInfo{
		IPAddress:  "203.0.113.9",
		UserAgent:  "Mozilla/5.0",
		DeviceType: "desktop",
		Browser:    "Firefox",
	})
	require.NoError(t, err)

	assert.NotEqual(t, previous, tokens.Identity.SessionID)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, int64(900), tokens.ExpiresIn)
	assert.Equal(t, fixedNow.Add(12*time.Hour), tokens.ExpiresAt)

	claims, err := svc.jwtService.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.Identity.SessionID, claims.SessionID)
	assert.Equal(t, id.AccountID, claims.AccountID)
	assert.Equal(t, "Oakview House", claims.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_SetStoreFails(t *testing.T) {
	svc, mock := newTestSessionService(t)

	mock.ExpectExec(`INSERT INTO sessions`).WillReturnError(errors.New("connection reset"))

	_, err := svc.Set(context.Background(), workerIdentity(), models.ClientInfo{})
	assert.Error(t, err)
}

func TestSessionService_Get(t *testing.T) {
	id := workerIdentity()

	tests := []struct {
		name      string
		expiresAt time.Time
		revokedAt interface{}
		wantErr   error
	}{
		{"Active", fixedNow.Add(time.Hour), nil, nil},
		{"Expired", fixedNow.Add(-time.Minute), nil, ErrUnauthenticated},
		{"Revoked", fixedNow.Add(time.Hour), fixedNow.Add(-time.Hour), ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newTestSessionService(t)
			mock.ExpectQuery(`SELECT .+ FROM sessions WHERE id = \$1`).
				WithArgs(id.SessionID.String()).
				WillReturnRows(sessionRows(id, "hash", tt.expiresAt, tt.revokedAt))

			got, err := svc.ValidateSession(context.Background(), id.SessionID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, *got)
		})
	}
}

func TestSessionService_GetMissing(t *testing.T) {
	svc, mock := newTestSessionService(t)
	id := workerIdentity()

	mock.ExpectQuery(`SELECT .+ FROM sessions`).WillReturnRows(sqlmock.NewRows(sessionColumns))

	_, err := svc.Get(context.Background(), id.SessionID)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSessionService_Refresh(t *testing.T) {
	svc, mock := newTestSessionService(t)
	id := careHomeIdentity()

	oldToken, err := svc.jwtService.GenerateRefreshToken(subjectOf(id))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM sessions WHERE id = \$1`).
		WithArgs(id.SessionID.String()).
		WillReturnRows(sessionRows(id, database.HashToken(oldToken), fixedNow.Add(time.Hour), nil))
	mock.ExpectExec(`UPDATE sessions SET refresh_token_hash = \$3`).
		WithArgs(id.SessionID.String(), database.HashToken(oldToken), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tokens, err := svc.Refresh(context.Background(), oldToken)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, tokens.RefreshToken)
	assert.Equal(t, id, tokens.Identity)
	assert.Equal(t, fixedNow.Add(time.Hour), tokens.ExpiresAt)

	claims, err := svc.jwtService.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id.SessionID, claims.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_RefreshStaleToken(t *testing.T) {
	svc, mock := newTestSessionService(t)
	id := careHomeIdentity()

	staleToken, err := svc.jwtService.GenerateRefreshToken(subjectOf(id))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM sessions`).
		WillReturnRows(sessionRows(id, "rotated-already", fixedNow.Add(time.Hour), nil))
	mock.ExpectExec(`UPDATE sessions SET refresh_token_hash`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = svc.Refresh(context.Background(), staleToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_RefreshRejectsBadToken(t *testing.T) {
	svc, mock := newTestSessionService(t)

	access, err := svc.jwtService.GenerateAccessToken(subjectOf(workerIdentity()))
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", access} {
		_, err := svc.Refresh(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_RefreshRevokedSession(t *testing.T) {
	svc, mock := newTestSessionService(t)
	id := workerIdentity()

	token, err := svc.jwtService.GenerateRefreshToken(subjectOf(id))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM sessions`).
		WillReturnRows(sessionRows(id, database.HashToken(token), fixedNow.Add(time.Hour), fixedNow))

	_, err = svc.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_ClearAndRevokeOthers(t *testing.T) {
	svc, mock := newTestSessionService(t)
	id := careHomeIdentity()

	mock.ExpectExec(`UPDATE sessions SET revoked_at = NOW\(\) WHERE id = \$1`).
		WithArgs(id.SessionID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sessions SET revoked_at = NOW\(\) WHERE role = \$1`).
		WithArgs("care_home", id.AccountID.String(), id.SessionID.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, svc.Clear(context.Background(), id.SessionID))

	n, err := svc.RevokeOthers(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_PurgeExpired(t *testing.T) {
	svc, mock := newTestSessionService(t)

	mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
