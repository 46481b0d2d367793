package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/middleware"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/carelink/shift-portal/pkg/jwt"
	"github.com/carelink/shift-portal/pkg/realtime"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC)

var shiftColumns = []string{
	"id", "care_home_id", "shift_date", "start_time", "end_time", "role", "hourly_rate",
	"staff_required", "paid_break", "required_skills", "special_requirements", "status",
	"worker_id", "worker_name", "request_key", "series_id", "created_at", "updated_at",
}

// setupTestDB creates a mock database for testing
func setupTestDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return &database.PostgresDB{DB: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func careHome() models.Identity {
	return models.Identity{
		SessionID: uuid.New(),
		Role:      models.RoleCareHome,
		AccountID: uuid.New(),
		Email:     "manager@oakview.example",
		Name:      "Oakview House",
	}
}

func worker() models.Identity {
	return models.Identity{
		SessionID: uuid.New(),
		Role:      models.RoleCareWorker,
		AccountID: uuid.New(),
		Email:     "sam.okafor@example.com",
		Name:      "Sam Okafor",
	}
}

// signedIn stands in for AuthMiddleware
func signedIn(id *models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != nil {
			c.Set(middleware.IdentityContextKey, *id)
		}
		c.Next()
	}
}

func shiftRow(id, careHomeID uuid.UUID, status models.ShiftStatus, requestKey interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(shiftColumns).AddRow(
		id.String(), careHomeID.String(), "2024-03-20", "22:00", "06:00", "senior_carer", 15.0,
		int64(1), false, "", "", string(status),
		nil, nil, requestKey, nil, testTime, testTime,
	)
}

func newShiftService(db *database.PostgresDB) *services.ShiftService {
	return services.NewShiftService(
		db,
		database.NewShiftRepository(db),
		database.NewTimesheetRepository(db),
		database.NewRosterRepository(db),
		validator.NewFieldValidator(),
		nil,
		testLogger(),
	)
}

func doJSON(router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"Validation", &services.ValidationError{Fields: []validator.FieldError{{Field: "date", Rule: "required", Message: "is required"}}}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"Unauthenticated", services.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"Bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"Forbidden", services.ErrForbidden, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{"Not found", services.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"Conflict", fmt.Errorf("apply: %w", services.ErrConflict), http.StatusConflict, "STATE_CONFLICT"},
		{"Email taken", services.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN"},
		{"Unsigned", services.ErrUnsigned, http.StatusConflict, "TIMESHEET_UNSIGNED"},
		{"Throttled", &services.RateLimitError{Message: "Too many failed sign-in attempts", RetryAfter: time.Now().Add(time.Minute), Type: "email"}, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"},
		{"Gateway failure", errors.New("failed to list shifts: connection refused"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, testLogger(), tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotContains(t, resp.Message, "connection refused")
		})
	}
}

func TestRespondError_RetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	respondError(c, testLogger(), &services.RateLimitError{RetryAfter: time.Now().Add(90 * time.Second)})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 90, retry, 2)
}

func TestRespondError_ListsFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	respondError(c, testLogger(), &services.ValidationError{Fields: []validator.FieldError{
		{Field: "hourly_rate", Rule: "gt", Message: "must be greater than 0"},
		{Field: "role", Rule: "required", Message: "is required"},
	}})

	resp := decodeError(t, w)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "hourly_rate", resp.Fields[0].Field)
}

func shiftRouter(t *testing.T, id *models.Identity) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock := setupTestDB(t)
	h := NewShiftHandler(newShiftService(db), testLogger())

	router := gin.New()
	g := router.Group("/api/v1", signedIn(id))
	g.POST("/shifts", h.Post)
	g.GET("/shifts", h.List)
	g.GET("/shifts/:id", h.Get)
	g.POST("/shifts/:id/apply", h.Apply)
	g.POST("/shifts/:id/approve", h.Approve)
	return router, mock
}

func validShiftBody() models.PostShiftRequest {
	return models.PostShiftRequest{
		Date:          "2024-03-20",
		StartTime:     "22:00",
		EndTime:       "06:00",
		Role:          "senior_carer",
		HourlyRate:    15,
		StaffRequired: 1,
	}
}

func TestShiftHandler_PostCreated(t *testing.T) {
	home := careHome()
	router, mock := shiftRouter(t, &home)
	shiftID := uuid.New()

	mock.ExpectQuery(`INSERT INTO shifts`).
		WillReturnRows(shiftRow(shiftID, home.AccountID, models.ShiftStatusActive, nil))

	w := doJSON(router, http.MethodPost, "/api/v1/shifts", validShiftBody(), nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	var shift models.Shift
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shift))
	assert.Equal(t, shiftID, shift.ID)
	assert.Equal(t, 8.0, shift.DurationHours)
	assert.Equal(t, 120.0, shift.Pay)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftHandler_PostReplay(t *testing.T) {
	home := careHome()
	router, mock := shiftRouter(t, &home)
	shiftID := uuid.New()

	mock.ExpectQuery(`WHERE care_home_id = \$1 AND request_key = \$2`).
		WithArgs(home.AccountID.String(), "post-7f3a").
		WillReturnRows(shiftRow(shiftID, home.AccountID, models.ShiftStatusActive, "post-7f3a"))

	w := doJSON(router, http.MethodPost, "/api/v1/shifts", validShiftBody(), map[string]string{
		IdempotencyKeyHeader: "post-7f3a",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), shiftID.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftHandler_PostValidation(t *testing.T) {
	home := careHome()
	router, _ := shiftRouter(t, &home)

	body := validShiftBody()
	body.HourlyRate = 0
	body.Role = ""

	w := doJSON(router, http.MethodPost, "/api/v1/shifts", body, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation_error", resp.Error)
	assert.Len(t, resp.Fields, 2)
}

func TestShiftHandler_PostBadJSON(t *testing.T) {
	home := careHome()
	router, _ := shiftRouter(t, &home)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shifts", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, w).Code)
}

func TestShiftHandler_PostAsWorker(t *testing.T) {
	w0 := worker()
	router, _ := shiftRouter(t, &w0)

	w := doJSON(router, http.MethodPost, "/api/v1/shifts", validShiftBody(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestShiftHandler_NoIdentity(t *testing.T) {
	router, _ := shiftRouter(t, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/shifts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestShiftHandler_MalformedID(t *testing.T) {
	home := careHome()
	router, _ := shiftRouter(t, &home)

	w := doJSON(router, http.MethodGet, "/api/v1/shifts/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShiftHandler_ApplyConflict(t *testing.T) {
	w0 := worker()
	router, mock := shiftRouter(t, &w0)
	shiftID := uuid.New()
	homeID := uuid.New()

	// Someone else applied first, so the CAS update matches nothing
	mock.ExpectQuery(`FROM shifts WHERE id = \$1`).
		WillReturnRows(shiftRow(shiftID, homeID, models.ShiftStatusPending, nil))
	mock.ExpectQuery(`SELECT category FROM roster_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"category"}))
	mock.ExpectQuery(`UPDATE shifts`).WillReturnRows(sqlmock.NewRows(shiftColumns))

	w := doJSON(router, http.MethodPost, "/api/v1/shifts/"+shiftID.String()+"/apply", nil, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftHandler_ListForCareHome(t *testing.T) {
	home := careHome()
	router, mock := shiftRouter(t, &home)

	mock.ExpectQuery(`FROM shifts WHERE care_home_id = \$1`).
		WithArgs(home.AccountID.String()).
		WillReturnRows(shiftRow(uuid.New(), home.AccountID, models.ShiftStatusActive, nil))

	w := doJSON(router, http.MethodGet, "/api/v1/shifts", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var board map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	assert.Contains(t, string(board["active"]), home.AccountID.String())
}

func TestAuthHandler_SignInBadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock := setupTestDB(t)
	sessions := services.NewSessionService(database.NewSessionRepository(db),
		jwt.NewService("test-secret", "test-refresh-secret", time.Hour, 7*24*time.Hour), time.Hour, testLogger())
	auth := services.NewAuthService(database.NewCareHomeRepository(db), database.NewCareWorkerRepository(db),
		sessions, validator.NewFieldValidator(), nil, testLogger(), services.AuthOptions{BcryptCost: 4})
	h := NewAuthHandler(auth, testLogger())

	router := gin.New()
	router.POST("/api/v1/auth/worker/sign-in", h.SignIn(models.RoleCareWorker))

	mock.ExpectQuery(`FROM care_workers`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(router, http.MethodPost, "/api/v1/auth/worker/sign-in", models.SignInRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, w).Code)
}

func TestAuthHandler_GetSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := worker()
	h := NewAuthHandler(nil, testLogger())

	router := gin.New()
	router.GET("/api/v1/auth/session", signedIn(&id), h.GetSession)

	w := doJSON(router, http.MethodGet, "/api/v1/auth/session", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got)
}

func TestClientInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Real-IP", "203.0.113.9")
	c.Request.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	info := clientInfo(c)
	assert.Equal(t, "203.0.113.9", info.IPAddress)
	assert.Equal(t, "desktop", info.DeviceType)
	assert.Equal(t, "Chrome", info.Browser)
}

// readEvent reads one SSE event, skipping keep-alive comments
func readEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestEventsHandler_RefetchesOnChange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock := setupTestDB(t)
	home := careHome()
	hub := realtime.NewHub()
	h := NewEventsHandler(hub, newShiftService(db), nil, time.Hour, testLogger())

	router := gin.New()
	router.GET("/api/v1/events/shifts", signedIn(&home), h.Shifts)
	srv := httptest.NewServer(router)
	defer srv.Close()

	first := uuid.New()
	second := uuid.New()
	mock.ExpectQuery(`FROM shifts WHERE care_home_id = \$1`).
		WillReturnRows(shiftRow(first, home.AccountID, models.ShiftStatusActive, nil))
	mock.ExpectQuery(`FROM shifts WHERE care_home_id = \$1`).
		WillReturnRows(shiftRow(second, home.AccountID, models.ShiftStatusActive, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events/shifts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	event, data := readEvent(t, reader)
	assert.Equal(t, "shifts", event)
	assert.Contains(t, data, first.String())
	assert.Equal(t, 1, hub.Subscribers("shifts"))

	hub.Notify("timesheets")
	hub.Notify("shifts")

	event, data = readEvent(t, reader)
	assert.Equal(t, "shifts", event)
	assert.Contains(t, data, second.String())

	cancel()
	assert.Eventually(t, func() bool { return hub.Subscribers("shifts") == 0 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsHandler_CloseEndsStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock := setupTestDB(t)
	home := careHome()
	hub := realtime.NewHub()
	h := NewEventsHandler(hub, newShiftService(db), nil, time.Hour, testLogger())

	router := gin.New()
	router.GET("/api/v1/events/shifts", signedIn(&home), h.Shifts)
	srv := httptest.NewServer(router)
	defer srv.Close()

	mock.ExpectQuery(`FROM shifts WHERE care_home_id = \$1`).
		WillReturnRows(shiftRow(uuid.New(), home.AccountID, models.ShiftStatusActive, nil))

	resp, err := http.Get(srv.URL + "/api/v1/events/shifts")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	event, _ := readEvent(t, reader)
	assert.Equal(t, "shifts", event)

	h.Close()
	h.Close()

	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return hub.Subscribers("shifts") == 0 }, time.Second, 10*time.Millisecond)
}

func incidentRouter(t *testing.T, id *models.Identity) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock := setupTestDB(t)
	svc := services.NewIncidentService(db, database.NewIncidentRepository(db), database.NewRosterRepository(db),
		validator.NewFieldValidator(), nil, testLogger())
	h := NewIncidentHandler(svc, testLogger())

	router := gin.New()
	g := router.Group("/api/v1", signedIn(id))
	g.POST("/incidents", h.Report)
	g.GET("/incidents", h.List)
	g.PUT("/incidents/:id/status", h.Close)
	return router, mock
}

func TestIncidentHandler_Report(t *testing.T) {
	home := careHome()
	router, mock := incidentRouter(t, &home)
	workerID, incidentID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO incidents`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(incidentID.String()))
	mock.ExpectCommit()
	mock.ExpectQuery(`WHERE i.id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "care_home_id", "worker_id", "worker_name", "reported_by", "incident_date", "incident_time",
			"location", "incident_type", "severity", "status", "description",
			"evidence", "immediate_action", "follow_up_action", "witness_ids", "witness_names",
			"closed_at", "created_at", "updated_at",
		}).AddRow(
			incidentID.String(), home.AccountID.String(), workerID.String(), "Sam Okafor", "Oakview House",
			"2024-03-20", "09:30", "Ward B", "misconduct", "minor", "reported",
			"Late to handover", "", "", "", "{}", "{}",
			nil, testTime, testTime,
		))

	w := doJSON(router, http.MethodPost, "/api/v1/incidents", models.ReportIncidentRequest{
		WorkerID:    workerID,
		Date:        "2024-03-20",
		Time:        "09:30",
		Location:    "Ward B",
		Type:        "misconduct",
		Severity:    "minor",
		Description: "Late to handover",
	}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), incidentID.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentHandler_CloseValidation(t *testing.T) {
	home := careHome()
	router, _ := incidentRouter(t, &home)

	w := doJSON(router, http.MethodPut, "/api/v1/incidents/"+uuid.NewString()+"/status",
		models.CloseIncidentRequest{Status: "reported"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, w).Code)
}

func TestIncidentHandler_WorkerForbidden(t *testing.T) {
	w0 := worker()
	router, _ := incidentRouter(t, &w0)

	w := doJSON(router, http.MethodGet, "/api/v1/incidents", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
