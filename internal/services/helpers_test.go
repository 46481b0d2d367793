package services

import (
	"database/sql/driver"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func careHomeIdentity() models.Identity {
	return models.Identity{
		SessionID: uuid.New(),
		Role:      models.RoleCareHome,
		AccountID: uuid.New(),
		Email:     "manager@oakview.example",
		Name:      "Oakview House",
	}
}

func workerIdentity() models.Identity {
	return models.Identity{
		SessionID: uuid.New(),
		Role:      models.RoleCareWorker,
		AccountID: uuid.New(),
		Email:     "sam.okafor@example.com",
		Name:      "Sam Okafor",
	}
}

var shiftColumns = []string{
	"id", "care_home_id", "shift_date", "start_time", "end_time", "role", "hourly_rate",
	"staff_required", "paid_break", "required_skills", "special_requirements", "status",
	"worker_id", "worker_name", "request_key", "series_id", "created_at", "updated_at",
}

// shiftFixture builds one sqlmock row for the shifts table
type shiftFixture struct {
	id, careHomeID uuid.UUID
	date           string
	start, end     string
	rate           float64
	status         models.ShiftStatus
	worker         *models.Identity
	seriesID       *uuid.UUID
}

func (f shiftFixture) values() []driver.Value {
	date := f.date
	if date == "" {
		date = "2024-03-20"
	}
	start, end, rate := f.start, f.end, f.rate
	if start == "" {
		start, end = "22:00", "06:00"
	}
	if rate == 0 {
		rate = 15.0
	}
	var workerID, workerName, seriesID driver.Value
	if f.worker != nil {
		workerID = f.worker.AccountID.String()
		workerName = f.worker.Name
	}
	if f.seriesID != nil {
		seriesID = f.seriesID.String()
	}
	return []driver.Value{
		f.id.String(), f.careHomeID.String(), date, start, end, "senior_carer", rate,
		int64(1), false, "", "", string(f.status),
		workerID, workerName, nil, seriesID, fixedNow, fixedNow,
	}
}

func shiftRows(fixtures ...shiftFixture) *sqlmock.Rows {
	rows := sqlmock.NewRows(shiftColumns)
	for _, f := range fixtures {
		rows.AddRow(f.values()...)
	}
	return rows
}

func newTestShiftService(t *testing.T) (*ShiftService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewShiftService(
		db,
		database.NewShiftRepository(db),
		database.NewTimesheetRepository(db),
		database.NewRosterRepository(db),
		validator.NewFieldValidator(),
		nil,
		testLogger(),
	)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}
