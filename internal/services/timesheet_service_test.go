package services

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timesheetColumns = []string{
	"id", "shift_id", "worker_id", "care_home_id", "shift_date", "start_time", "end_time",
	"minutes_worked", "hourly_rate", "paid_break", "status", "comment", "rating",
	"signed_name", "signed_at", "reviewed_at", "created_at", "updated_at",
	"worker_name", "care_home_name",
}

type timesheetFixture struct {
	id, workerID, careHomeID uuid.UUID
	status                   models.TimesheetStatus
	signed                   bool
	rating                   *int
}

func (f timesheetFixture) values() []driver.Value {
	var signedName, signedAt, rating driver.Value
	if f.signed {
		signedName = "Sam Okafor"
		signedAt = fixedNow
	}
	if f.rating != nil {
		rating = int64(*f.rating)
	}
	return []driver.Value{
		f.id.String(), uuid.New().String(), f.workerID.String(), f.careHomeID.String(),
		"2024-03-20", "09:00", "16:30", int64(450), 15.0, false, string(f.status), "", rating,
		signedName, signedAt, nil, fixedNow, fixedNow,
		"Sam Okafor", "Oakview House",
	}
}

func timesheetRows(fixtures ...timesheetFixture) *sqlmock.Rows {
	rows := sqlmock.NewRows(timesheetColumns)
	for _, f := range fixtures {
		rows.AddRow(f.values()...)
	}
	return rows
}

func newTestTimesheetService(t *testing.T) (*TimesheetService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewTimesheetService(database.NewTimesheetRepository(db), validator.NewFieldValidator(), nil, testLogger()), mock
}

func TestTimesheetService_Sign(t *testing.T) {
	ctx := context.Background()

	t.Run("Signs Pending Timesheet", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		worker := workerIdentity()
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET signed_name = \$3`).
			WithArgs(sheetID, worker.AccountID, "Sam Okafor").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`WHERE t.id = \$1`).WithArgs(sheetID).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: worker.AccountID, careHomeID: uuid.New(),
				status: models.TimesheetStatusPending, signed: true,
			}))

		sheet, err := svc.Sign(ctx, worker, sheetID)
		require.NoError(t, err)
		assert.True(t, sheet.IsSigned())
		assert.Equal(t, "Sam Okafor", sheet.SignedName.String)
		assert.Equal(t, 112.5, sheet.TotalPay)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Signing Twice Conflicts", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		worker := workerIdentity()
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET signed_name`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE t.id = \$1`).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: worker.AccountID, careHomeID: uuid.New(),
				status: models.TimesheetStatusPending, signed: true,
			}))

		_, err := svc.Sign(ctx, worker, sheetID)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Other Worker", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET signed_name`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE t.id = \$1`).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: uuid.New(), careHomeID: uuid.New(), status: models.TimesheetStatusPending,
			}))

		_, err := svc.Sign(ctx, workerIdentity(), sheetID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("Missing", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)

		mock.ExpectExec(`UPDATE timesheets SET signed_name`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE t.id = \$1`).WillReturnRows(sqlmock.NewRows(timesheetColumns))

		_, err := svc.Sign(ctx, workerIdentity(), uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Care Home Cannot Sign", func(t *testing.T) {
		svc, _ := newTestTimesheetService(t)
		_, err := svc.Sign(ctx, careHomeIdentity(), uuid.New())
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestTimesheetService_Review(t *testing.T) {
	ctx := context.Background()
	rating := 4
	paidBreak := true

	t.Run("Approves With Rating And Break Override", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		home := careHomeIdentity()
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET status = \$3`).
			WithArgs(sheetID, home.AccountID, "approved", "Great shift", 4, true).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`WHERE t.id = \$1`).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: uuid.New(), careHomeID: home.AccountID,
				status: models.TimesheetStatusApproved, rating: &rating,
			}))

		sheet, err := svc.Review(ctx, home, sheetID, models.ReviewTimesheetRequest{
			Decision:  "approve",
			Comment:   "Great shift",
			Rating:    &rating,
			PaidBreak: &paidBreak,
		})
		require.NoError(t, err)
		assert.Equal(t, models.TimesheetStatusApproved, sheet.Status)
		require.NotNil(t, sheet.Rating)
		assert.Equal(t, 4, *sheet.Rating)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects Without Rating", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		home := careHomeIdentity()
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET status = \$3`).
			WithArgs(sheetID, home.AccountID, "rejected", "", nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`WHERE t.id = \$1`).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: uuid.New(), careHomeID: home.AccountID, status: models.TimesheetStatusRejected,
			}))

		sheet, err := svc.Review(ctx, home, sheetID, models.ReviewTimesheetRequest{Decision: "reject"})
		require.NoError(t, err)
		assert.Equal(t, models.TimesheetStatusRejected, sheet.Status)
		assert.Nil(t, sheet.Rating)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Reviewed", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		home := careHomeIdentity()
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET status`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE t.id = \$1`).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: uuid.New(), careHomeID: home.AccountID, status: models.TimesheetStatusApproved,
			}))

		_, err := svc.Review(ctx, home, sheetID, models.ReviewTimesheetRequest{Decision: "reject"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("Approval Needs Signature", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		home := careHomeIdentity()
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET status .+ AND \(signed_at IS NOT NULL OR \$3 <> 'approved'\)`).
			WithArgs(sheetID, home.AccountID, "approved", "", nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE t.id = \$1`).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: uuid.New(), careHomeID: home.AccountID, status: models.TimesheetStatusPending,
			}))

		_, err := svc.Review(ctx, home, sheetID, models.ReviewTimesheetRequest{Decision: "approve"})
		assert.ErrorIs(t, err, ErrUnsigned)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Signed Pending Is A Conflict", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		home := careHomeIdentity()
		sheetID := uuid.New()

		mock.ExpectExec(`UPDATE timesheets SET status`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE t.id = \$1`).
			WillReturnRows(timesheetRows(timesheetFixture{
				id: sheetID, workerID: uuid.New(), careHomeID: home.AccountID,
				status: models.TimesheetStatusPending, signed: true,
			}))

		_, err := svc.Review(ctx, home, sheetID, models.ReviewTimesheetRequest{Decision: "approve"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("Invalid Request", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		bad := 6

		_, err := svc.Review(ctx, careHomeIdentity(), uuid.New(), models.ReviewTimesheetRequest{Decision: "maybe", Rating: &bad})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Fields, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTimesheetService_Lists(t *testing.T) {
	ctx := context.Background()

	t.Run("Care Home", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		home := careHomeIdentity()

		mock.ExpectQuery(`WHERE t.care_home_id = \$1`).WithArgs(home.AccountID).
			WillReturnRows(timesheetRows(
				timesheetFixture{id: uuid.New(), workerID: uuid.New(), careHomeID: home.AccountID, status: models.TimesheetStatusPending},
				timesheetFixture{id: uuid.New(), workerID: uuid.New(), careHomeID: home.AccountID, status: models.TimesheetStatusApproved},
			))

		board, err := svc.ListForCareHome(ctx, home)
		require.NoError(t, err)
		assert.Len(t, board.Pending, 1)
		assert.Len(t, board.Approved, 1)
		assert.Empty(t, board.Rejected)
		assert.Equal(t, 112.5, board.Pending[0].TotalPay)
	})

	t.Run("Worker", func(t *testing.T) {
		svc, mock := newTestTimesheetService(t)
		worker := workerIdentity()

		mock.ExpectQuery(`WHERE t.worker_id = \$1`).WithArgs(worker.AccountID).
			WillReturnRows(timesheetRows(
				timesheetFixture{id: uuid.New(), workerID: worker.AccountID, careHomeID: uuid.New(), status: models.TimesheetStatusRejected},
			))

		board, err := svc.ListForWorker(ctx, worker)
		require.NoError(t, err)
		assert.Len(t, board.Rejected, 1)
	})
}

func TestTimesheetService_Get(t *testing.T) {
	svc, mock := newTestTimesheetService(t)
	worker := workerIdentity()
	sheetID := uuid.New()
	fixture := timesheetFixture{id: sheetID, workerID: worker.AccountID, careHomeID: uuid.New(), status: models.TimesheetStatusPending}

	mock.ExpectQuery(`WHERE t.id = \$1`).WillReturnRows(timesheetRows(fixture))
	mock.ExpectQuery(`WHERE t.id = \$1`).WillReturnRows(timesheetRows(fixture))

	sheet, err := svc.Get(context.Background(), worker, sheetID)
	require.NoError(t, err)
	assert.Equal(t, sheetID, sheet.ID)

	_, err = svc.Get(context.Background(), careHomeIdentity(), sheetID)
	assert.ErrorIs(t, err, ErrForbidden)
}
