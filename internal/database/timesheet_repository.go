package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/google/uuid"
)

const timesheetSelect = `
	SELECT t.id, t.shift_id, t.worker_id, t.care_home_id,
		to_char(t.shift_date, 'YYYY-MM-DD') AS shift_date,
		to_char(t.start_time, 'HH24:MI') AS start_time,
		to_char(t.end_time, 'HH24:MI') AS end_time,
		t.minutes_worked, t.hourly_rate, t.paid_break, t.status, t.comment, t.rating,
		t.signed_name, t.signed_at, t.reviewed_at, t.created_at, t.updated_at,
		TRIM(w.first_name || ' ' || w.last_name) AS worker_name,
		h.name AS care_home_name
	FROM timesheets t
	JOIN care_workers w ON w.id = t.worker_id
	JOIN care_homes h ON h.id = t.care_home_id`

const timesheetOrder = `ORDER BY t.shift_date, t.start_time, t.id`

// TimesheetRepository handles timesheet database operations
type TimesheetRepository struct {
	db Queryer
}

// NewTimesheetRepository creates a new timesheet repository
func NewTimesheetRepository(db Queryer) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *TimesheetRepository) WithTx(tx Queryer) *TimesheetRepository {
	return &TimesheetRepository{db: tx}
}

// CreateForShift inserts the pending timesheet for a completed shift.
// Worked time is stored as whole minutes so pay is never computed from
// rounded hours.
func (r *TimesheetRepository) CreateForShift(ctx context.Context, shift *models.Shift, minutes int) (uuid.UUID, error) {
	if !shift.WorkerID.Valid {
		return uuid.Nil, fmt.Errorf("shift %s has no assigned worker", shift.ID)
	}

	query := `
		INSERT INTO timesheets (
			shift_id, worker_id, care_home_id, shift_date, start_time, end_time,
			minutes_worked, hourly_rate, paid_break, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRowxContext(ctx, query,
		shift.ID,
		shift.WorkerID.UUID,
		shift.CareHomeID,
		shift.Date,
		shift.StartTime,
		shift.EndTime,
		minutes,
		shift.HourlyRate,
		shift.PaidBreak,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create timesheet: %w", err)
	}

	return id, nil
}

// GetByID retrieves a timesheet; returns nil, nil when it does not exist
func (r *TimesheetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	query := timesheetSelect + ` WHERE t.id = $1`

	var sheet models.Timesheet
	err := r.db.GetContext(ctx, &sheet, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get timesheet: %w", err)
	}

	return &sheet, nil
}

// Sign records the worker's signature on a pending, unsigned timesheet.
// Returns false when no row matched.
func (r *TimesheetRepository) Sign(ctx context.Context, id, workerID uuid.UUID, signedName string) (bool, error) {
	query := `
		UPDATE timesheets
		SET signed_name = $3, signed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND worker_id = $2 AND status = 'pending' AND signed_at IS NULL`

	return r.exec(ctx, "sign timesheet", query, id, workerID, signedName)
}

// Review applies a care home's decision to a pending timesheet. Approval
// also requires the worker's signature. Returns false when no row matched.
func (r *TimesheetRepository) Review(ctx context.Context, id, careHomeID uuid.UUID, review models.TimesheetReview) (bool, error) {
	query := `
		UPDATE timesheets
		SET status = $3,
			comment = $4,
			rating = $5,
			paid_break = COALESCE($6, paid_break),
			reviewed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND care_home_id = $2 AND status = 'pending'
		  AND (signed_at IS NOT NULL OR $3 <> 'approved')`

	return r.exec(ctx, "review timesheet", query,
		id, careHomeID, review.Status, review.Comment, review.Rating, review.PaidBreak)
}

func (r *TimesheetRepository) exec(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListByCareHome returns every timesheet for a care home
func (r *TimesheetRepository) ListByCareHome(ctx context.Context, careHomeID uuid.UUID) ([]models.Timesheet, error) {
	return r.list(ctx, "list care home timesheets", timesheetSelect+` WHERE t.care_home_id = $1 `+timesheetOrder, careHomeID)
}

// ListByWorker returns every timesheet for a worker
func (r *TimesheetRepository) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]models.Timesheet, error) {
	return r.list(ctx, "list worker timesheets", timesheetSelect+` WHERE t.worker_id = $1 `+timesheetOrder, workerID)
}

func (r *TimesheetRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.Timesheet, error) {
	sheets := []models.Timesheet{}
	if err := r.db.SelectContext(ctx, &sheets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return sheets, nil
}

// SumApprovedPay totals hours × rate over a worker's approved timesheets at a
// care home between two dates inclusive
func (r *TimesheetRepository) SumApprovedPay(ctx context.Context, workerID, careHomeID uuid.UUID, from, to string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(minutes_worked * hourly_rate) / 60, 0)
		FROM timesheets
		WHERE worker_id = $1 AND care_home_id = $2 AND status = 'approved'
		  AND shift_date BETWEEN $3 AND $4`

	var total float64
	if err := r.db.GetContext(ctx, &total, query, workerID, careHomeID, from, to); err != nil {
		return 0, fmt.Errorf("failed to sum approved pay: %w", err)
	}
	return total, nil
}
