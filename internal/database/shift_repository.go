package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// shiftColumns selects a shift with dates and times rendered as strings.
// prefix is a table alias ending in "." or "".
func shiftColumns(prefix string) string {
	return fmt.Sprintf(`%[1]sid, %[1]scare_home_id,
		to_char(%[1]sshift_date, 'YYYY-MM-DD') AS shift_date,
		to_char(%[1]sstart_time, 'HH24:MI') AS start_time,
		to_char(%[1]send_time, 'HH24:MI') AS end_time,
		%[1]srole, %[1]shourly_rate, %[1]sstaff_required, %[1]spaid_break,
		%[1]srequired_skills, %[1]sspecial_requirements, %[1]sstatus,
		%[1]sworker_id, %[1]sworker_name, %[1]srequest_key, %[1]sseries_id,
		%[1]screated_at, %[1]supdated_at`, prefix)
}

// shiftOrder keeps listings stable across refetches
const shiftOrder = `ORDER BY shift_date, start_time, id`

// ShiftRepository handles shift database operations
type ShiftRepository struct {
	db Queryer
}

// NewShiftRepository creates a new shift repository
func NewShiftRepository(db Queryer) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ShiftRepository) WithTx(tx Queryer) *ShiftRepository {
	return &ShiftRepository{db: tx}
}

// Create inserts a new active shift and returns the stored row
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) (*models.Shift, error) {
	query := `
		INSERT INTO shifts (
			care_home_id, shift_date, start_time, end_time, role, hourly_rate,
			staff_required, paid_break, required_skills, special_requirements,
			status, request_key, series_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'active', $11, $12)
		RETURNING ` + shiftColumns("")

	var created models.Shift
	err := r.db.GetContext(ctx, &created, query,
		shift.CareHomeID,
		shift.Date,
		shift.StartTime,
		shift.EndTime,
		shift.Role,
		shift.HourlyRate,
		shift.StaffRequired,
		shift.PaidBreak,
		shift.RequiredSkills,
		shift.SpecialRequirements,
		shift.RequestKey,
		shift.SeriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shift: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a shift; returns nil, nil when it does not exist
func (r *ShiftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	query := `SELECT ` + shiftColumns("") + ` FROM shifts WHERE id = $1`

	var shift models.Shift
	err := r.db.GetContext(ctx, &shift, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}

	return &shift, nil
}

// GetByRequestKey finds a shift posted by careHomeID with the given idempotency key
func (r *ShiftRepository) GetByRequestKey(ctx context.Context, careHomeID uuid.UUID, key string) (*models.Shift, error) {
	query := `SELECT ` + shiftColumns("") + ` FROM shifts WHERE care_home_id = $1 AND request_key = $2`

	var shift models.Shift
	err := r.db.GetContext(ctx, &shift, query, careHomeID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shift by request key: %w", err)
	}

	return &shift, nil
}

// TransitionStatus moves a shift owned by careHomeID from one status to another.
// It returns nil, nil when no row matched (missing, foreign, or already moved).
func (r *ShiftRepository) TransitionStatus(ctx context.Context, id, careHomeID uuid.UUID, from, to models.ShiftStatus) (*models.Shift, error) {
	query := `
		UPDATE shifts
		SET status = $4, updated_at = NOW()
		WHERE id = $1 AND care_home_id = $2 AND status = $3
		RETURNING ` + shiftColumns("")

	return r.casUpdate(ctx, query, "transition shift", id, careHomeID, from, to)
}

// Assign attaches a worker to an active shift, moving it to pending.
// It returns nil, nil when the shift is missing or no longer active.
func (r *ShiftRepository) Assign(ctx context.Context, id, workerID uuid.UUID, workerName string) (*models.Shift, error) {
	query := `
		UPDATE shifts
		SET status = 'pending', worker_id = $2, worker_name = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + shiftColumns("")

	return r.casUpdate(ctx, query, "assign shift", id, workerID, workerName)
}

// Release returns a pending shift held by workerID to active.
// It returns nil, nil when the shift is missing, not pending, or held by someone else.
func (r *ShiftRepository) Release(ctx context.Context, id, workerID uuid.UUID) (*models.Shift, error) {
	query := `
		UPDATE shifts
		SET status = 'active', worker_id = NULL, worker_name = NULL, updated_at = NOW()
		WHERE id = $1 AND worker_id = $2 AND status = 'pending'
		RETURNING ` + shiftColumns("")

	return r.casUpdate(ctx, query, "release shift", id, workerID)
}

func (r *ShiftRepository) casUpdate(ctx context.Context, query, op string, args ...interface{}) (*models.Shift, error) {
	var shift models.Shift
	err := r.db.GetContext(ctx, &shift, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return &shift, nil
}

// ListByCareHome returns every shift a care home has posted
func (r *ShiftRepository) ListByCareHome(ctx context.Context, careHomeID uuid.UUID) ([]models.Shift, error) {
	query := `SELECT ` + shiftColumns("") + ` FROM shifts WHERE care_home_id = $1 ` + shiftOrder

	shifts := []models.Shift{}
	if err := r.db.SelectContext(ctx, &shifts, query, careHomeID); err != nil {
		return nil, fmt.Errorf("failed to list care home shifts: %w", err)
	}
	return shifts, nil
}

// ListAvailable returns open shifts from fromDate onwards, excluding care
// homes that have blacklisted workerID
func (r *ShiftRepository) ListAvailable(ctx context.Context, workerID uuid.UUID, fromDate string) ([]models.AvailableShift, error) {
	query := `
		SELECT ` + shiftColumns("s.") + `,
			h.name AS care_home_name, h.postcode AS care_home_postcode
		FROM shifts s
		JOIN care_homes h ON h.id = s.care_home_id
		LEFT JOIN roster_entries re ON re.care_home_id = s.care_home_id AND re.worker_id = $1
		WHERE s.status = 'active'
		  AND s.shift_date >= $2
		  AND (re.category IS NULL OR re.category <> 'blacklisted')
		ORDER BY s.shift_date, s.start_time, s.id`

	shifts := []models.AvailableShift{}
	if err := r.db.SelectContext(ctx, &shifts, query, workerID, fromDate); err != nil {
		return nil, fmt.Errorf("failed to list available shifts: %w", err)
	}
	return shifts, nil
}

// ListByWorker returns shifts held by workerID in any of statuses
func (r *ShiftRepository) ListByWorker(ctx context.Context, workerID uuid.UUID, statuses []models.ShiftStatus) ([]models.Shift, error) {
	query := `SELECT ` + shiftColumns("") + `
		FROM shifts
		WHERE worker_id = $1 AND status = ANY($2) ` + shiftOrder

	shifts := []models.Shift{}
	if err := r.db.SelectContext(ctx, &shifts, query, workerID, pq.Array(statusStrings(statuses))); err != nil {
		return nil, fmt.Errorf("failed to list worker shifts: %w", err)
	}
	return shifts, nil
}

// ListUpcoming returns up to limit approved shifts for workerID from fromDate onwards
func (r *ShiftRepository) ListUpcoming(ctx context.Context, workerID uuid.UUID, fromDate string, limit int) ([]models.Shift, error) {
	query := `SELECT ` + shiftColumns("") + `
		FROM shifts
		WHERE worker_id = $1 AND status = 'approved' AND shift_date >= $2
		` + shiftOrder + `
		LIMIT $3`

	shifts := []models.Shift{}
	if err := r.db.SelectContext(ctx, &shifts, query, workerID, fromDate, limit); err != nil {
		return nil, fmt.Errorf("failed to list upcoming shifts: %w", err)
	}
	return shifts, nil
}

// Overview counts a care home's shifts per status and its pending timesheets
func (r *ShiftRepository) Overview(ctx context.Context, careHomeID uuid.UUID) (*models.ShiftOverview, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active')    AS active,
			COUNT(*) FILTER (WHERE status = 'pending')   AS pending,
			COUNT(*) FILTER (WHERE status = 'approved')  AS approved,
			COUNT(*) FILTER (WHERE status = 'rejected')  AS rejected,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			(SELECT COUNT(*) FROM timesheets t
			 WHERE t.care_home_id = $1 AND t.status = 'pending') AS pending_timesheets
		FROM shifts
		WHERE care_home_id = $1`

	var overview models.ShiftOverview
	if err := r.db.GetContext(ctx, &overview, query, careHomeID); err != nil {
		return nil, fmt.Errorf("failed to get shift overview: %w", err)
	}
	return &overview, nil
}

func statusStrings(statuses []models.ShiftStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
