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

const incidentSelect = `
	SELECT i.id, i.care_home_id, i.worker_id,
		TRIM(w.first_name || ' ' || w.last_name) AS worker_name,
		i.reported_by,
		to_char(i.incident_date, 'YYYY-MM-DD') AS incident_date,
		to_char(i.incident_time, 'HH24:MI') AS incident_time,
		i.location, i.incident_type, i.severity, i.status, i.description,
		i.evidence, i.immediate_action, i.follow_up_action,
		i.witness_ids::text[] AS witness_ids,
		ARRAY(
			SELECT TRIM(x.first_name || ' ' || x.last_name)
			FROM care_workers x
			WHERE x.id = ANY(i.witness_ids)
			ORDER BY x.last_name, x.first_name
		) AS witness_names,
		i.closed_at, i.created_at, i.updated_at
	FROM incidents i
	JOIN care_workers w ON w.id = i.worker_id`

// IncidentRepository handles incident report database operations
type IncidentRepository struct {
	db Queryer
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db Queryer) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *IncidentRepository) WithTx(tx Queryer) *IncidentRepository {
	return &IncidentRepository{db: tx}
}

// Create inserts a reported incident and returns its id
func (r *IncidentRepository) Create(ctx context.Context, careHomeID uuid.UUID, reportedBy string, req models.ReportIncidentRequest) (uuid.UUID, error) {
	query := `
		INSERT INTO incidents (
			care_home_id, worker_id, reported_by, incident_date, incident_time, location,
			incident_type, severity, description, evidence, immediate_action, witness_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::uuid[])
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRowxContext(ctx, query,
		careHomeID,
		req.WorkerID,
		reportedBy,
		req.Date,
		req.Time,
		req.Location,
		req.Type,
		req.Severity,
		req.Description,
		req.Evidence,
		req.ImmediateAction,
		uuidArray(req.WitnessIDs),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create incident: %w", err)
	}
	return id, nil
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// CountWorkers returns how many of ids are existing care workers
func (r *IncidentRepository) CountWorkers(ctx context.Context, ids []uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM care_workers WHERE id = ANY($1::uuid[])`

	var count int
	if err := r.db.GetContext(ctx, &count, query, uuidArray(ids)); err != nil {
		return 0, fmt.Errorf("failed to count workers: %w", err)
	}
	return count, nil
}

// GetByID retrieves an incident; returns nil, nil when it does not exist
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	var incident models.Incident
	err := r.db.GetContext(ctx, &incident, incidentSelect+` WHERE i.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return &incident, nil
}

// ListByCareHome returns the care home's incidents, newest first. A non-empty
// search matches location, description or the worker's name.
func (r *IncidentRepository) ListByCareHome(ctx context.Context, careHomeID uuid.UUID, search string) ([]models.Incident, error) {
	query := incidentSelect + `
		WHERE i.care_home_id = $1
		  AND ($2 = '' OR i.location ILIKE '%' || $2 || '%'
		       OR i.description ILIKE '%' || $2 || '%'
		       OR (w.first_name || ' ' || w.last_name) ILIKE '%' || $2 || '%')
		ORDER BY i.incident_date DESC, i.incident_time DESC, i.id`

	incidents := []models.Incident{}
	if err := r.db.SelectContext(ctx, &incidents, query, careHomeID, search); err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return incidents, nil
}

// Close moves a reported incident to resolved or dismissed.
// Returns false when no row matched.
func (r *IncidentRepository) Close(ctx context.Context, id, careHomeID uuid.UUID, to models.IncidentStatus, followUp string) (bool, error) {
	query := `
		UPDATE incidents
		SET status = $3,
			follow_up_action = CASE WHEN $4 = '' THEN follow_up_action ELSE $4 END,
			closed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND care_home_id = $2 AND status = 'reported'`

	return r.exec(ctx, "close incident", query, id, careHomeID, to, followUp)
}

// SetFollowUp replaces the follow-up action on one of the care home's incidents.
// Returns false when no row matched.
func (r *IncidentRepository) SetFollowUp(ctx context.Context, id, careHomeID uuid.UUID, followUp string) (bool, error) {
	query := `
		UPDATE incidents
		SET follow_up_action = $3, updated_at = NOW()
		WHERE id = $1 AND care_home_id = $2`

	return r.exec(ctx, "update incident follow-up", query, id, careHomeID, followUp)
}

func (r *IncidentRepository) exec(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
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
