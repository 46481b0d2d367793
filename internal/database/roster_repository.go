package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/google/uuid"
)

// RosterRepository handles care home worker categories and roster summaries
type RosterRepository struct {
	db Queryer
}

// NewRosterRepository creates a new roster repository
func NewRosterRepository(db Queryer) *RosterRepository {
	return &RosterRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *RosterRepository) WithTx(tx Queryer) *RosterRepository {
	return &RosterRepository{db: tx}
}

// Upsert stores a worker's category at a care home
func (r *RosterRepository) Upsert(ctx context.Context, entry *models.RosterEntry) (*models.RosterEntry, error) {
	query := `
		INSERT INTO roster_entries (care_home_id, worker_id, category, note, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (care_home_id, worker_id)
		DO UPDATE SET category = EXCLUDED.category, note = EXCLUDED.note, updated_at = NOW()
		RETURNING care_home_id, worker_id, category, note, updated_at`

	var saved models.RosterEntry
	err := r.db.GetContext(ctx, &saved, query, entry.CareHomeID, entry.WorkerID, entry.Category, entry.Note)
	if err != nil {
		return nil, fmt.Errorf("failed to save roster entry: %w", err)
	}
	return &saved, nil
}

// GetCategory returns the worker's category at a care home, standard when unset
func (r *RosterRepository) GetCategory(ctx context.Context, careHomeID, workerID uuid.UUID) (models.RosterCategory, error) {
	query := `SELECT category FROM roster_entries WHERE care_home_id = $1 AND worker_id = $2`

	var category models.RosterCategory
	err := r.db.GetContext(ctx, &category, query, careHomeID, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RosterStandard, nil
		}
		return "", fmt.Errorf("failed to get roster category: %w", err)
	}
	return category, nil
}

// ListWorkers returns every worker who has applied to or worked the care
// home's shifts, or who has a roster entry there
func (r *RosterRepository) ListWorkers(ctx context.Context, careHomeID uuid.UUID) ([]models.RosterWorker, error) {
	query := `
		WITH known AS (
			SELECT worker_id FROM shifts WHERE care_home_id = $1 AND worker_id IS NOT NULL
			UNION
			SELECT worker_id FROM roster_entries WHERE care_home_id = $1
		)
		SELECT
			w.id AS worker_id,
			TRIM(w.first_name || ' ' || w.last_name) AS name,
			w.email, w.phone, w.preferred_role,
			(SELECT COUNT(*) FROM shifts s
			 WHERE s.care_home_id = $1 AND s.worker_id = w.id AND s.status = 'completed') AS completed_shifts,
			(SELECT COUNT(t.rating) FROM timesheets t
			 WHERE t.care_home_id = $1 AND t.worker_id = w.id) AS rating_count,
			(SELECT AVG(t.rating)::float8 FROM timesheets t
			 WHERE t.care_home_id = $1 AND t.worker_id = w.id AND t.rating IS NOT NULL) AS average_rating,
			COALESCE(re.category, 'standard') AS category,
			COALESCE(re.note, '') AS note
		FROM known k
		JOIN care_workers w ON w.id = k.worker_id
		LEFT JOIN roster_entries re ON re.care_home_id = $1 AND re.worker_id = w.id
		ORDER BY w.last_name, w.first_name, w.id`

	workers := []models.RosterWorker{}
	if err := r.db.SelectContext(ctx, &workers, query, careHomeID); err != nil {
		return nil, fmt.Errorf("failed to list roster workers: %w", err)
	}
	return workers, nil
}

// WorkerDetails returns a worker's profile with the care home's category for them.
// Completed shifts are counted across all care homes.
func (r *RosterRepository) WorkerDetails(ctx context.Context, careHomeID, workerID uuid.UUID) (*models.WorkerDetails, error) {
	query := `
		SELECT w.id, w.title, w.first_name, w.last_name, w.email, w.phone,
			w.preferred_role, w.years_experience, w.availability,
			(SELECT COUNT(*) FROM shifts s WHERE s.worker_id = w.id AND s.status = 'completed') AS completed_shifts,
			COALESCE(re.category, 'standard') AS category,
			COALESCE(re.note, '') AS note
		FROM care_workers w
		LEFT JOIN roster_entries re ON re.care_home_id = $1 AND re.worker_id = w.id
		WHERE w.id = $2`

	var details models.WorkerDetails
	err := r.db.GetContext(ctx, &details, query, careHomeID, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get worker details: %w", err)
	}
	return &details, nil
}
