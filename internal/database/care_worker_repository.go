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

const careWorkerColumns = `
	id, title, first_name, last_name,
	to_char(date_of_birth, 'YYYY-MM-DD') AS date_of_birth,
	email, phone, address, nationality,
	nok_full_name, nok_email, nok_phone, nok_relationship,
	preferred_role, years_experience, availability, transport, qualifications,
	nmc_pin, national_insurance, terms_agreed, privacy_agreed, password_hash,
	created_at, updated_at`

// CareWorkerRepository handles care worker account database operations
type CareWorkerRepository struct {
	db Queryer
}

// NewCareWorkerRepository creates a new care worker repository
func NewCareWorkerRepository(db Queryer) *CareWorkerRepository {
	return &CareWorkerRepository{db: db}
}

// Create inserts a worker; a duplicate email surfaces as a unique violation
func (r *CareWorkerRepository) Create(ctx context.Context, w *models.CareWorker) (*models.CareWorker, error) {
	query := `
		INSERT INTO care_workers (
			title, first_name, last_name, date_of_birth, email, phone, address, nationality,
			nok_full_name, nok_email, nok_phone, nok_relationship,
			preferred_role, years_experience, availability, transport, qualifications,
			nmc_pin, national_insurance, terms_agreed, privacy_agreed, password_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING ` + careWorkerColumns

	qualifications := w.Qualifications
	if qualifications == nil {
		qualifications = pq.StringArray{}
	}

	var created models.CareWorker
	err := r.db.GetContext(ctx, &created, query,
		w.Title,
		w.FirstName,
		w.LastName,
		w.DateOfBirth,
		w.Email,
		w.Phone,
		w.Address,
		w.Nationality,
		w.NOKFullName,
		w.NOKEmail,
		w.NOKPhone,
		w.NOKRelationship,
		w.PreferredRole,
		w.YearsExperience,
		w.Availability,
		w.Transport,
		qualifications,
		w.NMCPin,
		w.NationalInsurance,
		w.TermsAgreed,
		w.PrivacyAgreed,
		w.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create care worker: %w", err)
	}
	return &created, nil
}

// GetByID retrieves a worker; returns nil, nil when it does not exist
func (r *CareWorkerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CareWorker, error) {
	return r.getOne(ctx, `SELECT `+careWorkerColumns+` FROM care_workers WHERE id = $1`, id)
}

// GetByEmail retrieves a worker by sign-in email
func (r *CareWorkerRepository) GetByEmail(ctx context.Context, email string) (*models.CareWorker, error) {
	return r.getOne(ctx, `SELECT `+careWorkerColumns+` FROM care_workers WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *CareWorkerRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.CareWorker, error) {
	var w models.CareWorker
	err := r.db.GetContext(ctx, &w, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get care worker: %w", err)
	}
	return &w, nil
}

// UpdateProfile applies the non-nil fields of req
func (r *CareWorkerRepository) UpdateProfile(ctx context.Context, id uuid.UUID, req *models.UpdateWorkerProfileRequest) (*models.CareWorker, error) {
	query := `
		UPDATE care_workers SET
			phone = COALESCE($2, phone),
			address = COALESCE($3, address),
			preferred_role = COALESCE($4, preferred_role),
			years_experience = COALESCE($5, years_experience),
			availability = COALESCE($6, availability),
			transport = COALESCE($7, transport),
			qualifications = COALESCE($8, qualifications),
			nok_full_name = COALESCE($9, nok_full_name),
			nok_email = COALESCE($10, nok_email),
			nok_phone = COALESCE($11, nok_phone),
			nok_relationship = COALESCE($12, nok_relationship),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + careWorkerColumns

	var qualifications interface{}
	if req.Qualifications != nil {
		qualifications = pq.StringArray(*req.Qualifications)
	}

	var w models.CareWorker
	err := r.db.GetContext(ctx, &w, query, id,
		req.Phone, req.Address, req.PreferredRole, req.YearsExperience,
		req.Availability, req.Transport, qualifications,
		req.NOKFullName, req.NOKEmail, req.NOKPhone, req.NOKRelationship)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update care worker: %w", err)
	}
	return &w, nil
}

// UpdatePassword replaces the stored password hash
func (r *CareWorkerRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE care_workers SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update care worker password: %w", err)
	}
	return nil
}
