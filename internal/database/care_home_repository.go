package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/google/uuid"
)

const careHomeColumns = `
	id, name, business_type, registration_number, vat_number, business_address, postcode,
	cqc_number, cqc_rating,
	to_char(last_inspection_date, 'YYYY-MM-DD') AS last_inspection_date,
	to_char(insurance_expiry, 'YYYY-MM-DD') AS insurance_expiry,
	key_policies, manager_name, manager_email, manager_phone, manager_nmc,
	terms_agreed, policies_agreed, updates_agreed, password_hash, created_at, updated_at`

// CareHomeRepository handles care home account database operations
type CareHomeRepository struct {
	db Queryer
}

// NewCareHomeRepository creates a new care home repository
func NewCareHomeRepository(db Queryer) *CareHomeRepository {
	return &CareHomeRepository{db: db}
}

// Create inserts a care home; a duplicate manager email surfaces as a unique violation
func (r *CareHomeRepository) Create(ctx context.Context, home *models.CareHome) (*models.CareHome, error) {
	query := `
		INSERT INTO care_homes (
			name, business_type, registration_number, vat_number, business_address, postcode,
			cqc_number, cqc_rating, last_inspection_date, insurance_expiry, key_policies,
			manager_name, manager_email, manager_phone, manager_nmc,
			terms_agreed, policies_agreed, updates_agreed, password_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING ` + careHomeColumns

	var created models.CareHome
	err := r.db.GetContext(ctx, &created, query,
		home.Name,
		home.BusinessType,
		home.RegistrationNumber,
		home.VATNumber,
		home.BusinessAddress,
		home.Postcode,
		home.CQCNumber,
		home.CQCRating,
		home.LastInspectionDate,
		home.InsuranceExpiry,
		home.KeyPolicies,
		home.ManagerName,
		home.ManagerEmail,
		home.ManagerPhone,
		home.ManagerNMC,
		home.TermsAgreed,
		home.PoliciesAgreed,
		home.UpdatesAgreed,
		home.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create care home: %w", err)
	}
	return &created, nil
}

// GetByID retrieves a care home; returns nil, nil when it does not exist
func (r *CareHomeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CareHome, error) {
	return r.getOne(ctx, `SELECT `+careHomeColumns+` FROM care_homes WHERE id = $1`, id)
}

// GetByEmail retrieves a care home by its manager's sign-in email
func (r *CareHomeRepository) GetByEmail(ctx context.Context, email string) (*models.CareHome, error) {
	return r.getOne(ctx, `SELECT `+careHomeColumns+` FROM care_homes WHERE LOWER(manager_email) = LOWER($1)`, email)
}

func (r *CareHomeRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.CareHome, error) {
	var home models.CareHome
	err := r.db.GetContext(ctx, &home, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get care home: %w", err)
	}
	return &home, nil
}

// UpdateProfile applies the non-nil fields of req
func (r *CareHomeRepository) UpdateProfile(ctx context.Context, id uuid.UUID, req *models.UpdateCareHomeProfileRequest) (*models.CareHome, error) {
	query := `
		UPDATE care_homes SET
			name = COALESCE($2, name),
			business_address = COALESCE($3, business_address),
			postcode = COALESCE($4, postcode),
			key_policies = COALESCE($5, key_policies),
			manager_name = COALESCE($6, manager_name),
			manager_phone = COALESCE($7, manager_phone),
			updates_agreed = COALESCE($8, updates_agreed),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + careHomeColumns

	var home models.CareHome
	err := r.db.GetContext(ctx, &home, query, id,
		req.Name, req.BusinessAddress, req.Postcode, req.KeyPolicies,
		req.ManagerName, req.ManagerPhone, req.UpdatesAgreed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update care home: %w", err)
	}
	return &home, nil
}

// UpdatePassword replaces the stored password hash
func (r *CareHomeRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE care_homes SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update care home password: %w", err)
	}
	return nil
}
