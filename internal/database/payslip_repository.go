package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/google/uuid"
)

const payslipSelect = `
	SELECT p.id, p.worker_id, p.care_home_id,
		to_char(p.period_start, 'YYYY-MM-DD') AS period_start,
		to_char(p.period_end, 'YYYY-MM-DD') AS period_end,
		p.basic_pay, p.overtime_pay, p.holiday_pay, p.national_insurance, p.income_tax,
		p.other_deductions, p.issued_at,
		TRIM(w.first_name || ' ' || w.last_name) AS worker_name,
		h.name AS care_home_name
	FROM payslips p
	JOIN care_workers w ON w.id = p.worker_id
	JOIN care_homes h ON h.id = p.care_home_id`

// PayslipRepository handles payslip database operations
type PayslipRepository struct {
	db Queryer
}

// NewPayslipRepository creates a new payslip repository
func NewPayslipRepository(db Queryer) *PayslipRepository {
	return &PayslipRepository{db: db}
}

// Create stores a payslip and returns its id
func (r *PayslipRepository) Create(ctx context.Context, p *models.Payslip) (uuid.UUID, error) {
	query := `
		INSERT INTO payslips (
			worker_id, care_home_id, period_start, period_end,
			basic_pay, overtime_pay, holiday_pay, national_insurance, income_tax,
			other_deductions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRowxContext(ctx, query,
		p.WorkerID,
		p.CareHomeID,
		p.PeriodStart,
		p.PeriodEnd,
		int64(p.BasicPay),
		int64(p.OvertimePay),
		int64(p.HolidayPay),
		int64(p.NationalInsurance),
		int64(p.IncomeTax),
		p.OtherDeductions,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create payslip: %w", err)
	}

	return id, nil
}

// GetByID retrieves a payslip; returns nil, nil when it does not exist
func (r *PayslipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payslip, error) {
	var p models.Payslip
	err := r.db.GetContext(ctx, &p, payslipSelect+` WHERE p.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payslip: %w", err)
	}
	return &p, nil
}

// ListByWorker returns a worker's payslips, newest first
func (r *PayslipRepository) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]models.Payslip, error) {
	payslips := []models.Payslip{}
	query := payslipSelect + ` WHERE p.worker_id = $1 ORDER BY p.issued_at DESC, p.id`
	if err := r.db.SelectContext(ctx, &payslips, query, workerID); err != nil {
		return nil, fmt.Errorf("failed to list worker payslips: %w", err)
	}
	return payslips, nil
}

// ListByCareHome returns payslips a care home issued, newest first
func (r *PayslipRepository) ListByCareHome(ctx context.Context, careHomeID uuid.UUID) ([]models.Payslip, error) {
	payslips := []models.Payslip{}
	query := payslipSelect + ` WHERE p.care_home_id = $1 ORDER BY p.issued_at DESC, p.id`
	if err := r.db.SelectContext(ctx, &payslips, query, careHomeID); err != nil {
		return nil, fmt.Errorf("failed to list care home payslips: %w", err)
	}
	return payslips, nil
}
