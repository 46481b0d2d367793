package services

import (
	"context"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/payroll"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PayslipService issues and lists payslips
type PayslipService struct {
	payslips   *database.PayslipRepository
	timesheets *database.TimesheetRepository
	validator  *validator.FieldValidator
	audit      *AuditService
	logger     logrus.FieldLogger
}

// NewPayslipService creates a new payslip service
func NewPayslipService(
	payslips *database.PayslipRepository,
	timesheets *database.TimesheetRepository,
	v *validator.FieldValidator,
	audit *AuditService,
	logger logrus.FieldLogger,
) *PayslipService {
	return &PayslipService{
		payslips:   payslips,
		timesheets: timesheets,
		validator:  v,
		audit:      audit,
		logger:     logger,
	}
}

// Issue creates a payslip from the calling care home to a worker. Without a
// basic pay figure, basic pay is the worker's approved timesheet pay at this
// care home over the period.
func (s *PayslipService) Issue(ctx context.Context, id models.Identity, req models.IssuePayslipRequest) (*models.Payslip, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	// ISO dates order lexically
	if req.PeriodEnd < req.PeriodStart {
		return nil, newValidationError("period_end", "gtefield", "must not be before period_start")
	}

	var basic payroll.Money
	if req.BasicPay != nil {
		basic = *req.BasicPay
	} else {
		total, err := s.timesheets.SumApprovedPay(ctx, req.WorkerID, id.AccountID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return nil, err
		}
		basic = payroll.FromPounds(total)
	}

	draft := &models.Payslip{
		WorkerID:          req.WorkerID,
		CareHomeID:        id.AccountID,
		PeriodStart:       req.PeriodStart,
		PeriodEnd:         req.PeriodEnd,
		BasicPay:          basic,
		OvertimePay:       req.OvertimePay,
		HolidayPay:        req.HolidayPay,
		NationalInsurance: req.NationalInsurance,
		IncomeTax:         req.IncomeTax,
		OtherDeductions:   models.Deductions(req.OtherDeductions),
	}

	payslipID, err := s.payslips.Create(ctx, draft)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	payslip, err := s.payslips.GetByID(ctx, payslipID)
	if err != nil {
		return nil, err
	}
	if payslip == nil {
		return nil, ErrNotFound
	}
	payslip.Derive()

	s.logger.WithFields(logrus.Fields{
		"payslip_id":   payslipID,
		"worker_id":    req.WorkerID,
		"care_home_id": id.AccountID,
		"net_pay":      payslip.NetPay.String(),
	}).Info("Payslip issued")
	s.audit.LogEntity(ctx, id, "payslip_issued", "payslip", payslipID,
		map[string]interface{}{"worker_id": req.WorkerID})

	return payslip, nil
}

// Get returns a payslip to its worker or issuing care home
func (s *PayslipService) Get(ctx context.Context, id models.Identity, payslipID uuid.UUID) (*models.Payslip, error) {
	if id.AccountID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	payslip, err := s.payslips.GetByID(ctx, payslipID)
	if err != nil {
		return nil, err
	}
	if payslip == nil {
		return nil, ErrNotFound
	}
	if !(id.IsCareHome() && payslip.CareHomeID == id.AccountID) && !(id.IsWorker() && payslip.WorkerID == id.AccountID) {
		return nil, ErrForbidden
	}

	payslip.Derive()
	return payslip, nil
}

// List returns the caller's payslips newest first: received for a worker,
// issued for a care home
func (s *PayslipService) List(ctx context.Context, id models.Identity) ([]models.Payslip, error) {
	var (
		payslips []models.Payslip
		err      error
	)
	switch {
	case id.AccountID == uuid.Nil:
		return nil, ErrUnauthenticated
	case id.IsWorker():
		payslips, err = s.payslips.ListByWorker(ctx, id.AccountID)
	case id.IsCareHome():
		payslips, err = s.payslips.ListByCareHome(ctx, id.AccountID)
	default:
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	for i := range payslips {
		payslips[i].Derive()
	}
	return payslips, nil
}
