package services

import (
	"context"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TimesheetService implements the timesheet lifecycle: pending -> approved|rejected
type TimesheetService struct {
	timesheets *database.TimesheetRepository
	validator  *validator.FieldValidator
	audit      *AuditService
	logger     logrus.FieldLogger
}

// NewTimesheetService creates a new timesheet service
func NewTimesheetService(
	timesheets *database.TimesheetRepository,
	v *validator.FieldValidator,
	audit *AuditService,
	logger logrus.FieldLogger,
) *TimesheetService {
	return &TimesheetService{
		timesheets: timesheets,
		validator:  v,
		audit:      audit,
		logger:     logger,
	}
}

// Get returns a timesheet visible to its worker or its care home
func (s *TimesheetService) Get(ctx context.Context, id models.Identity, sheetID uuid.UUID) (*models.Timesheet, error) {
	if id.AccountID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	sheet, err := s.load(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if !canSee(id, sheet) {
		return nil, ErrForbidden
	}
	return sheet, nil
}

func canSee(id models.Identity, sheet *models.Timesheet) bool {
	if id.IsCareHome() {
		return sheet.CareHomeID == id.AccountID
	}
	return id.IsWorker() && sheet.WorkerID == id.AccountID
}

func (s *TimesheetService) load(ctx context.Context, sheetID uuid.UUID) (*models.Timesheet, error) {
	sheet, err := s.timesheets.GetByID(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if sheet == nil {
		return nil, ErrNotFound
	}
	sheet.Derive()
	return sheet, nil
}

// Sign records the calling worker's signature on their pending timesheet
func (s *TimesheetService) Sign(ctx context.Context, id models.Identity, sheetID uuid.UUID) (*models.Timesheet, error) {
	if err := requireWorker(id); err != nil {
		return nil, err
	}

	signed, err := s.timesheets.Sign(ctx, sheetID, id.AccountID, id.Name)
	if err != nil {
		return nil, err
	}
	if !signed {
		return nil, s.explainMiss(ctx, id, sheetID)
	}

	s.logger.WithFields(logrus.Fields{
		"timesheet_id": sheetID,
		"worker_id":    id.AccountID,
	}).Info("Timesheet signed")
	s.audit.LogEntity(ctx, id, "timesheet_signed", "timesheet", sheetID, nil)

	return s.load(ctx, sheetID)
}

// Review applies the calling care home's decision to a pending timesheet
func (s *TimesheetService) Review(ctx context.Context, id models.Identity, sheetID uuid.UUID, req models.ReviewTimesheetRequest) (*models.Timesheet, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	review := models.TimesheetReview{
		Status:    req.TargetStatus(),
		Comment:   req.Comment,
		Rating:    req.Rating,
		PaidBreak: req.PaidBreak,
	}

	reviewed, err := s.timesheets.Review(ctx, sheetID, id.AccountID, review)
	if err != nil {
		return nil, err
	}
	if !reviewed {
		return nil, s.explainReviewMiss(ctx, id, sheetID, review.Status)
	}

	s.logger.WithFields(logrus.Fields{
		"timesheet_id": sheetID,
		"status":       review.Status,
	}).Info("Timesheet reviewed")
	s.audit.LogEntity(ctx, id, "timesheet_"+string(review.Status), "timesheet", sheetID,
		map[string]interface{}{"rating": req.Rating})

	return s.load(ctx, sheetID)
}

// explainMiss tells why a CAS update on a timesheet matched no row
func (s *TimesheetService) explainMiss(ctx context.Context, id models.Identity, sheetID uuid.UUID) error {
	sheet, err := s.timesheets.GetByID(ctx, sheetID)
	if err != nil {
		return err
	}
	switch {
	case sheet == nil:
		return ErrNotFound
	case !canSee(id, sheet):
		return ErrForbidden
	default:
		return ErrConflict
	}
}

// explainReviewMiss is explainMiss plus the unsigned-approval case
func (s *TimesheetService) explainReviewMiss(ctx context.Context, id models.Identity, sheetID uuid.UUID, target models.TimesheetStatus) error {
	sheet, err := s.timesheets.GetByID(ctx, sheetID)
	if err != nil {
		return err
	}
	switch {
	case sheet == nil:
		return ErrNotFound
	case !canSee(id, sheet):
		return ErrForbidden
	case sheet.Status == models.TimesheetStatusPending &&
		target == models.TimesheetStatusApproved && !sheet.IsSigned():
		return ErrUnsigned
	default:
		return ErrConflict
	}
}

// ListForCareHome returns the care home's timesheets grouped by status
func (s *TimesheetService) ListForCareHome(ctx context.Context, id models.Identity) (*models.TimesheetBoard, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	sheets, err := s.timesheets.ListByCareHome(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	return timesheetBoard(sheets), nil
}

// ListForWorker returns the worker's timesheets grouped by status
func (s *TimesheetService) ListForWorker(ctx context.Context, id models.Identity) (*models.TimesheetBoard, error) {
	if err := requireWorker(id); err != nil {
		return nil, err
	}
	sheets, err := s.timesheets.ListByWorker(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	return timesheetBoard(sheets), nil
}

func timesheetBoard(sheets []models.Timesheet) *models.TimesheetBoard {
	for i := range sheets {
		sheets[i].Derive()
	}
	board := models.NewTimesheetBoard(sheets)
	return &board
}
