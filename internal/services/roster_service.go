package services

import (
	"context"
	"strings"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RosterService gives care homes a view of the workers they deal with
type RosterService struct {
	roster    *database.RosterRepository
	validator *validator.FieldValidator
	phone     *validator.PhoneValidator
	audit     *AuditService
	logger    logrus.FieldLogger
}

// NewRosterService creates a new roster service
func NewRosterService(roster *database.RosterRepository, v *validator.FieldValidator, audit *AuditService, logger logrus.FieldLogger) *RosterService {
	return &RosterService{
		roster:    roster,
		validator: v,
		phone:     validator.NewPhoneValidator(),
		audit:     audit,
		logger:    logger,
	}
}

// ListWorkers returns the care home's roster with ratings and categories
func (s *RosterService) ListWorkers(ctx context.Context, id models.Identity) ([]models.RosterWorker, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}

	workers, err := s.roster.ListWorkers(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	for i := range workers {
		workers[i].Derive()
	}
	return workers, nil
}

// WorkerDetails returns one worker's profile as seen by the care home
func (s *RosterService) WorkerDetails(ctx context.Context, id models.Identity, workerID uuid.UUID) (*models.WorkerDetails, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}

	details, err := s.roster.WorkerDetails(ctx, id.AccountID, workerID)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, ErrNotFound
	}
	if formatted, err := s.phone.Format(details.Phone); err == nil {
		details.Phone = formatted
	}
	return details, nil
}

// SetCategory stores the care home's category and note for a worker
func (s *RosterService) SetCategory(ctx context.Context, id models.Identity, workerID uuid.UUID, req models.SetRosterCategoryRequest) (*models.RosterEntry, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	entry, err := s.roster.Upsert(ctx, &models.RosterEntry{
		CareHomeID: id.AccountID,
		WorkerID:   workerID,
		Category:   models.RosterCategory(req.Category),
		Note:       strings.TrimSpace(req.Note),
	})
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"care_home_id": id.AccountID,
		"worker_id":    workerID,
		"category":     entry.Category,
	}).Info("Roster category set")
	s.audit.LogEntity(ctx, id, "roster_category_set", "care_worker", workerID,
		map[string]interface{}{"category": entry.Category})

	return entry, nil
}
