package services

import (
	"context"
	"strings"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// IncidentService records care homes' incident reports about workers:
// reported -> resolved|dismissed
type IncidentService struct {
	db        database.DB
	incidents *database.IncidentRepository
	roster    *database.RosterRepository
	validator *validator.FieldValidator
	audit     *AuditService
	logger    logrus.FieldLogger
}

// NewIncidentService creates a new incident service
func NewIncidentService(
	db database.DB,
	incidents *database.IncidentRepository,
	roster *database.RosterRepository,
	v *validator.FieldValidator,
	audit *AuditService,
	logger logrus.FieldLogger,
) *IncidentService {
	return &IncidentService{
		db:        db,
		incidents: incidents,
		roster:    roster,
		validator: v,
		audit:     audit,
		logger:    logger,
	}
}

// Report files a new incident against a worker. With Blacklist set the worker
// is also blacklisted on the caller's roster in the same transaction.
func (s *IncidentService) Report(ctx context.Context, id models.Identity, req models.ReportIncidentRequest) (*models.Incident, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	req.Location = strings.TrimSpace(req.Location)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if err := s.checkWitnesses(ctx, req); err != nil {
		return nil, err
	}

	var incidentID uuid.UUID
	err := database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		incidentID, err = s.incidents.WithTx(tx).Create(ctx, id.AccountID, id.Name, req)
		if err != nil {
			return err
		}
		if !req.Blacklist {
			return nil
		}
		_, err = s.roster.WithTx(tx).Upsert(ctx, &models.RosterEntry{
			CareHomeID: id.AccountID,
			WorkerID:   req.WorkerID,
			Category:   models.RosterBlacklisted,
			Note:       "Incident " + incidentID.String(),
		})
		return err
	})
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"incident_id": incidentID,
		"worker_id":   req.WorkerID,
		"severity":    req.Severity,
		"blacklisted": req.Blacklist,
	}).Info("Incident reported")
	s.audit.LogEntity(ctx, id, "incident_reported", "incident", incidentID,
		map[string]interface{}{"worker_id": req.WorkerID, "severity": req.Severity, "blacklist": req.Blacklist})

	return s.load(ctx, incidentID)
}

// checkWitnesses rejects an accused worker listed as a witness, duplicates,
// and witness ids that are not workers
func (s *IncidentService) checkWitnesses(ctx context.Context, req models.ReportIncidentRequest) error {
	if len(req.WitnessIDs) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]bool, len(req.WitnessIDs))
	for _, w := range req.WitnessIDs {
		if w == req.WorkerID {
			return newValidationError("witness_ids", "nefield", "must not include the reported worker")
		}
		if seen[w] {
			return newValidationError("witness_ids", "unique", "must not repeat a witness")
		}
		seen[w] = true
	}

	count, err := s.incidents.CountWorkers(ctx, req.WitnessIDs)
	if err != nil {
		return err
	}
	if count != len(req.WitnessIDs) {
		return newValidationError("witness_ids", "exists", "must all be registered care workers")
	}
	return nil
}

// Get returns one of the caller's incidents
func (s *IncidentService) Get(ctx context.Context, id models.Identity, incidentID uuid.UUID) (*models.Incident, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	incident, err := s.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.CareHomeID != id.AccountID {
		return nil, ErrForbidden
	}
	return incident, nil
}

func (s *IncidentService) load(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, ErrNotFound
	}
	return incident, nil
}

// List returns the caller's incidents grouped by status
func (s *IncidentService) List(ctx context.Context, id models.Identity, search string) (*models.IncidentBoard, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	incidents, err := s.incidents.ListByCareHome(ctx, id.AccountID, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	board := models.NewIncidentBoard(incidents)
	return &board, nil
}

// Close resolves or dismisses a reported incident
func (s *IncidentService) Close(ctx context.Context, id models.Identity, incidentID uuid.UUID, req models.CloseIncidentRequest) (*models.Incident, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	req.FollowUpAction = strings.TrimSpace(req.FollowUpAction)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	status := models.IncidentStatus(req.Status)
	closed, err := s.incidents.Close(ctx, incidentID, id.AccountID, status, req.FollowUpAction)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, s.explainMiss(ctx, id, incidentID)
	}

	s.logger.WithFields(logrus.Fields{
		"incident_id": incidentID,
		"status":      status,
	}).Info("Incident closed")
	s.audit.LogEntity(ctx, id, "incident_"+req.Status, "incident", incidentID, nil)

	return s.load(ctx, incidentID)
}

// FollowUp records the follow-up action on one of the caller's incidents
func (s *IncidentService) FollowUp(ctx context.Context, id models.Identity, incidentID uuid.UUID, req models.FollowUpRequest) (*models.Incident, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	req.FollowUpAction = strings.TrimSpace(req.FollowUpAction)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	updated, err := s.incidents.SetFollowUp(ctx, incidentID, id.AccountID, req.FollowUpAction)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, s.explainMiss(ctx, id, incidentID)
	}

	s.audit.LogEntity(ctx, id, "incident_follow_up", "incident", incidentID, nil)
	return s.load(ctx, incidentID)
}

// explainMiss tells why an update on an incident matched no row
func (s *IncidentService) explainMiss(ctx context.Context, id models.Identity, incidentID uuid.UUID) error {
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}
	switch {
	case incident == nil:
		return ErrNotFound
	case incident.CareHomeID != id.AccountID:
		return ErrForbidden
	default:
		return ErrConflict
	}
}
