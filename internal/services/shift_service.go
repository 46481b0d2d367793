package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/pkg/payroll"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// upcomingLimit is how many approved shifts the worker board previews
const upcomingLimit = 3

const dateLayout = "2006-01-02"

// errNoTransition aborts a transaction whose CAS update matched no row
var errNoTransition = errors.New("shift status did not change")

// ShiftService implements the shift lifecycle:
// active -> pending -> approved|rejected, approved -> completed
type ShiftService struct {
	db         database.DB
	shifts     *database.ShiftRepository
	timesheets *database.TimesheetRepository
	roster     *database.RosterRepository
	validator  *validator.FieldValidator
	audit      *AuditService
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewShiftService creates a new shift service
func NewShiftService(
	db database.DB,
	shifts *database.ShiftRepository,
	timesheets *database.TimesheetRepository,
	roster *database.RosterRepository,
	v *validator.FieldValidator,
	audit *AuditService,
	logger logrus.FieldLogger,
) *ShiftService {
	return &ShiftService{
		db:         db,
		shifts:     shifts,
		timesheets: timesheets,
		roster:     roster,
		validator:  v,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

func requireCareHome(id models.Identity) error {
	if id.AccountID == uuid.Nil {
		return ErrUnauthenticated
	}
	if !id.IsCareHome() {
		return ErrForbidden
	}
	return nil
}

func requireWorker(id models.Identity) error {
	if id.AccountID == uuid.Nil {
		return ErrUnauthenticated
	}
	if !id.IsWorker() {
		return ErrForbidden
	}
	return nil
}

func newShift(careHomeID uuid.UUID, req models.PostShiftRequest) *models.Shift {
	staff := req.StaffRequired
	if staff == 0 {
		staff = 1
	}
	return &models.Shift{
		CareHomeID:          careHomeID,
		Date:                req.Date,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		Role:                req.Role,
		HourlyRate:          req.HourlyRate,
		StaffRequired:       staff,
		PaidBreak:           req.PaidBreak,
		RequiredSkills:      strings.TrimSpace(req.RequiredSkills),
		SpecialRequirements: strings.TrimSpace(req.SpecialRequirements),
		Status:              models.ShiftStatusActive,
	}
}

func deriveShifts(shifts []models.Shift) error {
	for i := range shifts {
		if err := shifts[i].Derive(); err != nil {
			return fmt.Errorf("shift %s: %w", shifts[i].ID, err)
		}
	}
	return nil
}

// Post creates an active shift owned by the calling care home. When
// requestKey is set and a shift was already posted with it, that shift is
// returned and created is false.
func (s *ShiftService) Post(ctx context.Context, id models.Identity, req models.PostShiftRequest, requestKey string) (shift *models.Shift, created bool, err error) {
	if err := requireCareHome(id); err != nil {
		return nil, false, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, false, err
	}

	requestKey = strings.TrimSpace(requestKey)
	if len(requestKey) > 200 {
		return nil, false, newValidationError("Idempotency-Key", "max", "must have at most 200 characters")
	}

	if requestKey != "" {
		existing, err := s.shifts.GetByRequestKey(ctx, id.AccountID, requestKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return s.replayed(existing)
		}
	}

	draft := newShift(id.AccountID, req)
	if requestKey != "" {
		draft.RequestKey = models.NewNullString(requestKey)
	}

	shift, err = s.shifts.Create(ctx, draft)
	if err != nil {
		// A concurrent Post with the same key won the insert
		if requestKey != "" && database.IsUniqueViolation(err) {
			existing, getErr := s.shifts.GetByRequestKey(ctx, id.AccountID, requestKey)
			if getErr != nil {
				return nil, false, getErr
			}
			if existing != nil {
				return s.replayed(existing)
			}
		}
		return nil, false, err
	}

	if err := shift.Derive(); err != nil {
		return nil, false, err
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id":     shift.ID,
		"care_home_id": id.AccountID,
		"date":         shift.Date,
	}).Info("Shift posted")
	s.audit.LogEntity(ctx, id, "shift_posted", "shift", shift.ID, nil)

	return shift, true, nil
}

func (s *ShiftService) replayed(shift *models.Shift) (*models.Shift, bool, error) {
	if err := shift.Derive(); err != nil {
		return nil, false, err
	}
	return shift, false, nil
}

// PostRecurring posts one shift per occurrence of req.RRule starting on
// req.Shift.Date, all sharing a series id, in one transaction
func (s *ShiftService) PostRecurring(ctx context.Context, id models.Identity, req models.PostRecurringShiftRequest) (*models.RecurringShiftResult, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	dates, err := ExpandOccurrences(req.Shift.Date, req.RRule, models.MaxRecurringShifts)
	if err != nil {
		return nil, err
	}

	seriesID := uuid.New()
	posted := make([]models.Shift, 0, len(dates))

	err = database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.shifts.WithTx(tx)
		for _, date := range dates {
			draft := newShift(id.AccountID, req.Shift)
			draft.Date = date
			draft.SeriesID = uuid.NullUUID{UUID: seriesID, Valid: true}

			created, err := repo.Create(ctx, draft)
			if err != nil {
				return err
			}
			posted = append(posted, *created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := deriveShifts(posted); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"series_id":    seriesID,
		"care_home_id": id.AccountID,
		"count":        len(posted),
	}).Info("Recurring shifts posted")
	s.audit.LogEntity(ctx, id, "shift_series_posted", "shift_series", seriesID,
		map[string]interface{}{"rrule": req.RRule, "count": len(posted)})

	return &models.RecurringShiftResult{SeriesID: seriesID, Shifts: posted}, nil
}

// ExpandOccurrences returns the YYYY-MM-DD dates produced by an RFC 5545
// recurrence rule starting at date. A rule producing more than max dates is
// rejected rather than truncated.
func ExpandOccurrences(date, rule string, max int) ([]string, error) {
	start, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, newValidationError("shift.date", "isodate", "must be a date in YYYY-MM-DD format")
	}

	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	if err != nil {
		return nil, newValidationError("rrule", "rrule", "must be a valid recurrence rule: "+err.Error())
	}
	// Defaults such as the weekday of a bare FREQ=WEEKLY come from DTSTART,
	// so it has to be set before the rule is built
	opt.Dtstart = start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, newValidationError("rrule", "rrule", "must be a valid recurrence rule: "+err.Error())
	}

	dates := []string{}
	next := r.Iterator()
	for {
		occurrence, ok := next()
		if !ok {
			break
		}
		if len(dates) == max {
			return nil, newValidationError("rrule", "max", fmt.Sprintf("must produce at most %d occurrences", max))
		}
		dates = append(dates, occurrence.Format(dateLayout))
	}

	if len(dates) == 0 {
		return nil, newValidationError("rrule", "rrule", "produces no occurrences")
	}
	return dates, nil
}

// Get returns one shift. Care homes see their own shifts; workers see open
// shifts and the ones they hold.
func (s *ShiftService) Get(ctx context.Context, id models.Identity, shiftID uuid.UUID) (*models.Shift, error) {
	if id.AccountID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ErrNotFound
	}

	switch {
	case id.IsCareHome() && shift.CareHomeID == id.AccountID:
	case id.IsWorker() && (shift.Status == models.ShiftStatusActive || shift.AssignedTo(id.AccountID)):
	default:
		return nil, ErrForbidden
	}

	if err := shift.Derive(); err != nil {
		return nil, err
	}
	return shift, nil
}

// Apply assigns the calling worker to an active shift
func (s *ShiftService) Apply(ctx context.Context, id models.Identity, shiftID uuid.UUID) (*models.Shift, error) {
	if err := requireWorker(id); err != nil {
		return nil, err
	}

	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ErrNotFound
	}

	category, err := s.roster.GetCategory(ctx, shift.CareHomeID, id.AccountID)
	if err != nil {
		return nil, err
	}
	if category == models.RosterBlacklisted {
		return nil, ErrForbidden
	}

	updated, err := s.shifts.Assign(ctx, shiftID, id.AccountID, id.Name)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrConflict
	}

	if err := updated.Derive(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id":  shiftID,
		"worker_id": id.AccountID,
	}).Info("Worker applied for shift")
	s.audit.LogEntity(ctx, id, "shift_applied", "shift", shiftID, nil)

	return updated, nil
}

// Withdraw releases a pending application held by the calling worker
func (s *ShiftService) Withdraw(ctx context.Context, id models.Identity, shiftID uuid.UUID) (*models.Shift, error) {
	if err := requireWorker(id); err != nil {
		return nil, err
	}

	updated, err := s.shifts.Release(ctx, shiftID, id.AccountID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		shift, err := s.shifts.GetByID(ctx, shiftID)
		if err != nil {
			return nil, err
		}
		switch {
		case shift == nil:
			return nil, ErrNotFound
		case !shift.AssignedTo(id.AccountID):
			return nil, ErrForbidden
		default:
			return nil, ErrConflict
		}
	}

	if err := updated.Derive(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id":  shiftID,
		"worker_id": id.AccountID,
	}).Info("Worker withdrew from shift")
	s.audit.LogEntity(ctx, id, "shift_withdrawn", "shift", shiftID, nil)

	return updated, nil
}

// Approve confirms the applicant on a pending shift
func (s *ShiftService) Approve(ctx context.Context, id models.Identity, shiftID uuid.UUID) (*models.Shift, error) {
	return s.transition(ctx, id, shiftID, models.ShiftStatusPending, models.ShiftStatusApproved)
}

// Reject declines the applicant on a pending shift
func (s *ShiftService) Reject(ctx context.Context, id models.Identity, shiftID uuid.UUID) (*models.Shift, error) {
	return s.transition(ctx, id, shiftID, models.ShiftStatusPending, models.ShiftStatusRejected)
}

func (s *ShiftService) transition(ctx context.Context, id models.Identity, shiftID uuid.UUID, from, to models.ShiftStatus) (*models.Shift, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}

	updated, err := s.shifts.TransitionStatus(ctx, shiftID, id.AccountID, from, to)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, s.explainMiss(ctx, shiftID, id.AccountID)
	}

	if err := updated.Derive(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id": shiftID,
		"from":     from,
		"to":       to,
	}).Info("Shift status changed")
	s.audit.LogEntity(ctx, id, "shift_"+string(to), "shift", shiftID, nil)

	return updated, nil
}

// explainMiss tells why a care home's CAS update matched no row
func (s *ShiftService) explainMiss(ctx context.Context, shiftID, careHomeID uuid.UUID) error {
	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return err
	}
	switch {
	case shift == nil:
		return ErrNotFound
	case shift.CareHomeID != careHomeID:
		return ErrForbidden
	default:
		return ErrConflict
	}
}

// Complete closes out an approved shift and opens its pending timesheet,
// with hours equal to the shift duration, in the same transaction
func (s *ShiftService) Complete(ctx context.Context, id models.Identity, shiftID uuid.UUID) (*models.CompletedShift, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}

	var result models.CompletedShift
	err := database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		updated, err := s.shifts.WithTx(tx).TransitionStatus(ctx, shiftID, id.AccountID,
			models.ShiftStatusApproved, models.ShiftStatusCompleted)
		if err != nil {
			return err
		}
		if updated == nil {
			return errNoTransition
		}

		minutes, err := payroll.Minutes(updated.StartTime, updated.EndTime)
		if err != nil {
			return err
		}

		sheetID, err := s.timesheets.WithTx(tx).CreateForShift(ctx, updated, minutes)
		if err != nil {
			return err
		}

		result.Shift = *updated
		result.TimesheetID = sheetID
		return nil
	})
	if errors.Is(err, errNoTransition) {
		return nil, s.explainMiss(ctx, shiftID, id.AccountID)
	}
	if err != nil {
		return nil, err
	}

	if err := result.Shift.Derive(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id":     shiftID,
		"timesheet_id": result.TimesheetID,
	}).Info("Shift completed")
	s.audit.LogEntity(ctx, id, "shift_completed", "shift", shiftID,
		map[string]interface{}{"timesheet_id": result.TimesheetID})

	return &result, nil
}

// ListForCareHome returns the care home's shifts grouped by status
func (s *ShiftService) ListForCareHome(ctx context.Context, id models.Identity) (*models.ShiftBoard, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}

	shifts, err := s.shifts.ListByCareHome(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	if err := deriveShifts(shifts); err != nil {
		return nil, err
	}

	board := models.NewShiftBoard(shifts)
	return &board, nil
}

// ListForWorker returns open shifts from today, the worker's own shifts and
// the next approved ones
func (s *ShiftService) ListForWorker(ctx context.Context, id models.Identity) (*models.WorkerShiftBoard, error) {
	if err := requireWorker(id); err != nil {
		return nil, err
	}

	today := s.now().Format(dateLayout)

	available, err := s.shifts.ListAvailable(ctx, id.AccountID, today)
	if err != nil {
		return nil, err
	}
	for i := range available {
		if err := available[i].Derive(); err != nil {
			return nil, fmt.Errorf("shift %s: %w", available[i].ID, err)
		}
	}

	mine, err := s.shifts.ListByWorker(ctx, id.AccountID, []models.ShiftStatus{
		models.ShiftStatusPending,
		models.ShiftStatusApproved,
		models.ShiftStatusCompleted,
	})
	if err != nil {
		return nil, err
	}
	if err := deriveShifts(mine); err != nil {
		return nil, err
	}

	upcoming, err := s.shifts.ListUpcoming(ctx, id.AccountID, today, upcomingLimit)
	if err != nil {
		return nil, err
	}
	if err := deriveShifts(upcoming); err != nil {
		return nil, err
	}

	return &models.WorkerShiftBoard{Available: available, Mine: mine, Upcoming: upcoming}, nil
}

// Overview returns per-status counts and the fill rate for the care home
func (s *ShiftService) Overview(ctx context.Context, id models.Identity) (*models.ShiftOverview, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}

	overview, err := s.shifts.Overview(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	overview.Derive()
	return overview, nil
}
