package models

import (
	"math"
	"time"

	"github.com/carelink/shift-portal/pkg/payroll"
	"github.com/google/uuid"
)

// ShiftStatus represents where a shift is in its lifecycle
type ShiftStatus string

const (
	ShiftStatusActive    ShiftStatus = "active"    // posted, no applicant
	ShiftStatusPending   ShiftStatus = "pending"   // a worker applied
	ShiftStatusApproved  ShiftStatus = "approved"  // applicant confirmed
	ShiftStatusRejected  ShiftStatus = "rejected"  // application declined
	ShiftStatusCompleted ShiftStatus = "completed" // worked and closed out
)

// MaxRecurringShifts caps how many occurrences one recurring post may create
const MaxRecurringShifts = 52

// Shift represents a posted unit of work owned by a care home
type Shift struct {
	ID                  uuid.UUID     `json:"shift_id" db:"id"`
	CareHomeID          uuid.UUID     `json:"care_home_id" db:"care_home_id"`
	Date                string        `json:"date" db:"shift_date"`
	StartTime           string        `json:"start_time" db:"start_time"`
	EndTime             string        `json:"end_time" db:"end_time"`
	Role                string        `json:"role" db:"role"`
	HourlyRate          float64       `json:"hourly_rate" db:"hourly_rate"`
	StaffRequired       int           `json:"staff_required" db:"staff_required"`
	PaidBreak           bool          `json:"paid_break" db:"paid_break"`
	RequiredSkills      string        `json:"required_skills" db:"required_skills"`
	SpecialRequirements string        `json:"special_requirements" db:"special_requirements"`
	Status              ShiftStatus   `json:"status" db:"status"`
	WorkerID            uuid.NullUUID `json:"worker_id" db:"worker_id"`
	WorkerName          NullString    `json:"worker_name" db:"worker_name"`
	RequestKey          NullString    `json:"-" db:"request_key"`
	SeriesID            uuid.NullUUID `json:"series_id" db:"series_id"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`

	// Derived from the time range and rate; see Derive
	DurationHours float64 `json:"duration_hours" db:"-"`
	Pay           float64 `json:"pay" db:"-"`
}

// Derive fills DurationHours and Pay from the stored times and rate
func (s *Shift) Derive() error {
	hours, err := payroll.Hours(s.StartTime, s.EndTime)
	if err != nil {
		return err
	}
	s.DurationHours = hours
	s.Pay = payroll.Pay(hours, s.HourlyRate)
	return nil
}

// AssignedTo reports whether workerID holds the shift
func (s *Shift) AssignedTo(workerID uuid.UUID) bool {
	return s.WorkerID.Valid && s.WorkerID.UUID == workerID
}

// AvailableShift is an open shift as listed to workers, with its care home's details
type AvailableShift struct {
	Shift
	CareHomeName     string `json:"care_home_name" db:"care_home_name"`
	CareHomePostcode string `json:"care_home_postcode" db:"care_home_postcode"`
}

// ShiftBoard groups a care home's shifts by status bucket
type ShiftBoard struct {
	Active    []Shift `json:"active"`
	Pending   []Shift `json:"pending"`
	Approved  []Shift `json:"approved"`
	Rejected  []Shift `json:"rejected"`
	Completed []Shift `json:"completed"`
}

// NewShiftBoard buckets shifts by status, preserving input order within each bucket
func NewShiftBoard(shifts []Shift) ShiftBoard {
	board := ShiftBoard{
		Active:    []Shift{},
		Pending:   []Shift{},
		Approved:  []Shift{},
		Rejected:  []Shift{},
		Completed: []Shift{},
	}
	for _, s := range shifts {
		switch s.Status {
		case ShiftStatusActive:
			board.Active = append(board.Active, s)
		case ShiftStatusPending:
			board.Pending = append(board.Pending, s)
		case ShiftStatusApproved:
			board.Approved = append(board.Approved, s)
		case ShiftStatusRejected:
			board.Rejected = append(board.Rejected, s)
		case ShiftStatusCompleted:
			board.Completed = append(board.Completed, s)
		}
	}
	return board
}

// WorkerShiftBoard is the worker's view: open shifts, own shifts and the next approved ones
type WorkerShiftBoard struct {
	Available []AvailableShift `json:"available"`
	Mine      []Shift          `json:"mine"`
	Upcoming  []Shift          `json:"upcoming"`
}

// ShiftOverview counts a care home's shifts per status
type ShiftOverview struct {
	Active            int     `json:"active" db:"active"`
	Pending           int     `json:"pending" db:"pending"`
	Approved          int     `json:"approved" db:"approved"`
	Rejected          int     `json:"rejected" db:"rejected"`
	Completed         int     `json:"completed" db:"completed"`
	PendingTimesheets int     `json:"pending_timesheets" db:"pending_timesheets"`
	FillRate          float64 `json:"fill_rate" db:"-"`
}

// Derive computes FillRate: filled (approved or completed) over all
// non-rejected shifts, 0 when there are none
func (o *ShiftOverview) Derive() {
	filled := o.Approved + o.Completed
	total := o.Active + o.Pending + filled
	if total == 0 {
		o.FillRate = 0
		return
	}
	o.FillRate = math.Round(float64(filled)/float64(total)*1000) / 1000
}

// CompletedShift is returned when a care home closes out a shift
type CompletedShift struct {
	Shift       Shift     `json:"shift"`
	TimesheetID uuid.UUID `json:"timesheet_id"`
}

// PostShiftRequest carries the fields a care home submits to post a shift
type PostShiftRequest struct {
	Date                string  `json:"date" validate:"required,isodate"`
	StartTime           string  `json:"start_time" validate:"required,hhmm"`
	EndTime             string  `json:"end_time" validate:"required,hhmm,nefield=StartTime"`
	Role                string  `json:"role" validate:"required,shiftrole"`
	HourlyRate          float64 `json:"hourly_rate" validate:"gt=0,max=1000"`
	StaffRequired       int     `json:"staff_required" validate:"min=0,max=50"`
	PaidBreak           bool    `json:"paid_break"`
	RequiredSkills      string  `json:"required_skills" validate:"max=2000"`
	SpecialRequirements string  `json:"special_requirements" validate:"max=2000"`
}

// PostRecurringShiftRequest posts one shift per occurrence of an RFC 5545 rule
type PostRecurringShiftRequest struct {
	Shift PostShiftRequest `json:"shift" validate:"required"`
	RRule string           `json:"rrule" validate:"required,max=500"`
}

// RecurringShiftResult is returned after posting a recurring series
type RecurringShiftResult struct {
	SeriesID uuid.UUID `json:"series_id"`
	Shifts   []Shift   `json:"shifts"`
}
