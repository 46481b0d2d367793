package models

import (
	"time"

	"github.com/carelink/shift-portal/pkg/payroll"
	"github.com/google/uuid"
)

// TimesheetStatus represents the review state of a timesheet
type TimesheetStatus string

const (
	TimesheetStatusPending  TimesheetStatus = "pending"
	TimesheetStatusApproved TimesheetStatus = "approved"
	TimesheetStatusRejected TimesheetStatus = "rejected"
)

// Timesheet records hours worked against a completed shift
type Timesheet struct {
	ID         uuid.UUID       `json:"timesheet_id" db:"id"`
	ShiftID    uuid.UUID       `json:"shift_id" db:"shift_id"`
	WorkerID   uuid.UUID       `json:"worker_id" db:"worker_id"`
	CareHomeID uuid.UUID       `json:"care_home_id" db:"care_home_id"`
	Date       string          `json:"date" db:"shift_date"`
	StartTime  string          `json:"start_time" db:"start_time"`
	EndTime    string          `json:"end_time" db:"end_time"`
	Minutes    int             `json:"minutes_worked" db:"minutes_worked"`
	HourlyRate float64         `json:"hourly_rate" db:"hourly_rate"`
	PaidBreak  bool            `json:"paid_break" db:"paid_break"`
	Status     TimesheetStatus `json:"status" db:"status"`
	Comment    string          `json:"comment" db:"comment"`
	Rating     *int            `json:"rating" db:"rating"`
	SignedName NullString      `json:"signed_name" db:"signed_name"`
	SignedAt   NullTime        `json:"signed_at" db:"signed_at"`
	ReviewedAt NullTime        `json:"reviewed_at" db:"reviewed_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`

	// Joined for display
	WorkerName   string `json:"worker_name" db:"worker_name"`
	CareHomeName string `json:"care_home_name" db:"care_home_name"`

	HoursWorked float64 `json:"hours_worked" db:"-"`
	TotalPay    float64 `json:"total_pay" db:"-"`
}

// Derive fills HoursWorked and TotalPay from the stored minutes and rate
func (t *Timesheet) Derive() {
	t.HoursWorked = payroll.MinutesToHours(t.Minutes)
	t.TotalPay = payroll.Pay(t.HoursWorked, t.HourlyRate)
}

// IsSigned reports whether the worker has signed the timesheet
func (t *Timesheet) IsSigned() bool {
	return t.SignedAt.Valid
}

// TimesheetBoard groups timesheets by review status
type TimesheetBoard struct {
	Pending  []Timesheet `json:"pending"`
	Approved []Timesheet `json:"approved"`
	Rejected []Timesheet `json:"rejected"`
}

// NewTimesheetBoard buckets timesheets by status, preserving order
func NewTimesheetBoard(sheets []Timesheet) TimesheetBoard {
	board := TimesheetBoard{
		Pending:  []Timesheet{},
		Approved: []Timesheet{},
		Rejected: []Timesheet{},
	}
	for _, t := range sheets {
		switch t.Status {
		case TimesheetStatusPending:
			board.Pending = append(board.Pending, t)
		case TimesheetStatusApproved:
			board.Approved = append(board.Approved, t)
		case TimesheetStatusRejected:
			board.Rejected = append(board.Rejected, t)
		}
	}
	return board
}

// ReviewTimesheetRequest is a care home's decision on a timesheet
type ReviewTimesheetRequest struct {
	Decision  string `json:"decision" validate:"required,oneof=approve reject"`
	Comment   string `json:"comment" validate:"max=2000"`
	Rating    *int   `json:"rating" validate:"omitempty,min=1,max=5"`
	PaidBreak *bool  `json:"paid_break"`
}

// TargetStatus maps the decision onto the resulting timesheet status
func (r ReviewTimesheetRequest) TargetStatus() TimesheetStatus {
	if r.Decision == "approve" {
		return TimesheetStatusApproved
	}
	return TimesheetStatusRejected
}

// TimesheetReview is the persisted outcome of a review
type TimesheetReview struct {
	Status    TimesheetStatus
	Comment   string
	Rating    *int
	PaidBreak *bool
}
