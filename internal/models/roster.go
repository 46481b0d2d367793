package models

import (
	"time"

	"github.com/google/uuid"
)

// RosterCategory is how a care home classifies a worker
type RosterCategory string

const (
	RosterPriority    RosterCategory = "priority"
	RosterStandard    RosterCategory = "standard"
	RosterBlacklisted RosterCategory = "blacklisted"
)

// LowRatingThreshold marks workers whose average rating falls below it
const LowRatingThreshold = 3.0

// RosterEntry is a care home's stored category for one worker
type RosterEntry struct {
	CareHomeID uuid.UUID      `json:"care_home_id" db:"care_home_id"`
	WorkerID   uuid.UUID      `json:"worker_id" db:"worker_id"`
	Category   RosterCategory `json:"category" db:"category"`
	Note       string         `json:"note" db:"note"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// RosterWorker is one row of a care home's worker roster
type RosterWorker struct {
	WorkerID        uuid.UUID      `json:"worker_id" db:"worker_id"`
	Name            string         `json:"name" db:"name"`
	Email           string         `json:"email" db:"email"`
	Phone           string         `json:"phone" db:"phone"`
	PreferredRole   string         `json:"preferred_role" db:"preferred_role"`
	CompletedShifts int            `json:"completed_shifts" db:"completed_shifts"`
	RatingCount     int            `json:"rating_count" db:"rating_count"`
	AverageRating   *float64       `json:"average_rating" db:"average_rating"`
	Category        RosterCategory `json:"category" db:"category"`
	Note            string         `json:"note" db:"note"`
	LowRated        bool           `json:"low_rated" db:"-"`
}

// Derive sets LowRated from the average rating
func (w *RosterWorker) Derive() {
	w.LowRated = w.AverageRating != nil && *w.AverageRating < LowRatingThreshold
}

// WorkerDetails is a worker profile as shown to a care home
type WorkerDetails struct {
	WorkerID        uuid.UUID      `json:"worker_id" db:"id"`
	Title           string         `json:"title" db:"title"`
	FirstName       string         `json:"first_name" db:"first_name"`
	LastName        string         `json:"last_name" db:"last_name"`
	Email           string         `json:"email" db:"email"`
	Phone           string         `json:"phone" db:"phone"`
	PreferredRole   string         `json:"preferred_role" db:"preferred_role"`
	YearsExperience int            `json:"years_experience" db:"years_experience"`
	Availability    string         `json:"availability" db:"availability"`
	CompletedShifts int            `json:"completed_shifts" db:"completed_shifts"`
	Category        RosterCategory `json:"category" db:"category"`
	Note            string         `json:"note" db:"note"`
}

// SetRosterCategoryRequest updates a worker's category at the caller's care home
type SetRosterCategoryRequest struct {
	Category string `json:"category" validate:"required,oneof=priority standard blacklisted"`
	Note     string `json:"note" validate:"max=1000"`
}
