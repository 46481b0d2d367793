package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// IncidentStatus is where an incident report stands
type IncidentStatus string

const (
	IncidentStatusReported  IncidentStatus = "reported"
	IncidentStatusResolved  IncidentStatus = "resolved"
	IncidentStatusDismissed IncidentStatus = "dismissed"
)

// Incident is a care home's report of a worker's conduct on site
type Incident struct {
	ID              uuid.UUID      `json:"incident_id" db:"id"`
	CareHomeID      uuid.UUID      `json:"care_home_id" db:"care_home_id"`
	WorkerID        uuid.UUID      `json:"worker_id" db:"worker_id"`
	WorkerName      string         `json:"worker_name" db:"worker_name"`
	ReportedBy      string         `json:"reported_by" db:"reported_by"`
	Date            string         `json:"date" db:"incident_date"`
	Time            string         `json:"time" db:"incident_time"`
	Location        string         `json:"location" db:"location"`
	Type            string         `json:"type" db:"incident_type"`
	Severity        string         `json:"severity" db:"severity"`
	Status          IncidentStatus `json:"status" db:"status"`
	Description     string         `json:"description" db:"description"`
	Evidence        string         `json:"evidence" db:"evidence"`
	ImmediateAction string         `json:"immediate_action" db:"immediate_action"`
	FollowUpAction  string         `json:"follow_up_action" db:"follow_up_action"`
	WitnessIDs      pq.StringArray `json:"witness_ids" db:"witness_ids"`
	WitnessNames    pq.StringArray `json:"witness_names" db:"witness_names"`
	ClosedAt        NullTime       `json:"closed_at" db:"closed_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// IncidentBoard groups a care home's incidents by status
type IncidentBoard struct {
	Reported  []Incident `json:"reported"`
	Resolved  []Incident `json:"resolved"`
	Dismissed []Incident `json:"dismissed"`
}

// NewIncidentBoard buckets incidents by status, preserving order
func NewIncidentBoard(incidents []Incident) IncidentBoard {
	board := IncidentBoard{
		Reported:  []Incident{},
		Resolved:  []Incident{},
		Dismissed: []Incident{},
	}
	for _, i := range incidents {
		switch i.Status {
		case IncidentStatusReported:
			board.Reported = append(board.Reported, i)
		case IncidentStatusResolved:
			board.Resolved = append(board.Resolved, i)
		case IncidentStatusDismissed:
			board.Dismissed = append(board.Dismissed, i)
		}
	}
	return board
}

// ReportIncidentRequest is submitted by a care home against one worker.
// Blacklist also marks the worker blacklisted on the care home's roster.
type ReportIncidentRequest struct {
	WorkerID        uuid.UUID   `json:"worker_id" validate:"required"`
	Date            string      `json:"date" validate:"required,isodate"`
	Time            string      `json:"time" validate:"required,hhmm"`
	Location        string      `json:"location" validate:"required,max=200"`
	Type            string      `json:"type" validate:"required,oneof=misconduct negligence unprofessional_behavior abuse policy_violation"`
	Severity        string      `json:"severity" validate:"required,oneof=minor moderate serious severe"`
	Description     string      `json:"description" validate:"required,max=5000"`
	Evidence        string      `json:"evidence" validate:"max=5000"`
	ImmediateAction string      `json:"immediate_action" validate:"max=2000"`
	WitnessIDs      []uuid.UUID `json:"witness_ids" validate:"max=20,dive,required"`
	Blacklist       bool        `json:"blacklist"`
}

// CloseIncidentRequest resolves or dismisses a reported incident
type CloseIncidentRequest struct {
	Status         string `json:"status" validate:"required,oneof=resolved dismissed"`
	FollowUpAction string `json:"follow_up_action" validate:"max=2000"`
}

// FollowUpRequest replaces an incident's follow-up action
type FollowUpRequest struct {
	FollowUpAction string `json:"follow_up_action" validate:"required,max=2000"`
}
