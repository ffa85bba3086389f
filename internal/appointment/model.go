package appointment

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
// Statuses only move forward; re-applying the same terminal status is
// permitted so that duplicate outcome events stay idempotent.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next.Terminal()
	case StatusProcessing:
		return next.Terminal()
	}
	return false
}

type CountryISO string

const (
	CountryPE CountryISO = "PE"
	CountryCL CountryISO = "CL"
)

func (c CountryISO) Valid() bool {
	return c == CountryPE || c == CountryCL
}

// ScheduleSnapshot is the slot the appointment points at. Provisional at
// submission, authoritative once the country worker has resolved it.
type ScheduleSnapshot struct {
	ScheduleID   int64     `bson:"scheduleId" json:"scheduleId"`
	CenterID     int64     `bson:"centerId" json:"centerId"`
	SpecialityID int64     `bson:"specialityId" json:"specialityId"`
	MedicID      int64     `bson:"medicId" json:"medicId"`
	Date         time.Time `bson:"date" json:"date"`
}

type Appointment struct {
	AppointmentID string            `bson:"appointmentId" json:"appointmentId"`
	InsuredID     string            `bson:"insuredId" json:"insuredId"`
	ScheduleID    int64             `bson:"scheduleId" json:"scheduleId"`
	CountryISO    CountryISO        `bson:"countryISO" json:"countryISO"`
	Status        Status            `bson:"status" json:"status"`
	Schedule      *ScheduleSnapshot `bson:"schedule,omitempty" json:"schedule,omitempty"`
	CreatedAt     time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time         `bson:"updatedAt" json:"updatedAt"`
	ProcessedAt   *time.Time        `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	ErrorDetails  string            `bson:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	ExpiresAt     time.Time         `bson:"expiresAt" json:"-"`
}

// TerminalUpdate is the idempotent overwrite applied by reconciliation.
// Timestamps come from the event, not the clock, so replays write
// identical fields.
type TerminalUpdate struct {
	Status       Status
	ProcessedAt  *time.Time
	ErrorDetails string
	UpdatedAt    time.Time
}
