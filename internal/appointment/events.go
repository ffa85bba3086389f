package appointment

import "time"

const (
	EventScheduleRequested = "APPOINTMENT_SCHEDULED"

	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// ScheduleRequested fans out a freshly created appointment to the
// country worker selected by CountryISO.
type ScheduleRequested struct {
	AppointmentID string            `json:"appointmentId"`
	InsuredID     string            `json:"insuredId"`
	ScheduleID    int64             `json:"scheduleId"`
	CountryISO    CountryISO        `json:"countryISO"`
	Schedule      *ScheduleSnapshot `json:"schedule,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	EventType     string            `json:"eventType"`
}

// ProcessingOutcome reports the result of a reservation attempt back to
// reconciliation. Status is OutcomeCompleted or OutcomeFailed; Error is
// set only on failure.
type ProcessingOutcome struct {
	AppointmentID string     `json:"appointmentId"`
	InsuredID     string     `json:"insuredId"`
	ScheduleID    int64      `json:"scheduleId"`
	CountryISO    CountryISO `json:"countryISO"`
	Status        string     `json:"status"`
	ProcessedAt   time.Time  `json:"processedAt"`
	Error         string     `json:"error,omitempty"`
}
