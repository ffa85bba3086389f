package appointment

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedCountry   = errors.New("countryISO is not supported")
	ErrDuplicateAppointment = errors.New("appointment already exists")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrStaleTransition      = errors.New("appointment already in a conflicting terminal state")
	ErrMalformedEvent       = errors.New("malformed lifecycle event")
)

// Store is the authoritative appointment record keyed by
// (insuredId, appointmentId).
type Store interface {
	// Create fails with ErrDuplicateAppointment if the key already exists.
	Create(ctx context.Context, appt *Appointment) error

	// ListByInsured returns appointments newest first. An empty status
	// matches all; limit is capped by the implementation.
	ListByInsured(ctx context.Context, insuredID string, status Status, limit int) ([]Appointment, error)

	// UpdateTerminal overwrites the terminal fields. Applying the same
	// update twice leaves the record unchanged; a conflicting backward
	// transition fails with ErrStaleTransition.
	UpdateTerminal(ctx context.Context, insuredID, appointmentID string, upd TerminalUpdate) error
}
