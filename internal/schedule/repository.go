package schedule

import (
	"context"
	"errors"
)

var (
	ErrScheduleUnavailable     = errors.New("schedule slot is not available")
	ErrScheduleDetailsNotFound = errors.New("schedule details not found")
	ErrBookingFailed           = errors.New("schedule booking failed")
)

// Store is one country's schedule store.
type Store interface {
	// IsAvailable reports whether the slot exists, is flagged available
	// and has no booking row. Either signal marks the slot as taken.
	IsAvailable(ctx context.Context, scheduleID int64) (bool, error)

	// GetDetails resolves slot, center, speciality and doctor. A missing
	// join target fails with ErrScheduleDetailsNotFound.
	GetDetails(ctx context.Context, scheduleID int64) (*Details, error)

	// Reserve atomically flips the availability flag, inserts the booking
	// row and records the processed snapshot. All writes commit together
	// or none do. A slot already taken fails with ErrScheduleUnavailable;
	// anything else with ErrBookingFailed.
	Reserve(ctx context.Context, scheduleID int64, processed ProcessedAppointment) error
}
