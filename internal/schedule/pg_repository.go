package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (r *PgStore) IsAvailable(ctx context.Context, scheduleID int64) (bool, error) {
	var available bool
	err := r.pool.QueryRow(ctx, `
		SELECT is_available
		FROM medical_schedules
		WHERE id = $1
	`, scheduleID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query schedule availability: %w", err)
	}
	if !available {
		return false, nil
	}

	var bookings int64
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM schedule_bookings
		WHERE schedule_id = $1
	`, scheduleID).Scan(&bookings)
	if err != nil {
		return false, fmt.Errorf("count schedule bookings: %w", err)
	}

	return bookings == 0, nil
}

func (r *PgStore) GetDetails(ctx context.Context, scheduleID int64) (*Details, error) {
	var d Details
	err := r.pool.QueryRow(ctx, `
		SELECT
			ms.id,
			ms.appointment_date,
			mc.id,
			mc.name,
			mc.address,
			sp.id,
			sp.name,
			dr.id,
			dr.first_name,
			dr.last_name
		FROM medical_schedules ms
		JOIN medical_centers mc ON ms.center_id = mc.id
		JOIN specialities sp ON ms.speciality_id = sp.id
		JOIN doctors dr ON ms.medic_id = dr.id
		WHERE ms.id = $1
	`, scheduleID).Scan(
		&d.ScheduleID,
		&d.Date,
		&d.CenterID,
		&d.CenterName,
		&d.CenterAddress,
		&d.SpecialityID,
		&d.SpecialityName,
		&d.MedicID,
		&d.MedicFirstName,
		&d.MedicLastName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleDetailsNotFound
		}
		return nil, fmt.Errorf("query schedule details: %w", err)
	}

	return &d, nil
}

// Reserve is the single consistency-critical operation: the conditional
// UPDATE re-validates availability inside the transaction, and the
// UNIQUE(schedule_id) constraint on schedule_bookings backstops it under
// concurrent workers racing on the same slot.
func (r *PgStore) Reserve(ctx context.Context, scheduleID int64, processed ProcessedAppointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrBookingFailed, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE medical_schedules
		SET is_available = false,
		    updated_at = now()
		WHERE id = $1
		  AND is_available = true
	`, scheduleID)
	if err != nil {
		return fmt.Errorf("%w: flip availability: %v", ErrBookingFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleUnavailable
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO schedule_bookings (schedule_id, appointment_id, country_iso, booked_at)
		VALUES ($1, $2, $3, now())
	`, scheduleID, processed.AppointmentID, processed.CountryISO)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrScheduleUnavailable
		}
		return fmt.Errorf("%w: insert booking: %v", ErrBookingFailed, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO processed_appointments (
			appointment_id, insured_id, schedule_id, country_iso,
			center_id, speciality_id, medic_id, appointment_date,
			status, created_at, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		processed.AppointmentID,
		processed.InsuredID,
		processed.ScheduleID,
		processed.CountryISO,
		processed.CenterID,
		processed.SpecialityID,
		processed.MedicID,
		processed.Date,
		processed.Status,
		processed.CreatedAt,
		processed.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert processed appointment: %v", ErrBookingFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrBookingFailed, err)
	}

	return nil
}
