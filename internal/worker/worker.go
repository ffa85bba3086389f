package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medbook/appointment-pipeline/internal/appointment"
	"github.com/medbook/appointment-pipeline/internal/messaging"
	"github.com/medbook/appointment-pipeline/internal/schedule"
)

// ErrWrongCountry means an event for another country landed on this
// worker's queue. The worker refuses it before touching any store.
var ErrWrongCountry = errors.New("event routed to wrong country worker")

// OutcomeEmitter reports reservation results to the event channel.
type OutcomeEmitter interface {
	PublishOutcome(ctx context.Context, out appointment.ProcessingOutcome) error
}

// Worker runs the reservation protocol for one country: availability
// check, detail resolution, atomic booking, outcome emission.
type Worker struct {
	country appointment.CountryISO
	store   schedule.Store
	emitter OutcomeEmitter
	log     *zap.Logger
}

func New(country appointment.CountryISO, store schedule.Store, emitter OutcomeEmitter, log *zap.Logger) *Worker {
	return &Worker{
		country: country,
		store:   store,
		emitter: emitter,
		log:     log,
	}
}

// Handle processes one ScheduleRequested delivery.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	payload, _, err := messaging.Unwrap(body)
	if err != nil {
		return fmt.Errorf("%w: unwrap envelope: %v", messaging.ErrUnretryable, err)
	}

	var ev appointment.ScheduleRequested
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %w: decode schedule requested: %v",
			messaging.ErrUnretryable, appointment.ErrMalformedEvent, err)
	}

	if ev.AppointmentID == "" || ev.InsuredID == "" || ev.ScheduleID <= 0 {
		return fmt.Errorf("%w: %w: missing appointment identity",
			messaging.ErrUnretryable, appointment.ErrMalformedEvent)
	}

	if ev.CountryISO != w.country {
		// Refuse before any store access; the broker's redelivery and DLQ
		// take it from here.
		return fmt.Errorf("%w: got %q, serving %q", ErrWrongCountry, ev.CountryISO, w.country)
	}

	w.log.Info("processing schedule request",
		zap.String("appointmentId", ev.AppointmentID),
		zap.String("insuredId", ev.InsuredID),
		zap.Int64("scheduleId", ev.ScheduleID),
		zap.String("countryISO", string(ev.CountryISO)))

	processedAt, err := w.reserve(ctx, ev)
	if err != nil {
		if isReservationFailure(err) {
			w.emitFailed(ctx, ev, err)
		}
		// Re-raise either way so the channel's redelivery policy applies.
		return err
	}

	out := appointment.ProcessingOutcome{
		AppointmentID: ev.AppointmentID,
		InsuredID:     ev.InsuredID,
		ScheduleID:    ev.ScheduleID,
		CountryISO:    ev.CountryISO,
		Status:        appointment.OutcomeCompleted,
		ProcessedAt:   processedAt,
	}
	if err := w.emitter.PublishOutcome(ctx, out); err != nil {
		return fmt.Errorf("emit processing completed: %w", err)
	}

	w.log.Info("schedule request completed",
		zap.String("appointmentId", ev.AppointmentID),
		zap.Int64("scheduleId", ev.ScheduleID))
	return nil
}

// reserve runs steps 1-3 of the protocol. The returned timestamp is set
// only after the booking transaction has durably committed.
func (w *Worker) reserve(ctx context.Context, ev appointment.ScheduleRequested) (time.Time, error) {
	available, err := w.store.IsAvailable(ctx, ev.ScheduleID)
	if err != nil {
		return time.Time{}, fmt.Errorf("check availability: %w", err)
	}
	if !available {
		return time.Time{}, schedule.ErrScheduleUnavailable
	}

	details, err := w.store.GetDetails(ctx, ev.ScheduleID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleDetailsNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("resolve schedule details: %w", err)
	}

	now := time.Now().UTC()
	processed := schedule.ProcessedAppointment{
		AppointmentID: ev.AppointmentID,
		InsuredID:     ev.InsuredID,
		ScheduleID:    ev.ScheduleID,
		CountryISO:    string(ev.CountryISO),
		CenterID:      details.CenterID,
		SpecialityID:  details.SpecialityID,
		MedicID:       details.MedicID,
		Date:          details.Date,
		Status:        string(appointment.StatusProcessing),
		CreatedAt:     ev.CreatedAt,
		ProcessedAt:   now,
	}

	if err := w.store.Reserve(ctx, ev.ScheduleID, processed); err != nil {
		return time.Time{}, err
	}

	return now, nil
}

func (w *Worker) emitFailed(ctx context.Context, ev appointment.ScheduleRequested, cause error) {
	out := appointment.ProcessingOutcome{
		AppointmentID: ev.AppointmentID,
		InsuredID:     ev.InsuredID,
		ScheduleID:    ev.ScheduleID,
		CountryISO:    ev.CountryISO,
		Status:        appointment.OutcomeFailed,
		ProcessedAt:   time.Now().UTC(),
		Error:         cause.Error(),
	}
	// Failure-path emission errors are logged, not retried; the original
	// failure already drives redelivery.
	if err := w.emitter.PublishOutcome(ctx, out); err != nil {
		w.log.Error("emit processing failed event",
			zap.String("appointmentId", ev.AppointmentID),
			zap.Error(err))
	}
}

// isReservationFailure separates terminal reservation outcomes, which
// must close the appointment as failed, from transient store errors,
// which only warrant redelivery.
func isReservationFailure(err error) bool {
	return errors.Is(err, schedule.ErrScheduleUnavailable) ||
		errors.Is(err, schedule.ErrScheduleDetailsNotFound) ||
		errors.Is(err, schedule.ErrBookingFailed)
}
