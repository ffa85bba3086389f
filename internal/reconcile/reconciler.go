package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medbook/appointment-pipeline/internal/appointment"
	"github.com/medbook/appointment-pipeline/internal/messaging"
	redisclient "github.com/medbook/appointment-pipeline/internal/redis"
)

// outcomeEvent is the wire shape of a completion/failure event. Two
// timestamp field names are accepted because producers disagree.
type outcomeEvent struct {
	AppointmentID string     `json:"appointmentId"`
	InsuredID     string     `json:"insuredId"`
	ScheduleID    int64      `json:"scheduleId"`
	CountryISO    string     `json:"countryISO"`
	Status        string     `json:"status"`
	ProcessedAt   *time.Time `json:"processedAt"`
	CompletedAt   *time.Time `json:"completedAt"`
	Error         string     `json:"error"`
}

// Reconciler applies processing outcomes to the appointment store.
type Reconciler struct {
	store appointment.Store
	cache redisclient.AppointmentCache
	log   *zap.Logger
}

func New(store appointment.Store, cache redisclient.AppointmentCache, log *zap.Logger) *Reconciler {
	return &Reconciler{
		store: store,
		cache: cache,
		log:   log,
	}
}

// Handle processes one outcome delivery. The update is a pure overwrite
// of the terminal fields, so replaying the same event is a no-op.
func (r *Reconciler) Handle(ctx context.Context, body []byte) error {
	payload, detailType, err := messaging.Unwrap(body)
	if err != nil {
		return fmt.Errorf("%w: unwrap envelope: %v", messaging.ErrUnretryable, err)
	}

	var ev outcomeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %w: decode outcome: %v",
			messaging.ErrUnretryable, appointment.ErrMalformedEvent, err)
	}

	status, known := normalizeKind(ev.Status, detailType)
	if !known {
		// Unknown kinds are deliberately tolerated for forward
		// compatibility with newer producers.
		r.log.Warn("unknown outcome event kind",
			zap.String("status", ev.Status),
			zap.String("detailType", detailType),
			zap.String("appointmentId", ev.AppointmentID))
		return nil
	}

	if ev.AppointmentID == "" || ev.InsuredID == "" {
		return fmt.Errorf("%w: %w: missing insuredId/appointmentId",
			messaging.ErrUnretryable, appointment.ErrMalformedEvent)
	}

	upd := terminalUpdate(status, ev)

	err = r.store.UpdateTerminal(ctx, ev.InsuredID, ev.AppointmentID, upd)
	switch {
	case err == nil:
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		r.log.Warn("outcome for unknown appointment dropped",
			zap.String("appointmentId", ev.AppointmentID),
			zap.String("insuredId", ev.InsuredID))
		return fmt.Errorf("%w: %v", messaging.ErrUnretryable, err)
	case errors.Is(err, appointment.ErrStaleTransition):
		// A conflicting terminal state already landed; the first writer
		// wins and this event is stale.
		r.log.Warn("stale outcome dropped",
			zap.String("appointmentId", ev.AppointmentID),
			zap.String("status", string(upd.Status)))
		return nil
	default:
		return fmt.Errorf("apply outcome: %w", err)
	}

	r.cache.Invalidate(ctx, ev.InsuredID)

	r.log.Info("appointment reconciled",
		zap.String("appointmentId", ev.AppointmentID),
		zap.String("insuredId", ev.InsuredID),
		zap.String("status", string(upd.Status)))
	return nil
}

// normalizeKind maps both status vocabularies onto the canonical one:
// bare status strings from the workers and detail-type labels from
// bus-style producers.
func normalizeKind(status, detailType string) (appointment.Status, bool) {
	switch status {
	case appointment.OutcomeCompleted:
		return appointment.StatusCompleted, true
	case appointment.OutcomeFailed:
		return appointment.StatusFailed, true
	}
	switch detailType {
	case "Appointment Completed":
		return appointment.StatusCompleted, true
	case "Appointment Failed":
		return appointment.StatusFailed, true
	}
	return "", false
}

func terminalUpdate(status appointment.Status, ev outcomeEvent) appointment.TerminalUpdate {
	processedAt := ev.ProcessedAt
	if processedAt == nil {
		processedAt = ev.CompletedAt
	}
	if processedAt == nil {
		now := time.Now().UTC()
		processedAt = &now
	}

	upd := appointment.TerminalUpdate{
		Status:    status,
		UpdatedAt: *processedAt,
	}

	switch status {
	case appointment.StatusCompleted:
		upd.ProcessedAt = processedAt
	case appointment.StatusFailed:
		upd.ErrorDetails = ev.Error
		if upd.ErrorDetails == "" {
			upd.ErrorDetails = "processing failed"
		}
	}
	return upd
}
