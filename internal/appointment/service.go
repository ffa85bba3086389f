package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/medbook/appointment-pipeline/internal/redis"
)

// Publisher hands a ScheduleRequested event to the notification channel,
// routed by country.
type Publisher interface {
	PublishScheduleRequested(ctx context.Context, ev ScheduleRequested) error
}

type SubmitInput struct {
	InsuredID  string
	ScheduleID int64
	CountryISO CountryISO
	Schedule   *ScheduleSnapshot
}

type Service struct {
	store     Store
	publisher Publisher
	cache     redisclient.AppointmentCache
	log       *zap.Logger
}

func NewService(store Store, publisher Publisher, cache redisclient.AppointmentCache, log *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		cache:     cache,
		log:       log,
	}
}

// Submit records a pending appointment and fans it out to the country
// worker. It returns as soon as the record is durable; country-side
// processing is asynchronous.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Appointment, error) {
	if !in.CountryISO.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCountry, in.CountryISO)
	}

	now := time.Now().UTC()
	appt := &Appointment{
		AppointmentID: newAppointmentID(now),
		InsuredID:     in.InsuredID,
		ScheduleID:    in.ScheduleID,
		CountryISO:    in.CountryISO,
		Status:        StatusPending,
		Schedule:      in.Schedule,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.cache.Invalidate(ctx, appt.InsuredID)

	ev := ScheduleRequested{
		AppointmentID: appt.AppointmentID,
		InsuredID:     appt.InsuredID,
		ScheduleID:    appt.ScheduleID,
		CountryISO:    appt.CountryISO,
		Schedule:      appt.Schedule,
		CreatedAt:     appt.CreatedAt,
		EventType:     EventScheduleRequested,
	}
	if err := s.publisher.PublishScheduleRequested(ctx, ev); err != nil {
		// The record stays pending with no event delivered. Accepted gap:
		// there is no outbox, operational backfill handles stuck pendings.
		s.log.Error("schedule requested publish failed, appointment left pending",
			zap.String("appointmentId", appt.AppointmentID),
			zap.String("insuredId", appt.InsuredID),
			zap.Error(err))
	}

	return appt, nil
}

// ListByInsured reads the appointment history for one insured, newest
// first. The unfiltered default listing is served from the read cache
// when possible.
func (s *Service) ListByInsured(ctx context.Context, insuredID string, status Status, limit int) ([]Appointment, error) {
	cacheable := status == "" && limit <= 0

	if cacheable {
		if raw, ok := s.cache.Get(ctx, insuredID); ok {
			var cached []Appointment
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			s.cache.Invalidate(ctx, insuredID)
		}
	}

	appts, err := s.store.ListByInsured(ctx, insuredID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments by insured: %w", err)
	}

	if cacheable {
		if raw, err := json.Marshal(appts); err == nil {
			s.cache.Set(ctx, insuredID, raw)
		}
	}

	return appts, nil
}

// newAppointmentID yields ids like APT-1735689600000-<uuid>. The uuid
// carries the uniqueness guarantee under concurrent submission; the
// millisecond prefix keeps ids roughly sortable by creation time.
func newAppointmentID(now time.Time) string {
	return fmt.Sprintf("APT-%d-%s", now.UnixMilli(), uuid.NewString())
}
