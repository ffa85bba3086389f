package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medbook/appointment-pipeline/internal/appointment"
	"github.com/medbook/appointment-pipeline/internal/messaging"
)

// fakeStore mirrors the Mongo store's status-guard semantics in memory.
type fakeStore struct {
	recs    map[string]*appointment.Appointment
	updates int
}

func newFakeStore(recs ...*appointment.Appointment) *fakeStore {
	s := &fakeStore{recs: make(map[string]*appointment.Appointment)}
	for _, r := range recs {
		s.recs[r.InsuredID+"#"+r.AppointmentID] = r
	}
	return s
}

func (f *fakeStore) Create(_ context.Context, appt *appointment.Appointment) error {
	key := appt.InsuredID + "#" + appt.AppointmentID
	if _, ok := f.recs[key]; ok {
		return appointment.ErrDuplicateAppointment
	}
	f.recs[key] = appt
	return nil
}

func (f *fakeStore) ListByInsured(_ context.Context, _ string, _ appointment.Status, _ int) ([]appointment.Appointment, error) {
	return nil, nil
}

func (f *fakeStore) UpdateTerminal(_ context.Context, insuredID, appointmentID string, upd appointment.TerminalUpdate) error {
	rec, ok := f.recs[insuredID+"#"+appointmentID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if !rec.Status.CanTransition(upd.Status) {
		return appointment.ErrStaleTransition
	}
	f.updates++
	rec.Status = upd.Status
	rec.UpdatedAt = upd.UpdatedAt
	if upd.ProcessedAt != nil {
		rec.ProcessedAt = upd.ProcessedAt
	}
	if upd.ErrorDetails != "" {
		rec.ErrorDetails = upd.ErrorDetails
	}
	return nil
}

type nopCache struct{ invalidated []string }

func (n *nopCache) Get(_ context.Context, _ string) ([]byte, bool) { return nil, false }
func (n *nopCache) Set(_ context.Context, _ string, _ []byte)      {}
func (n *nopCache) Invalidate(_ context.Context, insuredID string) {
	n.invalidated = append(n.invalidated, insuredID)
}

func pendingAppointment() *appointment.Appointment {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return &appointment.Appointment{
		AppointmentID: "APT-1",
		InsuredID:     "12345",
		ScheduleID:    101,
		CountryISO:    appointment.CountryPE,
		Status:        appointment.StatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func completedBody(t *testing.T, processedAt time.Time) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"appointmentId": "APT-1",
		"insuredId":     "12345",
		"scheduleId":    101,
		"countryISO":    "PE",
		"status":        "completed",
		"processedAt":   processedAt,
	})
	require.NoError(t, err)
	return body
}

func TestHandleCompleted(t *testing.T) {
	rec := pendingAppointment()
	store := newFakeStore(rec)
	cache := &nopCache{}
	r := New(store, cache, zap.NewNop())

	processedAt := time.Date(2026, 8, 30, 12, 5, 0, 0, time.UTC)
	require.NoError(t, r.Handle(context.Background(), completedBody(t, processedAt)))

	assert.Equal(t, appointment.StatusCompleted, rec.Status)
	require.NotNil(t, rec.ProcessedAt)
	assert.True(t, rec.ProcessedAt.Equal(processedAt))
	assert.True(t, rec.UpdatedAt.Equal(processedAt))
	assert.Contains(t, cache.invalidated, "12345")
}

func TestHandleCompletedIdempotent(t *testing.T) {
	rec := pendingAppointment()
	store := newFakeStore(rec)
	r := New(store, &nopCache{}, zap.NewNop())

	processedAt := time.Date(2026, 8, 30, 12, 5, 0, 0, time.UTC)
	body := completedBody(t, processedAt)

	require.NoError(t, r.Handle(context.Background(), body))
	first := *rec

	require.NoError(t, r.Handle(context.Background(), body))
	second := *rec

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
	assert.True(t, first.ProcessedAt.Equal(*second.ProcessedAt))
}

func TestHandleFailedSetsErrorDetails(t *testing.T) {
	rec := pendingAppointment()
	store := newFakeStore(rec)
	r := New(store, &nopCache{}, zap.NewNop())

	body, err := json.Marshal(map[string]any{
		"appointmentId": "APT-1",
		"insuredId":     "12345",
		"countryISO":    "PE",
		"status":        "failed",
		"error":         "schedule slot is not available",
	})
	require.NoError(t, err)

	require.NoError(t, r.Handle(context.Background(), body))
	assert.Equal(t, appointment.StatusFailed, rec.Status)
	assert.Equal(t, "schedule slot is not available", rec.ErrorDetails)
	assert.Nil(t, rec.ProcessedAt)
}

func TestHandleDetailTypeEnvelope(t *testing.T) {
	rec := pendingAppointment()
	store := newFakeStore(rec)
	r := New(store, &nopCache{}, zap.NewNop())

	body := []byte(`{
		"detail-type": "Appointment Completed",
		"detail": {"appointmentId": "APT-1", "insuredId": "12345", "countryISO": "PE"}
	}`)

	require.NoError(t, r.Handle(context.Background(), body))
	assert.Equal(t, appointment.StatusCompleted, rec.Status)
}

func TestHandleMalformedEventSkipsUpdate(t *testing.T) {
	store := newFakeStore(pendingAppointment())
	r := New(store, &nopCache{}, zap.NewNop())

	body := []byte(`{"insuredId": "12345", "status": "completed"}`)

	err := r.Handle(context.Background(), body)
	require.ErrorIs(t, err, messaging.ErrUnretryable)
	require.ErrorIs(t, err, appointment.ErrMalformedEvent)
	assert.Zero(t, store.updates)
}

func TestHandleUnknownKindIsNoOp(t *testing.T) {
	store := newFakeStore(pendingAppointment())
	r := New(store, &nopCache{}, zap.NewNop())

	body := []byte(`{"appointmentId": "APT-1", "insuredId": "12345", "status": "rescheduled"}`)

	require.NoError(t, r.Handle(context.Background(), body))
	assert.Zero(t, store.updates)
}

func TestHandleStaleOutcomeDropped(t *testing.T) {
	rec := pendingAppointment()
	rec.Status = appointment.StatusCompleted
	store := newFakeStore(rec)
	r := New(store, &nopCache{}, zap.NewNop())

	body, err := json.Marshal(map[string]any{
		"appointmentId": "APT-1",
		"insuredId":     "12345",
		"status":        "failed",
		"error":         "late failure",
	})
	require.NoError(t, err)

	require.NoError(t, r.Handle(context.Background(), body))
	assert.Equal(t, appointment.StatusCompleted, rec.Status)
	assert.Empty(t, rec.ErrorDetails)
}

func TestHandleUnknownAppointmentDropped(t *testing.T) {
	store := newFakeStore()
	r := New(store, &nopCache{}, zap.NewNop())

	err := r.Handle(context.Background(), completedBody(t, time.Now().UTC()))
	require.ErrorIs(t, err, messaging.ErrUnretryable)
}

func TestHandleGarbageBody(t *testing.T) {
	store := newFakeStore()
	r := New(store, &nopCache{}, zap.NewNop())

	err := r.Handle(context.Background(), []byte("not json"))
	require.ErrorIs(t, err, messaging.ErrUnretryable)
}

func TestNormalizeKind(t *testing.T) {
	cases := []struct {
		status     string
		detailType string
		want       appointment.Status
		known      bool
	}{
		{"completed", "", appointment.StatusCompleted, true},
		{"failed", "", appointment.StatusFailed, true},
		{"", "Appointment Completed", appointment.StatusCompleted, true},
		{"", "Appointment Failed", appointment.StatusFailed, true},
		{"rescheduled", "", "", false},
		{"", "", "", false},
	}

	for i, tc := range cases {
		got, known := normalizeKind(tc.status, tc.detailType)
		assert.Equal(t, tc.known, known, fmt.Sprintf("case %d", i))
		assert.Equal(t, tc.want, got, fmt.Sprintf("case %d", i))
	}
}
