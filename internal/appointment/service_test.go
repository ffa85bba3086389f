package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	created   []*Appointment
	createErr error
	listed    []Appointment
	listErr   error
	listCalls int
}

func (f *fakeStore) Create(_ context.Context, appt *Appointment) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.created {
		if existing.InsuredID == appt.InsuredID && existing.AppointmentID == appt.AppointmentID {
			return ErrDuplicateAppointment
		}
	}
	f.created = append(f.created, appt)
	return nil
}

func (f *fakeStore) ListByInsured(_ context.Context, _ string, _ Status, _ int) ([]Appointment, error) {
	f.listCalls++
	return f.listed, f.listErr
}

func (f *fakeStore) UpdateTerminal(_ context.Context, _, _ string, _ TerminalUpdate) error {
	return nil
}

type fakePublisher struct {
	events []ScheduleRequested
	err    error
}

func (f *fakePublisher) PublishScheduleRequested(_ context.Context, ev ScheduleRequested) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeCache struct {
	data        map[string][]byte
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, insuredID string) ([]byte, bool) {
	raw, ok := f.data[insuredID]
	return raw, ok
}

func (f *fakeCache) Set(_ context.Context, insuredID string, payload []byte) {
	f.data[insuredID] = payload
}

func (f *fakeCache) Invalidate(_ context.Context, insuredID string) {
	delete(f.data, insuredID)
	f.invalidated = append(f.invalidated, insuredID)
}

func newTestService(store *fakeStore, pub *fakePublisher, cache *fakeCache) *Service {
	return NewService(store, pub, cache, zap.NewNop())
}

func TestSubmitCreatesPendingAndPublishes(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := newTestService(store, pub, newFakeCache())

	appt, err := svc.Submit(context.Background(), SubmitInput{
		InsuredID:  "12345",
		ScheduleID: 101,
		CountryISO: CountryPE,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(appt.AppointmentID, "APT-"))
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "12345", appt.InsuredID)
	assert.Equal(t, int64(101), appt.ScheduleID)
	assert.Equal(t, CountryPE, appt.CountryISO)
	assert.False(t, appt.CreatedAt.IsZero())

	require.Len(t, store.created, 1)
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, appt.AppointmentID, ev.AppointmentID)
	assert.Equal(t, "12345", ev.InsuredID)
	assert.Equal(t, int64(101), ev.ScheduleID)
	assert.Equal(t, CountryPE, ev.CountryISO)
	assert.Equal(t, EventScheduleRequested, ev.EventType)
}

func TestSubmitRejectsUnsupportedCountry(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := newTestService(store, pub, newFakeCache())

	_, err := svc.Submit(context.Background(), SubmitInput{
		InsuredID:  "12345",
		ScheduleID: 101,
		CountryISO: CountryISO("BR"),
	})
	require.ErrorIs(t, err, ErrUnsupportedCountry)
	assert.Empty(t, store.created)
	assert.Empty(t, pub.events)
}

func TestSubmitGeneratesUniqueIDs(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, &fakePublisher{}, newFakeCache())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		appt, err := svc.Submit(context.Background(), SubmitInput{
			InsuredID:  "12345",
			ScheduleID: 101,
			CountryISO: CountryCL,
		})
		require.NoError(t, err)
		assert.False(t, seen[appt.AppointmentID])
		seen[appt.AppointmentID] = true
	}
}

func TestSubmitSurfacesDuplicate(t *testing.T) {
	store := &fakeStore{createErr: ErrDuplicateAppointment}
	svc := newTestService(store, &fakePublisher{}, newFakeCache())

	_, err := svc.Submit(context.Background(), SubmitInput{
		InsuredID:  "12345",
		ScheduleID: 101,
		CountryISO: CountryPE,
	})
	require.ErrorIs(t, err, ErrDuplicateAppointment)
}

func TestSubmitPublishFailureStillReturnsPending(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(store, pub, newFakeCache())

	appt, err := svc.Submit(context.Background(), SubmitInput{
		InsuredID:  "12345",
		ScheduleID: 101,
		CountryISO: CountryPE,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	require.Len(t, store.created, 1)
}

func TestSubmitInvalidatesCache(t *testing.T) {
	cache := newFakeCache()
	cache.data["12345"] = []byte("[]")
	svc := newTestService(&fakeStore{}, &fakePublisher{}, cache)

	_, err := svc.Submit(context.Background(), SubmitInput{
		InsuredID:  "12345",
		ScheduleID: 101,
		CountryISO: CountryPE,
	})
	require.NoError(t, err)
	assert.Contains(t, cache.invalidated, "12345")
}

func TestListByInsuredServesFromCache(t *testing.T) {
	cached := []Appointment{{AppointmentID: "APT-1", InsuredID: "12345", Status: StatusCompleted}}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)

	cache := newFakeCache()
	cache.data["12345"] = raw
	store := &fakeStore{}
	svc := newTestService(store, &fakePublisher{}, cache)

	got, err := svc.ListByInsured(context.Background(), "12345", "", 0)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.Zero(t, store.listCalls)
}

func TestListByInsuredFillsCacheOnMiss(t *testing.T) {
	store := &fakeStore{listed: []Appointment{{AppointmentID: "APT-2", InsuredID: "12345"}}}
	cache := newFakeCache()
	svc := newTestService(store, &fakePublisher{}, cache)

	got, err := svc.ListByInsured(context.Background(), "12345", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, store.listCalls)
	_, ok := cache.data["12345"]
	assert.True(t, ok)
}

func TestListByInsuredFilteredBypassesCache(t *testing.T) {
	store := &fakeStore{listed: []Appointment{}}
	cache := newFakeCache()
	cache.data["12345"] = []byte(`[{"appointmentId":"stale"}]`)
	svc := newTestService(store, &fakePublisher{}, cache)

	_, err := svc.ListByInsured(context.Background(), "12345", StatusFailed, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
}
