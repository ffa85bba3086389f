package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusCompleted, false},
		{StatusCancelled, StatusPending, false},
		// same-status reapplication stays allowed for idempotent replays
		{StatusCompleted, StatusCompleted, true},
		{StatusFailed, StatusFailed, true},
	}

	for _, tc := range cases {
		got := tc.from.CanTransition(tc.to)
		assert.Equalf(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestCountryISOValid(t *testing.T) {
	assert.True(t, CountryPE.Valid())
	assert.True(t, CountryCL.Valid())
	assert.False(t, CountryISO("BR").Valid())
	assert.False(t, CountryISO("").Valid())
}
