package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotgrid/availability-engine/internal/reservation"
	"github.com/slotgrid/availability-engine/internal/schedule"
)

func TestDetectOneConflictPerConcreteDate(t *testing.T) {
	businessID := uuid.New()

	firstSunday := monday.AddDate(0, 0, 6)
	secondSunday := monday.AddDate(0, 0, 13)

	ledger := &memLedger{reservations: []reservation.Reservation{
		{ID: uuid.New(), BusinessID: businessID, Date: firstSunday, Status: reservation.StatusConfirmed},
		{ID: uuid.New(), BusinessID: businessID, Date: secondSunday, Status: reservation.StatusConfirmed},
		{ID: uuid.New(), BusinessID: businessID, Date: secondSunday, Status: reservation.StatusPending},
	}}

	// Sunday has no blocks in the candidate schedule.
	candidate := weekdaysNineToFive()

	conflicts, err := NewDetector(ledger).Detect(context.Background(), businessID, candidate, nil, monday, monday.AddDate(0, 0, 29))
	require.NoError(t, err)
	require.Len(t, conflicts, 2, "one conflict per concrete date, not per weekday label")

	assert.Equal(t, firstSunday, conflicts[0].Date)
	assert.Equal(t, time.Sunday, conflicts[0].Weekday)
	assert.Len(t, conflicts[0].Reservations, 1)

	assert.Equal(t, secondSunday, conflicts[1].Date)
	assert.Len(t, conflicts[1].Reservations, 2)
}

func TestDetectIgnoresOpenWeekdays(t *testing.T) {
	businessID := uuid.New()

	ledger := &memLedger{reservations: []reservation.Reservation{
		{ID: uuid.New(), BusinessID: businessID, Date: monday, Status: reservation.StatusConfirmed},
	}}

	conflicts, err := NewDetector(ledger).Detect(context.Background(), businessID, weekdaysNineToFive(), nil, monday, monday.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectOpenExceptionResolvesConflict(t *testing.T) {
	businessID := uuid.New()
	sunday := monday.AddDate(0, 0, 6)

	ledger := &memLedger{reservations: []reservation.Reservation{
		{ID: uuid.New(), BusinessID: businessID, Date: sunday, Status: reservation.StatusConfirmed},
	}}

	exceptions := []schedule.CalendarException{{Date: sunday, Open: true, Reason: "kept open for existing booking"}}

	conflicts, err := NewDetector(ledger).Detect(context.Background(), businessID, weekdaysNineToFive(), exceptions, monday, monday.AddDate(0, 0, 13))
	require.NoError(t, err)
	assert.Empty(t, conflicts, "a date forced open is no longer a conflict")
}

func TestDetectInactiveReservationsIgnored(t *testing.T) {
	businessID := uuid.New()
	sunday := monday.AddDate(0, 0, 6)

	ledger := &memLedger{reservations: []reservation.Reservation{
		{ID: uuid.New(), BusinessID: businessID, Date: sunday, Status: reservation.StatusCancelled},
	}}

	conflicts, err := NewDetector(ledger).Detect(context.Background(), businessID, weekdaysNineToFive(), nil, monday, monday.AddDate(0, 0, 13))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}
