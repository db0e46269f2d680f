package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotgrid/availability-engine/internal/reservation"
	"github.com/slotgrid/availability-engine/internal/slot"
)

func freeSlot(businessID uuid.UUID, resourceID uuid.UUID, date time.Time, clock string) slot.Slot {
	start, _ := time.ParseInLocation("2006-01-02 15:04", date.Format("2006-01-02")+" "+clock, date.Location())
	return slot.Slot{
		ID:              uuid.New(),
		BusinessID:      businessID,
		ResourceID:      &resourceID,
		SlotDate:        date,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 60,
		Status:          slot.StatusFree,
	}
}

func TestResolveResourceScopedReservation(t *testing.T) {
	businessID := uuid.New()
	resourceA := uuid.New()
	resourceB := uuid.New()

	// One candidate on resource A, nine on resource B, all on the same date.
	candidates := []slot.Slot{freeSlot(businessID, resourceA, monday, "10:00")}
	for i := 0; i < 9; i++ {
		candidates = append(candidates, freeSlot(businessID, resourceB, monday, time.Date(0, 1, 1, 9+i, 0, 0, 0, time.UTC).Format("15:04")))
	}

	ledger := &memLedger{reservations: []reservation.Reservation{
		{ID: uuid.New(), BusinessID: businessID, Date: monday, ResourceID: &resourceA, Status: reservation.StatusConfirmed},
	}}

	res, err := NewResolver(ledger).Resolve(context.Background(), businessID, candidates)
	require.NoError(t, err)
	assert.Len(t, res.Protected, 1)
	assert.Len(t, res.Deletable, 9)
	assert.Equal(t, resourceA, *res.Protected[0].ResourceID)
}

func TestResolveWildcardProtectsWholeDay(t *testing.T) {
	businessID := uuid.New()
	resourceA := uuid.New()
	resourceB := uuid.New()

	candidates := []slot.Slot{
		freeSlot(businessID, resourceA, monday, "09:00"),
		freeSlot(businessID, resourceB, monday, "09:00"),
		freeSlot(businessID, resourceA, monday.AddDate(0, 0, 1), "09:00"),
	}

	// No resource assignment: the whole day is protected for every resource.
	ledger := &memLedger{reservations: []reservation.Reservation{
		{ID: uuid.New(), BusinessID: businessID, Date: monday, ResourceID: nil, Status: reservation.StatusPending},
	}}

	res, err := NewResolver(ledger).Resolve(context.Background(), businessID, candidates)
	require.NoError(t, err)
	assert.Len(t, res.Protected, 2)
	assert.Len(t, res.Deletable, 1)
	assert.True(t, res.Deletable[0].SlotDate.After(monday))
}

func TestResolveInactiveReservationsDoNotProtect(t *testing.T) {
	businessID := uuid.New()
	resourceA := uuid.New()

	candidates := []slot.Slot{freeSlot(businessID, resourceA, monday, "10:00")}

	ledger := &memLedger{reservations: []reservation.Reservation{
		{ID: uuid.New(), BusinessID: businessID, Date: monday, ResourceID: &resourceA, Status: reservation.StatusCancelled},
		{ID: uuid.New(), BusinessID: businessID, Date: monday, ResourceID: &resourceA, Status: reservation.StatusCompleted},
	}}

	res, err := NewResolver(ledger).Resolve(context.Background(), businessID, candidates)
	require.NoError(t, err)
	assert.Empty(t, res.Protected)
	assert.Len(t, res.Deletable, 1)
}

func TestResolveReferencedSlotAlwaysProtected(t *testing.T) {
	businessID := uuid.New()
	ref := uuid.New()

	s := freeSlot(businessID, uuid.New(), monday, "10:00")
	s.Status = slot.StatusReserved
	s.ReservationRef = &ref

	res, err := NewResolver(&memLedger{}).Resolve(context.Background(), businessID, []slot.Slot{s})
	require.NoError(t, err)
	assert.Len(t, res.Protected, 1)
	assert.Empty(t, res.Deletable)
}

func TestResolveFailsClosed(t *testing.T) {
	businessID := uuid.New()
	ledger := &memLedger{err: errors.New("ledger unavailable")}

	res, err := NewResolver(ledger).Resolve(context.Background(), businessID, []slot.Slot{freeSlot(businessID, uuid.New(), monday, "10:00")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtectionQuery))
	assert.Nil(t, res, "no partition may be returned when the ledger is unreadable")
}

func TestResolveEmptyCandidates(t *testing.T) {
	res, err := NewResolver(&memLedger{err: errors.New("must not be called")}).Resolve(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Protected)
	assert.Empty(t, res.Deletable)
}
