package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotgrid/availability-engine/internal/reservation"
	"github.com/slotgrid/availability-engine/internal/schedule"
	"github.com/slotgrid/availability-engine/internal/slot"
)

// In-memory fakes for the three external stores and the business locker.

type memSchedules struct {
	resources  []schedule.Resource
	week       schedule.WeekSchedule
	exceptions []schedule.CalendarException
	policy     *schedule.BookingPolicy

	created []schedule.CalendarException
}

func (m *memSchedules) GetBusinessByID(_ context.Context, id uuid.UUID) (*schedule.Business, error) {
	return &schedule.Business{ID: id, Name: "test business"}, nil
}

func (m *memSchedules) ListBusinesses(context.Context) ([]schedule.Business, error) {
	return nil, nil
}

func (m *memSchedules) ListActiveResources(context.Context, uuid.UUID) ([]schedule.Resource, error) {
	return m.resources, nil
}

func (m *memSchedules) GetWeekSchedule(context.Context, uuid.UUID) (schedule.WeekSchedule, error) {
	return m.week, nil
}

func (m *memSchedules) ListExceptions(_ context.Context, _ uuid.UUID, from, to time.Time) ([]schedule.CalendarException, error) {
	var out []schedule.CalendarException
	for _, ex := range m.exceptions {
		if !ex.Date.Before(from) && !ex.Date.After(to) {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (m *memSchedules) GetBookingPolicy(context.Context, uuid.UUID) (*schedule.BookingPolicy, error) {
	if m.policy == nil {
		return nil, schedule.ErrPolicyNotFound
	}
	return m.policy, nil
}

func (m *memSchedules) CreateException(_ context.Context, ex schedule.CalendarException) error {
	m.created = append(m.created, ex)
	m.exceptions = append(m.exceptions, ex)
	return nil
}

type memLedger struct {
	reservations []reservation.Reservation
	err          error
}

func (m *memLedger) ListActiveInRange(_ context.Context, businessID uuid.UUID, from, to time.Time) ([]reservation.Reservation, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []reservation.Reservation
	for _, r := range m.reservations {
		if r.BusinessID != businessID || !r.Status.Active() {
			continue
		}
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var errStoreDown = errors.New("store down")

type memSlots struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]slot.Slot
	byKey map[string]uuid.UUID

	deleteBatches [][]uuid.UUID
	failDeleteAt  int // fail the nth delete call (1-based); 0 = never
	deleteCalls   int
}

func newMemSlots() *memSlots {
	return &memSlots{
		byID:  make(map[uuid.UUID]slot.Slot),
		byKey: make(map[string]uuid.UUID),
	}
}

func (m *memSlots) put(s slot.Slot) slot.Slot {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.byID[s.ID] = s
	m.byKey[s.Key()] = s.ID
	return s
}

func (m *memSlots) all() []slot.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]slot.Slot, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out
}

func (m *memSlots) ListByRange(_ context.Context, businessID uuid.UUID, from, to time.Time) ([]slot.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []slot.Slot
	for _, s := range m.byID {
		if s.BusinessID != businessID || s.SlotDate.Before(from) || s.SlotDate.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memSlots) ListBeyond(_ context.Context, businessID uuid.UUID, after time.Time) ([]slot.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []slot.Slot
	for _, s := range m.byID {
		if s.BusinessID != businessID || !s.SlotDate.After(after) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memSlots) UpsertFree(_ context.Context, slots []slot.Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, s := range slots {
		if _, taken := m.byKey[s.Key()]; taken {
			continue
		}
		m.put(s)
		inserted++
	}
	return inserted, nil
}

func (m *memSlots) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls++
	if m.failDeleteAt > 0 && m.deleteCalls >= m.failDeleteAt {
		return 0, errStoreDown
	}

	m.deleteBatches = append(m.deleteBatches, ids)
	deleted := 0
	for _, id := range ids {
		if s, ok := m.byID[id]; ok {
			delete(m.byKey, s.Key())
			delete(m.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

type noopLocker struct{}

func (noopLocker) WithBusinessLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type busyLocker struct{ err error }

func (l busyLocker) WithBusinessLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return l.err
}
