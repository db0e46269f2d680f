package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotgrid/availability-engine/internal/schedule"
)

// 2024-06-10 is a Monday.
var monday = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func weekdaysNineToFive() schedule.WeekSchedule {
	week := make(schedule.WeekSchedule)
	for day := time.Monday; day <= time.Friday; day++ {
		week[day] = []schedule.TimeBlock{{Open: "09:00", Close: "17:00"}}
	}
	return week
}

func oneResource() []schedule.Resource {
	return []schedule.Resource{{ID: uuid.New(), Active: true}}
}

func TestBuildDesiredSlots(t *testing.T) {
	businessID := uuid.New()
	policy := schedule.BookingPolicy{SlotDurationMinutes: 60, AdvanceBookingDays: 2}

	tests := []struct {
		name       string
		resources  []schedule.Resource
		from, to   time.Time
		policy     schedule.BookingPolicy
		week       schedule.WeekSchedule
		exceptions []schedule.CalendarException
		now        time.Time
		wantCount  int
	}{
		{
			name:      "two weekdays of hourly slots",
			resources: oneResource(),
			from:      monday,
			to:        monday.AddDate(0, 0, 1),
			policy:    policy,
			week:      weekdaysNineToFive(),
			now:       monday,
			wantCount: 16, // 09:00..16:00 on Monday and Tuesday
		},
		{
			name:      "closed weekend day yields nothing",
			resources: oneResource(),
			from:      monday.AddDate(0, 0, 5), // Saturday
			to:        monday.AddDate(0, 0, 6), // Sunday
			policy:    policy,
			week:      weekdaysNineToFive(),
			now:       monday,
			wantCount: 0,
		},
		{
			name:      "closed exception wins over weekly hours",
			resources: oneResource(),
			from:      monday,
			to:        monday,
			policy:    policy,
			week:      weekdaysNineToFive(),
			exceptions: []schedule.CalendarException{
				{Date: monday, Open: false, Reason: "public holiday"},
			},
			wantCount: 0,
			now:       monday,
		},
		{
			name:      "open exception with override blocks",
			resources: oneResource(),
			from:      monday.AddDate(0, 0, 6), // Sunday, weekly closed
			to:        monday.AddDate(0, 0, 6),
			policy:    policy,
			week:      weekdaysNineToFive(),
			exceptions: []schedule.CalendarException{
				{Date: monday.AddDate(0, 0, 6), Open: true, Blocks: []schedule.TimeBlock{{Open: "10:00", Close: "14:00"}}},
			},
			wantCount: 4,
			now:       monday,
		},
		{
			name:      "split shift",
			resources: oneResource(),
			from:      monday,
			to:        monday,
			policy:    schedule.BookingPolicy{SlotDurationMinutes: 30},
			week: schedule.WeekSchedule{
				time.Monday: {{Open: "09:00", Close: "12:00"}, {Open: "14:00", Close: "17:00"}},
			},
			now:       monday,
			wantCount: 12, // 6 morning + 6 afternoon half-hours
		},
		{
			name:      "min advance cuts todays early slots",
			resources: oneResource(),
			from:      monday,
			to:        monday,
			policy:    schedule.BookingPolicy{SlotDurationMinutes: 60, MinAdvanceMinutes: 120},
			week:      weekdaysNineToFive(),
			now:       monday.Add(10 * time.Hour), // 10:00, cutoff 12:00
			wantCount: 5,                          // 12:00..16:00
		},
		{
			name:      "two resources double the grid",
			resources: []schedule.Resource{{ID: uuid.New()}, {ID: uuid.New()}},
			from:      monday,
			to:        monday,
			policy:    policy,
			week:      weekdaysNineToFive(),
			now:       monday,
			wantCount: 16,
		},
		{
			name:      "no active resources yields nothing",
			resources: nil,
			from:      monday,
			to:        monday,
			policy:    policy,
			week:      weekdaysNineToFive(),
			now:       monday,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := BuildDesiredSlots(businessID, tt.resources, tt.from, tt.to, tt.policy, tt.week, tt.exceptions, tt.now)
			require.NoError(t, err)
			assert.Len(t, slots, tt.wantCount)

			for _, s := range slots {
				assert.Equal(t, businessID, s.BusinessID)
				assert.NotNil(t, s.ResourceID)
				assert.Equal(t, tt.policy.SlotDurationMinutes, s.DurationMinutes)
				assert.Equal(t, s.StartTime.Add(time.Duration(tt.policy.SlotDurationMinutes)*time.Minute), s.EndTime)
			}
		})
	}
}

func TestBuildDesiredSlotsMissingDuration(t *testing.T) {
	_, err := BuildDesiredSlots(uuid.New(), oneResource(), monday, monday, schedule.BookingPolicy{}, weekdaysNineToFive(), nil, monday)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "slot_duration_minutes", cfgErr.Missing)
}

func TestBuildDesiredSlotsOrdered(t *testing.T) {
	slots, err := BuildDesiredSlots(uuid.New(), oneResource(), monday, monday.AddDate(0, 0, 4), schedule.BookingPolicy{SlotDurationMinutes: 60}, weekdaysNineToFive(), nil, monday)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for i := 1; i < len(slots); i++ {
		assert.False(t, slots[i].StartTime.Before(slots[i-1].StartTime), "slots must be ordered by start time")
	}
}

func TestBuildDesiredSlotsOpenExceptionWithoutOverride(t *testing.T) {
	// Forcing a weekly-closed Sunday open without override blocks keeps the
	// weekly hours, which are empty for Sunday: zero slots, no error.
	sunday := monday.AddDate(0, 0, 6)
	slots, err := BuildDesiredSlots(uuid.New(), oneResource(), sunday, sunday, schedule.BookingPolicy{SlotDurationMinutes: 60}, weekdaysNineToFive(),
		[]schedule.CalendarException{{Date: sunday, Open: true}}, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
