package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/slotgrid/availability-engine/internal/schedule"
	"github.com/slotgrid/availability-engine/internal/slot"
)

// DateOnly truncates an instant to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// BuildDesiredSlots computes the full slot set that should exist for the
// business between from and to inclusive: one free slot per active resource
// per duration step of every open block. It is a pure function; writes
// belong to the orchestrator.
//
// A date is open if an exception marks it open (using the exception's own
// blocks when present, the weekly blocks otherwise), or no exception exists
// and the weekly schedule has blocks for its weekday. Slots starting before
// now + MinAdvanceMinutes are not emitted.
func BuildDesiredSlots(
	businessID uuid.UUID,
	resources []schedule.Resource,
	from, to time.Time,
	policy schedule.BookingPolicy,
	week schedule.WeekSchedule,
	exceptions []schedule.CalendarException,
	now time.Time,
) ([]slot.Slot, error) {
	if policy.SlotDurationMinutes <= 0 {
		return nil, &ConfigError{Missing: "slot_duration_minutes"}
	}
	if len(resources) == 0 {
		return nil, nil
	}

	duration := time.Duration(policy.SlotDurationMinutes) * time.Minute
	cutoff := now.Add(time.Duration(policy.MinAdvanceMinutes) * time.Minute)

	exceptionByDate := make(map[string]schedule.CalendarException, len(exceptions))
	for _, ex := range exceptions {
		exceptionByDate[DateOnly(ex.Date).Format("2006-01-02")] = ex
	}

	var result []slot.Slot

	for day := DateOnly(from); !day.After(DateOnly(to)); day = day.AddDate(0, 0, 1) {
		blocks := blocksForDate(day, week, exceptionByDate)

		for _, block := range blocks {
			start, end, err := block.OnDate(day)
			if err != nil {
				return nil, fmt.Errorf("operating window on %s: %w", day.Format("2006-01-02"), err)
			}

			for cursor := start; !cursor.Add(duration).After(end); cursor = cursor.Add(duration) {
				if cursor.Before(cutoff) {
					continue
				}

				for i := range resources {
					resourceID := resources[i].ID
					result = append(result, slot.Slot{
						BusinessID:      businessID,
						ResourceID:      &resourceID,
						SlotDate:        day,
						StartTime:       cursor,
						EndTime:         cursor.Add(duration),
						DurationMinutes: policy.SlotDurationMinutes,
						Status:          slot.StatusFree,
					})
				}
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return resourceKey(result[i].ResourceID) < resourceKey(result[j].ResourceID)
	})

	return result, nil
}

func blocksForDate(day time.Time, week schedule.WeekSchedule, exceptions map[string]schedule.CalendarException) []schedule.TimeBlock {
	if ex, ok := exceptions[day.Format("2006-01-02")]; ok {
		if !ex.Open {
			return nil
		}
		if len(ex.Blocks) > 0 {
			return ex.Blocks
		}
		// Forced open without an override keeps the weekly hours.
		return week[day.Weekday()]
	}
	return week[day.Weekday()]
}

func resourceKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
