package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Business struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resource is a schedulable unit of capacity: a room, a chair, an employee.
type Resource struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeBlock is one open/close pair within a day, "HH:MM" 24h.
type TimeBlock struct {
	Open  string
	Close string
}

// OnDate anchors the block to a concrete date.
func (b TimeBlock) OnDate(date time.Time) (start, end time.Time, err error) {
	start, err = ParseTimeOnDate(date, b.Open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse open time: %w", err)
	}
	end, err = ParseTimeOnDate(date, b.Close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse close time: %w", err)
	}
	return start, end, nil
}

// WeekSchedule maps each weekday to its open blocks. A weekday with no
// blocks is closed. Split shifts are multiple disjoint blocks.
type WeekSchedule map[time.Weekday][]TimeBlock

// IsOpen reports whether the weekday has at least one open block.
func (w WeekSchedule) IsOpen(day time.Weekday) bool {
	return len(w[day]) > 0
}

// Validate checks every block: open < close, blocks per day disjoint.
func (w WeekSchedule) Validate() error {
	for day, blocks := range w {
		sorted := make([]TimeBlock, len(blocks))
		copy(sorted, blocks)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Open < sorted[j].Open })

		for i, b := range sorted {
			if _, err := parseClock(b.Open); err != nil {
				return fmt.Errorf("%s block %d: %w", day, i, err)
			}
			if _, err := parseClock(b.Close); err != nil {
				return fmt.Errorf("%s block %d: %w", day, i, err)
			}
			if b.Open >= b.Close {
				return fmt.Errorf("%s block %d: open %s must be before close %s", day, i, b.Open, b.Close)
			}
			if i > 0 && sorted[i-1].Close > b.Open {
				return fmt.Errorf("%s: blocks %s-%s and %s-%s overlap", day, sorted[i-1].Open, sorted[i-1].Close, b.Open, b.Close)
			}
		}
	}
	return nil
}

// CalendarException overrides the weekly schedule for one specific date.
// Open with no blocks means "open with the weekly hours for that weekday";
// open with blocks replaces them; closed yields no slots for the date.
type CalendarException struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Date       time.Time
	Open       bool
	Blocks     []TimeBlock
	Reason     string
	CreatedAt  time.Time
}

// BookingPolicy controls the slot grid and the generation horizon.
type BookingPolicy struct {
	BusinessID          uuid.UUID
	SlotDurationMinutes int
	AdvanceBookingDays  int
	MinAdvanceMinutes   int
	UpdatedAt           time.Time
}

// ParseTimeOnDate places an "HH:MM" clock value on the given date, in the
// date's location.
func ParseTimeOnDate(date time.Time, clock string) (time.Time, error) {
	mins, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), mins/60, mins%60, 0, 0, date.Location()), nil
}

func parseClock(clock string) (minutes int, err error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour: %s", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute: %s", clock)
	}
	return hour*60 + minute, nil
}
