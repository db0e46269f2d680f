package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/slotgrid/availability-engine/internal/reservation"
	"github.com/slotgrid/availability-engine/internal/schedule"
)

// Conflict is one concrete date that would orphan active reservations if
// the candidate schedule took effect. A closed weekday spans many concrete
// dates in the horizon; each gets its own entry.
type Conflict struct {
	Date         time.Time
	Weekday      time.Weekday
	Reservations []reservation.Reservation
}

// Detector is the pre-flight gate in front of the orchestrator. It reads
// the ledger and mutates nothing.
type Detector struct {
	ledger reservation.Repository
}

func NewDetector(ledger reservation.Repository) *Detector {
	return &Detector{ledger: ledger}
}

// Detect walks [from, to] and reports every date whose weekday is closed
// under the candidate schedule but still carries active reservations. Dates
// with an open calendar exception are skipped: forcing a date open is
// exactly how a caller resolves a conflict without reopening the weekday.
func (d *Detector) Detect(
	ctx context.Context,
	businessID uuid.UUID,
	candidate schedule.WeekSchedule,
	exceptions []schedule.CalendarException,
	from, to time.Time,
) ([]Conflict, error) {
	reservations, err := d.ledger.ListActiveInRange(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}
	if len(reservations) == 0 {
		return nil, nil
	}

	openException := make(map[string]bool, len(exceptions))
	for _, ex := range exceptions {
		if ex.Open {
			openException[DateOnly(ex.Date).Format("2006-01-02")] = true
		}
	}

	byDate := make(map[string][]reservation.Reservation)
	for _, rv := range reservations {
		day := DateOnly(rv.Date)
		key := day.Format("2006-01-02")

		if candidate.IsOpen(day.Weekday()) || openException[key] {
			continue
		}
		byDate[key] = append(byDate[key], rv)
	}

	conflicts := make([]Conflict, 0, len(byDate))
	for key, group := range byDate {
		date, _ := time.ParseInLocation("2006-01-02", key, from.Location())
		conflicts = append(conflicts, Conflict{
			Date:         date,
			Weekday:      date.Weekday(),
			Reservations: group,
		})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Date.Before(conflicts[j].Date)
	})

	return conflicts, nil
}
