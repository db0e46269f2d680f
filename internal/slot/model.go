package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusFree     Status = "free"
	StatusReserved Status = "reserved"
	StatusOccupied Status = "occupied"
	StatusBlocked  Status = "blocked"
)

// Slot is one bookable unit: one resource, one date, one start time.
// A slot with a non-nil ReservationRef is owned by the ledger; the engine
// must never delete it or reset it to free.
type Slot struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	ResourceID      *uuid.UUID
	SlotDate        time.Time
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	Status          Status
	ReservationRef  *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key is the slot's natural identity within a business.
func (s Slot) Key() string {
	res := ""
	if s.ResourceID != nil {
		res = s.ResourceID.String()
	}
	return fmt.Sprintf("%s|%s|%s", s.SlotDate.Format("2006-01-02"), res, s.StartTime.Format("15:04"))
}

// Referenced reports whether a reservation holds this slot.
func (s Slot) Referenced() bool {
	return s.ReservationRef != nil
}
