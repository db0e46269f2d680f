package reservation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Active reports whether the reservation still holds its slot. Cancelled,
// completed and no-show reservations do not count toward protection.
func (s Status) Active() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return false
	default:
		return true
	}
}

// Reservation is the ledger's view of a booking. The engine reads these to
// decide protection; it never writes them.
type Reservation struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Date       time.Time
	StartAt    time.Time
	ResourceID *uuid.UUID
	Status     Status
	CreatedAt  time.Time
}
