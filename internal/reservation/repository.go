package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the read-only reservation ledger contract.
type Repository interface {
	// ListActiveInRange returns active reservations for the business whose
	// date falls within [from, to] inclusive.
	ListActiveInRange(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]Reservation, error)
}
