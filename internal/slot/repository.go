package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the slot store contract. The engine is its only writer.
type Repository interface {
	// ListByRange returns the business's slots with slot_date in [from, to]
	// inclusive, ordered by date, start time.
	ListByRange(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]Slot, error)

	// ListBeyond returns slots dated strictly after the given date. Used to
	// find rows left outside a shrunken horizon.
	ListBeyond(ctx context.Context, businessID uuid.UUID, after time.Time) ([]Slot, error)

	// UpsertFree inserts the given slots, leaving any existing row at the
	// same (business, resource, date, start) key untouched. It never
	// downgrades a reserved, occupied or blocked row. Returns the number of
	// rows actually inserted.
	UpsertFree(ctx context.Context, slots []Slot) (int, error)

	// DeleteByIDs removes the given slot rows. Callers are responsible for
	// passing only unprotected ids and for bounding the batch size.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error)
}
