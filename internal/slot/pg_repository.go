package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var resourceID, reservationRef *uuid.UUID

	err := row.Scan(
		&s.ID,
		&s.BusinessID,
		&resourceID,
		&s.SlotDate,
		&s.StartTime,
		&s.EndTime,
		&s.DurationMinutes,
		&s.Status,
		&reservationRef,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ResourceID = resourceID
	s.ReservationRef = reservationRef
	return &s, nil
}

const slotColumns = `id, business_id, resource_id, slot_date, start_time, end_time, duration_minutes, status, reservation_ref, created_at, updated_at`

func (r *PgRepository) ListByRange(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE business_id = $1 AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, start_time
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgRepository) ListBeyond(ctx context.Context, businessID uuid.UUID, after time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE business_id = $1 AND slot_date > $2
		ORDER BY slot_date, start_time
	`, businessID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// UpsertFree relies on the natural-key unique index; an existing row at the
// same key wins regardless of its status, which is what keeps reserved and
// blocked rows intact across regenerations.
func (r *PgRepository) UpsertFree(ctx context.Context, slots []Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, s := range slots {
		id := s.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO slots (id, business_id, resource_id, slot_date, start_time, end_time, duration_minutes, status, reservation_ref, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, now(), now())
			ON CONFLICT (business_id, resource_id, slot_date, start_time) DO NOTHING
		`, id, s.BusinessID, s.ResourceID, s.SlotDate, s.StartTime, s.EndTime, s.DurationMinutes, s.Status)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return inserted, nil
}

func (r *PgRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slots
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}
