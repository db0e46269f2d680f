package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) ListActiveInRange(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, date, start_at, resource_id, status, created_at
		FROM reservations
		WHERE business_id = $1
		  AND date BETWEEN $2 AND $3
		  AND status NOT IN ('cancelled', 'completed', 'no_show')
		ORDER BY date, start_at
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reservation
	for rows.Next() {
		var res Reservation
		var resourceID *uuid.UUID
		var startAt time.Time
		if err := rows.Scan(&res.ID, &res.BusinessID, &res.Date, &startAt, &resourceID, &res.Status, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.StartAt = startAt
		res.ResourceID = resourceID
		result = append(result, res)
	}
	return result, rows.Err()
}
