package schedule

import (
	"context"
	"errors"
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

// Helpers

func scanBusiness(row pgx.Row) (*Business, error) {
	var b Business

	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, err
	}

	return &b, nil
}

// Interface methods

func (r *PgRepository) GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`, id)
	return scanBusiness(row)
}

func (r *PgRepository) ListBusinesses(ctx context.Context) ([]Business, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM businesses
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Business
	for rows.Next() {
		var b Business
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListActiveResources(ctx context.Context, businessID uuid.UUID) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, name, active, created_at, updated_at
		FROM resources
		WHERE business_id = $1 AND active
		ORDER BY created_at
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.BusinessID, &res.Name, &res.Active, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetWeekSchedule(ctx context.Context, businessID uuid.UUID) (WeekSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, open_time, close_time
		FROM operating_windows
		WHERE business_id = $1
		ORDER BY weekday, open_time
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	week := make(WeekSchedule)
	for rows.Next() {
		var weekday int
		var block TimeBlock
		if err := rows.Scan(&weekday, &block.Open, &block.Close); err != nil {
			return nil, err
		}
		day := time.Weekday(weekday)
		week[day] = append(week[day], block)
	}
	return week, rows.Err()
}

func (r *PgRepository) ListExceptions(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]CalendarException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, date, is_open, open_time, close_time, reason, created_at
		FROM calendar_exceptions
		WHERE business_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CalendarException
	for rows.Next() {
		var ex CalendarException
		var open, close *string
		if err := rows.Scan(&ex.ID, &ex.BusinessID, &ex.Date, &ex.Open, &open, &close, &ex.Reason, &ex.CreatedAt); err != nil {
			return nil, err
		}
		if open != nil && close != nil {
			ex.Blocks = []TimeBlock{{Open: *open, Close: *close}}
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetBookingPolicy(ctx context.Context, businessID uuid.UUID) (*BookingPolicy, error) {
	var p BookingPolicy

	err := r.pool.QueryRow(ctx, `
		SELECT business_id, slot_duration_minutes, advance_booking_days, min_advance_minutes, updated_at
		FROM booking_policies
		WHERE business_id = $1
	`, businessID).Scan(
		&p.BusinessID,
		&p.SlotDurationMinutes,
		&p.AdvanceBookingDays,
		&p.MinAdvanceMinutes,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) CreateException(ctx context.Context, ex CalendarException) error {
	id := ex.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var open, close *string
	if len(ex.Blocks) > 0 {
		open = &ex.Blocks[0].Open
		close = &ex.Blocks[0].Close
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO calendar_exceptions (id, business_id, date, is_open, open_time, close_time, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (business_id, date) DO UPDATE
		SET is_open = EXCLUDED.is_open,
		    open_time = EXCLUDED.open_time,
		    close_time = EXCLUDED.close_time,
		    reason = EXCLUDED.reason
	`, id, ex.BusinessID, ex.Date, ex.Open, open, close, ex.Reason)
	return err
}
