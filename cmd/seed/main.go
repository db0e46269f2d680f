package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotgrid/availability-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	businesses, err := seedBusinesses(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed businesses: %v", err)
	}
	if err := seedReservations(context.Background(), pool, businesses, 3000); err != nil {
		log.Fatalf("seed reservations: %v", err)
	}

	log.Println("seed complete")
}

type seededBusiness struct {
	ID           uuid.UUID
	ResourceIDs  []uuid.UUID
	SlotDuration int
}

func seedBusinesses(ctx context.Context, pool *pgxpool.Pool, count int) ([]seededBusiness, error) {
	log.Printf("seeding %d businesses", count)

	durations := []int{15, 30, 45, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var result []seededBusiness
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company()

		_, err := tx.Exec(ctx, `
			INSERT INTO businesses (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name)
		if err != nil {
			return nil, err
		}

		b := seededBusiness{ID: id, SlotDuration: durations[gofakeit.Number(0, len(durations)-1)]}

		resourceCount := gofakeit.Number(2, 5)
		for j := 0; j < resourceCount; j++ {
			resID := uuid.New()
			active := j < resourceCount-1 || gofakeit.Bool() // at most one inactive
			_, err := tx.Exec(ctx, `
				INSERT INTO resources (id, business_id, name, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, resID, id, gofakeit.Name(), active)
			if err != nil {
				return nil, err
			}
			if active {
				b.ResourceIDs = append(b.ResourceIDs, resID)
			}
		}

		if err := seedOperatingWindows(ctx, tx, id, i); err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO booking_policies (business_id, slot_duration_minutes, advance_booking_days, min_advance_minutes, updated_at)
			VALUES ($1, $2, $3, $4, now())
		`, id, b.SlotDuration, gofakeit.Number(14, 45), []int{0, 60, 120}[gofakeit.Number(0, 2)])
		if err != nil {
			return nil, err
		}

		// A closed day about a week out, on roughly a third of businesses.
		if i%3 == 0 {
			closedOn := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, gofakeit.Number(5, 9))
			_, err = tx.Exec(ctx, `
				INSERT INTO calendar_exceptions (id, business_id, date, is_open, open_time, close_time, reason, created_at)
				VALUES ($1, $2, $3, false, NULL, NULL, 'maintenance', now())
			`, uuid.New(), id, closedOn)
			if err != nil {
				return nil, err
			}
		}

		result = append(result, b)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("businesses seeded")
	return result, nil
}

func seedOperatingWindows(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, seq int) error {
	insert := func(weekday int, open, close string) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO operating_windows (business_id, weekday, open_time, close_time)
			VALUES ($1, $2, $3, $4)
		`, businessID, weekday, open, close)
		return err
	}

	// Monday through Friday. Every fourth business runs a split shift.
	for weekday := 1; weekday <= 5; weekday++ {
		if seq%4 == 0 {
			if err := insert(weekday, "09:00", "12:00"); err != nil {
				return err
			}
			if err := insert(weekday, "13:00", "17:00"); err != nil {
				return err
			}
			continue
		}
		if err := insert(weekday, "09:00", "17:00"); err != nil {
			return err
		}
	}

	// Saturday mornings for half of them.
	if seq%2 == 0 {
		if err := insert(6, "09:00", "13:00"); err != nil {
			return err
		}
	}

	return nil
}

func seedReservations(ctx context.Context, pool *pgxpool.Pool, businesses []seededBusiness, count int) error {
	log.Printf("seeding %d reservations", count)

	const batchSize = 500

	statuses := []string{"pending", "confirmed", "confirmed", "confirmed", "cancelled", "completed"}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			b := businesses[gofakeit.Number(0, len(businesses)-1)]

			date := today.AddDate(0, 0, gofakeit.Number(0, 13))
			minutesFromOpen := gofakeit.Number(0, (8*60/b.SlotDuration)-1) * b.SlotDuration
			startAt := date.Add(9*time.Hour + time.Duration(minutesFromOpen)*time.Minute)

			var resourceID *uuid.UUID
			if len(b.ResourceIDs) > 0 && gofakeit.Number(0, 9) > 1 {
				resourceID = &b.ResourceIDs[gofakeit.Number(0, len(b.ResourceIDs)-1)]
			}

			status := statuses[gofakeit.Number(0, len(statuses)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO reservations (id, business_id, date, start_at, resource_id, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, now())
			`, uuid.New(), b.ID, date, startAt, resourceID, status)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("reservations seeded: %d/%d", end, count)
	}

	log.Println("reservations seeded")
	return nil
}
