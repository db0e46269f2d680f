package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/slotgrid/availability-engine/internal/config"
	"github.com/slotgrid/availability-engine/internal/db"
	"github.com/slotgrid/availability-engine/internal/engine"
	"github.com/slotgrid/availability-engine/internal/metrics"
	redisclient "github.com/slotgrid/availability-engine/internal/redis"
	"github.com/slotgrid/availability-engine/internal/reservation"
	"github.com/slotgrid/availability-engine/internal/schedule"
	"github.com/slotgrid/availability-engine/internal/slot"
)

// The worker keeps every business topped up: as days roll by, the horizon
// advances and generate fills the far edge. Conflicted or misconfigured
// businesses are logged and skipped, never fatal.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "regen-worker").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Msg("regen-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	metrics.Register()

	schedules := schedule.NewPgRepository(pgPool)
	reservations := reservation.NewPgRepository(pgPool)
	slots := slot.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBusinessLocker(rdb, cfg.LockTTL)

	svc := engine.NewService(schedules, reservations, slots, locker, cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, schedules, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping regen worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, schedules, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *engine.Service, schedules schedule.Repository, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()

	businesses, err := schedules.ListBusinesses(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("list businesses")
		return
	}

	var created, skipped int
	for _, b := range businesses {
		rep, err := svc.Generate(runCtx, b.ID, engine.Options{})
		if err != nil {
			skipped++
			logSkip(logger, b.ID.String(), err)
			continue
		}
		created += rep.Created
	}

	logger.Info().
		Int("businesses", len(businesses)).
		Int("skipped", skipped).
		Int("slots_created", created).
		Dur("took", time.Since(start)).
		Msg("regen run complete")
}

func logSkip(logger zerolog.Logger, businessID string, err error) {
	var conflictErr *engine.ConflictError
	var configErr *engine.ConfigError

	ev := logger.Warn().Str("business_id", businessID)
	switch {
	case errors.As(err, &conflictErr):
		ev.Int("conflicts", len(conflictErr.Conflicts)).Msg("generate halted on conflicts, needs operator attention")
	case errors.As(err, &configErr):
		ev.Str("missing", configErr.Missing).Msg("business not fully configured, skipping")
	case errors.Is(err, engine.ErrBusinessBusy):
		ev.Msg("another run holds the lock, will retry next tick")
	default:
		logger.Error().Str("business_id", businessID).Err(err).Msg("generate failed")
	}
}
