package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slotgrid/availability-engine/internal/schedule"
	"github.com/slotgrid/availability-engine/internal/slot"
)

type RouterConfig struct {
	Engine    Engine
	Schedules schedule.Repository
	Slots     slot.Repository
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
	}))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/businesses/{businessID}", func(r chi.Router) {
		r.Post("/slots/generate", runHandler(cfg.Engine.Generate))
		r.Post("/slots/regenerate", runHandler(cfg.Engine.Regenerate))
		r.Post("/slots/cleanup", runHandler(cfg.Engine.Cleanup))
		r.Post("/slots/cleanup-and-regenerate", runHandler(cfg.Engine.CleanupAndRegenerate))
		r.Get("/slots", listSlotsHandler(cfg.Slots))
		r.Post("/schedule/conflicts", conflictCheckHandler(cfg.Engine, cfg.Schedules))
	})

	return r
}
