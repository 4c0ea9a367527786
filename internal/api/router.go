package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/evv-verification/internal/visit"
)

type RouterConfig struct {
	Service  *visit.Service
	PgPool   *pgxpool.Pool       // optional
	Redis    *redis.Client       // optional
	Gatherer prometheus.Gatherer // serves /metrics when set
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/evv", func(r chi.Router) {
		r.Post("/schedules", pushScheduleHandler(cfg.Service))
		r.Post("/events", recordEventHandler(cfg.Service))
		r.Get("/visits/{id}", getVisitHandler(cfg.Service))
		r.Get("/visits/{id}/events", listEventsHandler(cfg.Service))
		r.Get("/visits/{id}/validation", validateVisitHandler(cfg.Service))
		r.Get("/patients/{id}/location", patientLocationHandler(cfg.Service))
	})

	return r
}
