package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Service SchedulingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Post("/investigations", bookInvestigationHandler(cfg.Service))
	r.Get("/clinicians", listCliniciansHandler(cfg.Service))
	r.Get("/clinicians/{id}/slots", availableSlotsHandler(cfg.Service))
	r.Put("/bookings/{id}/reschedule", rescheduleHandler(cfg.Service))
	r.Post("/bookings/{id}/no-show", noShowHandler(cfg.Service))

	return r
}
