package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service   ClinicService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    zerolog.Logger
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints stay outside auth so orchestrators can probe them.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/check-in", checkInHandler(cfg.Service))
		r.Post("/appointments/{id}/start", startAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))
		r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Service))
		r.Post("/appointments/{id}/complete-patient-info", bindPatientHandler(cfg.Service))

		r.Get("/queue", queueHandler(cfg.Service))
	})

	return r
}
