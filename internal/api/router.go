package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/almdiagnostics/clinic-booking-service/internal/booking"
	"github.com/almdiagnostics/clinic-booking-service/internal/identity"
	"github.com/almdiagnostics/clinic-booking-service/internal/metrics"
	"github.com/almdiagnostics/clinic-booking-service/internal/reports"
)

type RouterConfig struct {
	Booking  *booking.Service
	Reports  *reports.Service
	Verifier identity.Verifier
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(AuthMiddleware(cfg.Verifier))

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	// Bookable resources
	r.Get("/doctors", listDoctorsHandler(cfg.Booking))
	r.Get("/tests", listTestsHandler(cfg.Booking))

	// Coupons
	r.Get("/coupons", listCouponsHandler(cfg.Booking))
	r.Post("/coupons/preview", couponPreviewHandler(cfg.Booking))

	// Appointments
	r.Post("/appointments", createAppointmentHandler(cfg.Booking, cfg.Metrics))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking, cfg.Metrics))
	r.Post("/appointments/{id}/status", advanceStatusHandler(cfg.Booking, cfg.Metrics))
	r.Post("/appointments/{id}/report", uploadReportHandler(cfg.Reports, cfg.Metrics))

	// Patient dashboard
	r.Get("/my/appointments", myAppointmentsHandler(cfg.Booking))
	r.Get("/my/reports", myReportsHandler(cfg.Reports))
	r.Get("/my/notifications", myNotificationsHandler(cfg.Booking))
	r.Post("/my/notifications/read", markNotificationsReadHandler(cfg.Booking))

	return r
}
