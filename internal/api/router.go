package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// NotificationInbox lists a user's unread notifications. *notify.Store
// implements it.
type NotificationInbox interface {
	ListUnread(ctx context.Context, userID uuid.UUID, limit int) ([]scheduling.Notification, error)
}

type RouterConfig struct {
	Service     *scheduling.Service
	Inbox       NotificationInbox
	PgPool      Pinger
	Redis       *redis.Client
	Metrics     *metrics.Collector
	Log         *zap.Logger
	CORSOrigins []string
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := cfg.Service

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(svc, log))
		r.Get("/", listAppointmentsHandler(svc, log))
		r.Get("/{id}", getAppointmentHandler(svc, log))
		r.Get("/{id}/history", appointmentHistoryHandler(svc, log))
		r.Post("/{id}/cancel", cancelAppointmentHandler(svc, log))
		r.Post("/{id}/reschedule", rescheduleAppointmentHandler(svc, log))
		r.Post("/{id}/attend", markAttendedHandler(svc, log))
	})

	// Doctor schedule endpoints
	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/availability", availabilityHandler(svc, log))
		r.Get("/schedule-blocks", listScheduleBlocksHandler(svc, log))
		r.Post("/schedule-blocks", addScheduleBlockHandler(svc, log))
		r.Post("/schedule-blocks/default", provisionDefaultScheduleHandler(svc, log))
	})
	r.Delete("/schedule-blocks/{id}", removeScheduleBlockHandler(svc, log))

	// Notification inbox
	if cfg.Inbox != nil {
		r.Get("/users/{id}/notifications", listNotificationsHandler(cfg.Inbox, log))
	}

	return r
}
