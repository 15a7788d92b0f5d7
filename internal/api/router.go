package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

type RouterConfig struct {
	Booking      BookingService
	Availability AvailabilityService
	Repo         clinic.Repository
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       *zap.Logger
	Env          string
	Version      string
	HorizonDays  int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Availability
	r.Get("/doctors/{id}/availability", getAvailabilityHandler(cfg.Availability))
	r.Get("/doctors/{id}/availability/next", getNextAvailabilityHandler(cfg.Availability, cfg.HorizonDays))

	// Appointments
	r.Post("/appointments", createAppointmentHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Repo))
	r.Post("/appointments/{id}/confirm", appointmentActionHandler(cfg.Booking.ConfirmAppointment))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/complete", appointmentActionHandler(cfg.Booking.CompleteAppointment))
	r.Post("/appointments/{id}/no-show", appointmentActionHandler(cfg.Booking.MarkNoShow))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Booking))

	// Patients
	r.Post("/patients", createPatientHandler(cfg.Repo))
	r.Get("/patients/{id}", getPatientHandler(cfg.Repo))
	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Repo))

	// Doctors and schedules
	r.Post("/doctors", createDoctorHandler(cfg.Repo))
	r.Get("/doctors", listDoctorsHandler(cfg.Repo))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Repo))
	r.Post("/doctors/{id}/schedules", createScheduleHandler(cfg.Repo))
	r.Delete("/doctors/{id}/schedules/{scheduleID}", deactivateScheduleHandler(cfg.Repo))

	// Service types
	r.Post("/service-types", createServiceTypeHandler(cfg.Repo))
	r.Get("/service-types", listServiceTypesHandler(cfg.Repo))

	// Interactions (audit write sink for the messaging integration)
	r.Post("/interactions", createInteractionHandler(cfg.Repo))

	return r
}
