package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/smartsalud/clinic-scheduler/internal/api"
	"github.com/smartsalud/clinic-scheduler/internal/availability"
	"github.com/smartsalud/clinic-scheduler/internal/booking"
	"github.com/smartsalud/clinic-scheduler/internal/calendar"
	"github.com/smartsalud/clinic-scheduler/internal/clinic"
	"github.com/smartsalud/clinic-scheduler/internal/config"
	"github.com/smartsalud/clinic-scheduler/internal/db"
	"github.com/smartsalud/clinic-scheduler/internal/logger"
	"github.com/smartsalud/clinic-scheduler/internal/metrics"
	redisclient "github.com/smartsalud/clinic-scheduler/internal/redis"

	"github.com/prometheus/client_golang/prometheus"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zlog.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zlog.Warn("error closing redis", zap.Error(err))
		}
	}()
	zlog.Info("connected to Redis")

	repo := clinic.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL, cfg.LockRetryInterval)
	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	var cal calendar.Sync = calendar.NoopSync{}
	if cfg.CalendarBaseURL != "" {
		cal = calendar.NewHTTPSync(cfg.CalendarBaseURL, cfg.CalendarSyncTimeout)
		zlog.Info("calendar sync enabled", zap.String("base_url", cfg.CalendarBaseURL))
	}

	availabilitySvc := availability.NewService(repo, clinic.RealClock(), cfg.DefaultAppointmentDuration, zlog, bookingMetrics)
	bookingSvc := booking.NewService(repo, locker, cal, booking.Config{
		FallbackDuration: cfg.DefaultAppointmentDuration,
		CalendarTimeout:  cfg.CalendarSyncTimeout,
	}, zlog, bookingMetrics)

	handler := api.NewRouter(api.RouterConfig{
		Booking:      bookingSvc,
		Availability: availabilitySvc,
		Repo:         repo,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       zlog,
		Env:          cfg.Env,
		Version:      version,
		HorizonDays:  cfg.BookingHorizonDays,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		zlog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server error", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
	zlog.Info("api-server stopped")
}
