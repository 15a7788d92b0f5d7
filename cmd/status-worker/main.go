// status-worker periodically reconciles appointment statuses with the clock:
// unconfirmed bookings whose start time passed are cancelled, and confirmed
// ones that were never completed become no-shows after a grace window.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
	"github.com/smartsalud/clinic-scheduler/internal/config"
	"github.com/smartsalud/clinic-scheduler/internal/db"
	"github.com/smartsalud/clinic-scheduler/internal/logger"
)

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

	zlog.Info("status-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.SweepInterval),
		zap.Duration("no_show_grace", cfg.NoShowGrace),
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

	repo := clinic.NewPgRepository(pgPool)

	runOnce(rootCtx, repo, cfg, zlog)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zlog.Info("status-worker shutting down")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, cfg, zlog)
		}
	}
}

func runOnce(ctx context.Context, repo clinic.Repository, cfg config.Config, zlog *zap.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	cancelled, err := repo.CancelStalePending(sweepCtx, now)
	if err != nil {
		zlog.Error("cancel stale pending failed", zap.Error(err))
	} else if cancelled > 0 {
		zlog.Info("cancelled stale pending appointments", zap.Int64("count", cancelled))
	}

	noShows, err := repo.MarkNoShows(sweepCtx, now.Add(-cfg.NoShowGrace))
	if err != nil {
		zlog.Error("mark no-shows failed", zap.Error(err))
	} else if noShows > 0 {
		zlog.Info("marked no-shows", zap.Int64("count", noShows))
	}
}
