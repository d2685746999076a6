package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-frontdesk/internal/clinic"
	"github.com/clinicdesk/clinic-frontdesk/internal/config"
	"github.com/clinicdesk/clinic-frontdesk/internal/db"
	redisclient "github.com/clinicdesk/clinic-frontdesk/internal/redis"
)

// queue-worker sweeps appointments that were never checked in: anything
// still scheduled for a past day gets cancelled so it stops cluttering
// the front-desk queue.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Env)
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("queue-worker starting up")

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
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := clinic.NewPgRepository(pgPool)
	locker := redisclient.NewRedisAppointmentLocker(rdb, cfg.LockTTL)
	svc := clinic.NewService(repo, locker, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping queue worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *clinic.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	cancelled, err := svc.CancelStaleScheduled(runCtx, start)
	if err != nil {
		logger.Error().Err(err).Msg("stale sweep error")
		return
	}
	logger.Info().Int("cancelled", cancelled).Dur("took", time.Since(start)).Msg("stale sweep complete")
}
