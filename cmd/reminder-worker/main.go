package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/almdiagnostics/clinic-booking-service/internal/booking"
	"github.com/almdiagnostics/clinic-booking-service/internal/config"
	"github.com/almdiagnostics/clinic-booking-service/internal/db"
	redisclient "github.com/almdiagnostics/clinic-booking-service/internal/redis"
)

// The reminder worker handles the clinic's periodic housekeeping:
// deactivating expired coupons and nudging registered patients about
// tomorrow's appointments.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "reminder-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("reminder-worker starting up")

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
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisQueueLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, locker, cfg, logger)

	w := &worker{svc: svc, log: logger}

	// Run once at startup
	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

type worker struct {
	svc *booking.Service
	log zerolog.Logger

	// Reminders go out once per calendar day; the sweep is idempotent
	// and runs every tick.
	lastReminded string
}

func (w *worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	swept, err := w.svc.SweepExpiredCoupons(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("coupon sweep error")
	} else if swept > 0 {
		w.log.Info().Int64("deactivated", swept).Msg("expired coupons deactivated")
	}

	today := time.Now().Format("2006-01-02")
	if w.lastReminded == today {
		return
	}

	tomorrow := time.Now().AddDate(0, 0, 1)
	tomorrow = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())

	sent, err := w.svc.SendReminders(runCtx, tomorrow)
	if err != nil {
		w.log.Error().Err(err).Msg("reminder run error")
		return
	}

	w.lastReminded = today
	w.log.Info().Int("reminders", sent).Dur("took", time.Since(start)).Msg("reminder run complete")
}
