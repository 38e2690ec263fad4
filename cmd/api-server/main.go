package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/almdiagnostics/clinic-booking-service/internal/api"
	"github.com/almdiagnostics/clinic-booking-service/internal/booking"
	"github.com/almdiagnostics/clinic-booking-service/internal/config"
	"github.com/almdiagnostics/clinic-booking-service/internal/db"
	"github.com/almdiagnostics/clinic-booking-service/internal/identity"
	"github.com/almdiagnostics/clinic-booking-service/internal/metrics"
	redisclient "github.com/almdiagnostics/clinic-booking-service/internal/redis"
	"github.com/almdiagnostics/clinic-booking-service/internal/reports"
	"github.com/almdiagnostics/clinic-booking-service/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := newLogger(cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	// Connect MinIO
	minioClient, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatal().Err(err).Msg("minio connection error")
	}
	if err := storage.EnsureBucket(rootCtx, minioClient, cfg.ReportsBucket); err != nil {
		logger.Fatal().Err(err).Msg("reports bucket error")
	}
	logger.Info().Str("bucket", cfg.ReportsBucket).Msg("connected to MinIO")

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisQueueLocker(rdb, cfg.LockTTL)
	bookingSvc := booking.NewService(repo, locker, cfg, logger)
	reportSvc := reports.NewService(repo, minioClient, cfg.ReportsBucket, logger)
	verifier := identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	collector := metrics.NewCollector("clinic_booking")

	handler := api.NewRouter(api.RouterConfig{
		Booking:  bookingSvc,
		Reports:  reportSvc,
		Verifier: verifier,
		Metrics:  collector,
		Logger:   logger,
		PgPool:   pgPool,
		Redis:    rdb,
		Env:      cfg.Env,
		Version:  version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("api-server stopped")
}

func newLogger(env string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}
