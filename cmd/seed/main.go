package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/almdiagnostics/clinic-booking-service/internal/db"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, 25); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedTests(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("seed tests")
	}
	if err := seedCoupons(context.Background(), pool, 10); err != nil {
		logger.Fatal().Err(err).Msg("seed coupons")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	specializations := []string{
		"Dermatology",
		"Cardiology",
		"General Medicine",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Gynecology",
		"Ophthalmology",
		"ENT",
	}
	startTimes := []string{"08:00", "09:00", "09:30", "10:00", "16:00", "18:00"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		fee := float64(gofakeit.Number(6, 30)) * 50 // 300..1500
		start := startTimes[gofakeit.Number(0, len(startTimes)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, consultation_fee, start_time, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
		`, id, name, spec, fee, start)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

func seedTests(ctx context.Context, pool *pgxpool.Pool) error {
	tests := []struct {
		name  string
		price float64
	}{
		{"Complete Blood Count", 350},
		{"Lipid Profile", 600},
		{"Thyroid Panel", 550},
		{"Blood Glucose (Fasting)", 150},
		{"HbA1c", 450},
		{"Liver Function Test", 700},
		{"Kidney Function Test", 650},
		{"Vitamin D", 1200},
		{"Vitamin B12", 900},
		{"Urine Routine", 200},
		{"Chest X-Ray", 500},
		{"ECG", 400},
	}

	logger.Info().Int("count", len(tests)).Msg("seeding tests")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, t := range tests {
		desc := gofakeit.Sentence(10)
		_, err := tx.Exec(ctx, `
			INSERT INTO tests (id, name, description, price, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, uuid.New(), t.name, desc, t.price)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("tests seeded")
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding coupons")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		code := strings.ToUpper(gofakeit.LetterN(4)) + fmt.Sprintf("%02d", gofakeit.Number(0, 99))

		discountType := "percent"
		value := float64(gofakeit.Number(5, 30))
		if gofakeit.Bool() {
			discountType = "flat"
			value = float64(gofakeit.Number(2, 20)) * 25 // 50..500
		}

		var expiresAt *time.Time
		if gofakeit.Bool() {
			exp := time.Now().AddDate(0, gofakeit.Number(1, 6), 0)
			expiresAt = &exp
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO coupons (id, code, discount_type, discount_value, is_active, expires_at, created_at)
			VALUES ($1, $2, $3, $4, true, $5, now())
		`, uuid.New(), code, discountType, value, expiresAt)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("coupons seeded")
	return nil
}
