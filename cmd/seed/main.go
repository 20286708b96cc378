package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/medgrid/clinic-scheduling/internal/db"
)

var specializations = []string{
	"Urology",
	"Urological Oncology",
	"Endourology",
	"Andrology",
	"Female Urology",
}

func main() {
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()
	if err := seedClinicians(seedCtx, pool, 12); err != nil {
		log.Fatal().Err(err).Msg("seed clinicians")
	}
	if err := seedPatients(seedCtx, pool, 500); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Msg("seed complete")
}

// seedClinicians inserts roster records and, for most of them, a legacy
// staff account sharing the same email. A couple of accounts get no roster
// counterpart so the not-bookable path has data to hit.
func seedClinicians(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Info().Int("count", count).Msg("seeding clinicians")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		name := "Dr. " + gofakeit.Name()
		email := strings.ToLower(fmt.Sprintf("%s.%d@clinic.example", gofakeit.LastName(), i))
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO clinicians (id, full_name, specialization, email, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, now(), now())
		`, uuid.New(), name, spec, email)
		if err != nil {
			return err
		}

		// Legacy account mirrors the roster entry, upper-cased email to
		// exercise the case-insensitive reconciliation.
		if i%4 != 3 {
			_, err = tx.Exec(ctx, `
				INSERT INTO staff_accounts (id, name, email, role, active, verified, created_at, updated_at)
				VALUES ($1, $2, $3, 'urologist', TRUE, TRUE, now(), now())
			`, uuid.New(), name, strings.ToUpper(email))
			if err != nil {
				return err
			}
		}
	}

	// Orphaned legacy accounts: clinician-like role, no roster record.
	for i := 0; i < 2; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO staff_accounts (id, name, email, role, active, verified, created_at, updated_at)
			VALUES ($1, $2, $3, 'doctor', TRUE, FALSE, now(), now())
		`, uuid.New(), "Dr. "+gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		status := "Active"
		if gofakeit.Number(0, 49) == 0 {
			status = "Expired"
		}
		dob := gofakeit.DateRange(
			time.Date(1930, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC),
		)

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, full_name, date_of_birth, email, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, uuid.New(), gofakeit.Name(), dob, gofakeit.Email(), status)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
