package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/appointment-pipeline/internal/config"
	"github.com/medbook/appointment-pipeline/internal/db"
)

// Seeds one country's schedule store with fake medical capacity.
// Select the store with COUNTRY_ISO=PE or COUNTRY_ISO=CL.

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	dsn, err := cfg.PostgresDSN(cfg.CountryISO)
	if err != nil {
		log.Fatalf("schedule store config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := createSchema(context.Background(), pool); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	if err := seedCapacity(context.Background(), pool, cfg.CountryISO); err != nil {
		log.Fatalf("seed capacity: %v", err)
	}

	log.Println("seed complete")
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS medical_centers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		city TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS specialities (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id BIGSERIAL PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		license_number TEXT NOT NULL,
		speciality_id BIGINT NOT NULL REFERENCES specialities(id)
	)`,
	`CREATE TABLE IF NOT EXISTS medical_schedules (
		id BIGSERIAL PRIMARY KEY,
		center_id BIGINT NOT NULL REFERENCES medical_centers(id),
		speciality_id BIGINT NOT NULL REFERENCES specialities(id),
		medic_id BIGINT NOT NULL REFERENCES doctors(id),
		appointment_date TIMESTAMPTZ NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_bookings (
		id BIGSERIAL PRIMARY KEY,
		schedule_id BIGINT NOT NULL UNIQUE REFERENCES medical_schedules(id),
		appointment_id TEXT NOT NULL,
		country_iso TEXT NOT NULL,
		booked_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS processed_appointments (
		id BIGSERIAL PRIMARY KEY,
		appointment_id TEXT NOT NULL,
		insured_id TEXT NOT NULL,
		schedule_id BIGINT NOT NULL,
		country_iso TEXT NOT NULL,
		center_id BIGINT,
		speciality_id BIGINT,
		medic_id BIGINT,
		appointment_date TIMESTAMPTZ,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ,
		processed_at TIMESTAMPTZ
	)`,
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range schemaDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	log.Println("schema ready")
	return nil
}

func seedCapacity(ctx context.Context, pool *pgxpool.Pool, countryISO string) error {
	specialities := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	specIDs := make([]int64, 0, len(specialities))
	for _, name := range specialities {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO specialities (name) VALUES ($1) RETURNING id
		`, name).Scan(&id); err != nil {
			return err
		}
		specIDs = append(specIDs, id)
	}

	const centerCount = 20
	centerIDs := make([]int64, 0, centerCount)
	for i := 0; i < centerCount; i++ {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO medical_centers (name, address, city)
			VALUES ($1, $2, $3)
			RETURNING id
		`, gofakeit.Company()+" Medical Center", gofakeit.Street(), gofakeit.City()).Scan(&id); err != nil {
			return err
		}
		centerIDs = append(centerIDs, id)
	}
	log.Printf("centers seeded: %d", centerCount)

	const doctorCount = 100
	type doctor struct {
		id     int64
		specID int64
	}
	doctors := make([]doctor, 0, doctorCount)
	for i := 0; i < doctorCount; i++ {
		specID := specIDs[gofakeit.Number(0, len(specIDs)-1)]
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO doctors (first_name, last_name, license_number, speciality_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.UUID(), specID).Scan(&id); err != nil {
			return err
		}
		doctors = append(doctors, doctor{id: id, specID: specID})
	}
	log.Printf("doctors seeded: %d", doctorCount)

	slots := 0
	for _, dr := range doctors {
		center := centerIDs[gofakeit.Number(0, len(centerIDs)-1)]
		for day := 1; day <= 10; day++ {
			date := time.Now().AddDate(0, 0, day).Truncate(24 * time.Hour).Add(time.Duration(gofakeit.Number(8, 17)) * time.Hour)
			if _, err := tx.Exec(ctx, `
				INSERT INTO medical_schedules (center_id, speciality_id, medic_id, appointment_date, is_available)
				VALUES ($1, $2, $3, $4, true)
			`, center, dr.specID, dr.id, date); err != nil {
				return err
			}
			slots++
		}
	}
	log.Printf("slots seeded: %d", slots)

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("capacity seeded for %s", countryISO)
	return nil
}
