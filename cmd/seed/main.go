package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/clinicdesk/clinic-frontdesk/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	professionals, err := seedProfessionals(context.Background(), pool, 12)
	if err != nil {
		log.Fatalf("seed professionals: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 400)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	procedures, err := seedProcedures(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed procedures: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, professionals, patients, procedures, 60); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d professionals", count)

	specialties := []string{
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
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("professionals seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 200

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedProcedures inserts a small billing catalog. Values are in cents.
func seedProcedures(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	catalog := []struct {
		name  string
		typ   string
		value int64
	}{
		{"First consultation", "consultation", 25000},
		{"Follow-up consultation", "consultation", 18000},
		{"Telehealth consultation", "consultation", 15000},
		{"Blood panel", "exam", 9000},
		{"Electrocardiogram", "exam", 12000},
		{"Abdominal ultrasound", "exam", 22000},
		{"X-ray", "exam", 14000},
		{"Skin biopsy", "procedure", 35000},
		{"Wound suture", "procedure", 20000},
		{"Cryotherapy session", "procedure", 16000},
		{"Minor excision", "procedure", 42000},
	}

	log.Printf("seeding %d procedures", len(catalog))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(catalog))
	for _, entry := range catalog {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO procedures (id, name, type, value)
			VALUES ($1, $2, $3, $4)
		`, id, entry.name, entry.typ, entry.value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("procedures seeded")
	return ids, nil
}

// seedAppointments books a day of scheduled appointments spread over
// working hours, each with one to three procedures.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, professionals, patients, procedures []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, now.Location())

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		professionalID := professionals[gofakeit.Number(0, len(professionals)-1)]
		scheduledAt := dayStart.Add(time.Duration(gofakeit.Number(0, 9*60)) * time.Minute)

		// Leave a handful of provisional bookings without a patient.
		var patientID *uuid.UUID
		if gofakeit.Number(0, 9) > 0 {
			pid := patients[gofakeit.Number(0, len(patients)-1)]
			patientID = &pid
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, patient_id, professional_id, scheduled_at, checked_in_at, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NULL, 'scheduled', '', now(), now())
		`, id, patientID, professionalID, scheduledAt)
		if err != nil {
			return err
		}

		seen := make(map[uuid.UUID]struct{})
		for n := gofakeit.Number(1, 3); n > 0; n-- {
			procID := procedures[gofakeit.Number(0, len(procedures)-1)]
			if _, dup := seen[procID]; dup {
				continue
			}
			seen[procID] = struct{}{}

			_, err := tx.Exec(ctx, `
				INSERT INTO appointment_procedures (appointment_id, procedure_id)
				VALUES ($1, $2)
			`, id, procID)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
