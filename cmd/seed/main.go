package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartsalud/clinic-scheduler/internal/db"
)

type serviceTypeSeed struct {
	name            string
	durationMinutes int
}

// Default consultation catalog for a primary-care clinic.
var serviceTypes = []serviceTypeSeed{
	{"Consulta de Morbilidad", 20},
	{"Salud Mental", 40},
	{"Control Crónico", 30},
	{"Pausa Saludable", 20},
	{"Recetas", 30},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

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

	serviceTypeIDs, err := seedServiceTypes(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed service types: %v", err)
	}
	doctorIDs, err := seedDoctors(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedSchedules(context.Background(), pool, doctorIDs, serviceTypeIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedServiceTypes(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	log.Printf("seeding %d service types", len(serviceTypes))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(serviceTypes))
	for _, st := range serviceTypes {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO service_types (id, name, duration_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, st.name, st.durationMinutes)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("service types seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Medicina General",
		"Salud Mental",
		"Pediatría",
		"Matrona",
		"Kinesiología",
		"Nutrición",
	}
	sectors := []string{"Azul", "Rojo", "Verde", "Amarillo"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		sector := sectors[gofakeit.Number(0, len(sectors)-1)]
		email := fmt.Sprintf("%s.%s@clinic.example", gofakeit.Username(), gofakeit.LetterN(4))

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, first_name, last_name, sector, specialty, calendar_email, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, true, now(), now())
		`, id, first, last, sector, spec, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

// seedSchedules gives every doctor a Monday-through-Friday template with a
// morning and an afternoon block, each bound to a random service type.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, doctorIDs, serviceTypeIDs []uuid.UUID) error {
	log.Printf("seeding schedules for %d doctors", len(doctorIDs))

	blocks := []struct {
		start string
		end   string
	}{
		{"08:30", "12:30"},
		{"14:00", "17:00"},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorID := range doctorIDs {
		for day := 0; day < 5; day++ { // 0=Monday .. 4=Friday
			for _, block := range blocks {
				stID := serviceTypeIDs[gofakeit.Number(0, len(serviceTypeIDs)-1)]
				_, err := tx.Exec(ctx, `
					INSERT INTO doctor_schedules (id, doctor_id, day_of_week, start_time, end_time, service_type_id, is_active, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, true, now(), now())
				`, uuid.New(), doctorID, day, block.start, block.end, stID)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			first := gofakeit.FirstName()
			last := gofakeit.LastName()
			email := gofakeit.Email()
			rut := fakeRUT(i)
			phone := fmt.Sprintf("+5691%07d", 1000000+i)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, rut, phone, first_name, last_name, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, id, rut, phone, first, last, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// fakeRUT derives a unique Chilean-style RUT with a valid modulo-11 check
// digit from a sequence number.
func fakeRUT(seq int) string {
	number := 10000000 + seq
	sum, factor := 0, 2
	for n := number; n > 0; n /= 10 {
		sum += (n % 10) * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	dv := 11 - sum%11
	switch dv {
	case 11:
		return fmt.Sprintf("%d-0", number)
	case 10:
		return fmt.Sprintf("%d-K", number)
	default:
		return fmt.Sprintf("%d-%d", number, dv)
	}
}
