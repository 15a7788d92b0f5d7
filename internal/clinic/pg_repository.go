package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the subset of pgxpool.Pool the repository needs. Declared as an
// interface so tests can substitute a pgxmock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func todToPG(t TimeOfDay) pgtype.Time {
	return pgtype.Time{
		Microseconds: int64(t) * int64(time.Minute/time.Microsecond),
		Valid:        true,
	}
}

func todFromPG(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.RUT,
		&p.Phone,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.FirstName,
		&d.LastName,
		&d.Sector,
		&d.Specialty,
		&d.CalendarEmail,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanServiceType(row pgx.Row) (*ServiceType, error) {
	var st ServiceType
	err := row.Scan(
		&st.ID,
		&st.Name,
		&st.DurationMinutes,
		&st.Description,
		&st.Color,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceTypeNotFound
		}
		return nil, err
	}
	return &st, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ServiceTypeID,
		&a.StartAt,
		&a.Status,
		&a.CalendarEventID,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const appointmentColumns = `id, patient_id, doctor_id, service_type_id, start_at, status, calendar_event_id, notes, created_at, updated_at`

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, rut, phone, first_name, last_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, rut, phone, first_name, last_name, email, created_at, updated_at
	`, p.ID, p.RUT, p.Phone, p.FirstName, p.LastName, p.Email)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, rut, phone, first_name, last_name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, rut, phone, first_name, last_name, email, created_at, updated_at
		FROM patients
		WHERE phone = $1
	`, phone)
	return scanPatient(row)
}

// DeletePatient removes the patient; appointments and interactions cascade.
func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO doctors (id, first_name, last_name, sector, specialty, calendar_email, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, first_name, last_name, sector, specialty, calendar_email, is_active, created_at, updated_at
	`, d.ID, d.FirstName, d.LastName, d.Sector, d.Specialty, d.CalendarEmail, d.IsActive)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, sector, specialty, calendar_email, is_active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetActiveDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, sector, specialty, calendar_email, is_active, created_at, updated_at
		FROM doctors
		WHERE id = $1 AND is_active = true
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, first_name, last_name, sector, specialty, calendar_email, is_active, created_at, updated_at
		FROM doctors
		WHERE is_active = true
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// Service types

func (r *PgRepository) CreateServiceType(ctx context.Context, st ServiceType) (*ServiceType, error) {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO service_types (id, name, duration_minutes, description, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, name, duration_minutes, description, color, created_at, updated_at
	`, st.ID, st.Name, st.DurationMinutes, st.Description, st.Color)
	return scanServiceType(row)
}

func (r *PgRepository) GetServiceTypeByID(ctx context.Context, id uuid.UUID) (*ServiceType, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, duration_minutes, description, color, created_at, updated_at
		FROM service_types
		WHERE id = $1
	`, id)
	return scanServiceType(row)
}

func (r *PgRepository) ListServiceTypes(ctx context.Context) ([]ServiceType, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, duration_minutes, description, color, created_at, updated_at
		FROM service_types
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ServiceType
	for rows.Next() {
		st, err := scanServiceType(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *st)
	}
	return result, rows.Err()
}

// Schedule templates

func (r *PgRepository) CreateScheduleTemplate(ctx context.Context, t ScheduleTemplate) (*ScheduleTemplate, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	var out ScheduleTemplate
	var start, end pgtype.Time
	err := r.db.QueryRow(ctx, `
		INSERT INTO doctor_schedules (id, doctor_id, day_of_week, start_time, end_time, service_type_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, doctor_id, day_of_week, start_time, end_time, service_type_id, is_active, created_at, updated_at
	`, t.ID, t.DoctorID, t.DayOfWeek, todToPG(t.StartTime), todToPG(t.EndTime), t.ServiceTypeID, t.IsActive).Scan(
		&out.ID, &out.DoctorID, &out.DayOfWeek, &start, &end, &out.ServiceTypeID, &out.IsActive, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule template: %w", err)
	}
	out.StartTime = todFromPG(start)
	out.EndTime = todFromPG(end)
	return &out, nil
}

func (r *PgRepository) ListActiveTemplates(ctx context.Context, doctorID uuid.UUID, serviceTypeID *uuid.UUID) ([]ScheduleTemplateDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.doctor_id, s.day_of_week, s.start_time, s.end_time, s.service_type_id, s.is_active, s.created_at, s.updated_at,
		       st.id, st.name, st.duration_minutes, st.description, st.color, st.created_at, st.updated_at
		FROM doctor_schedules s
		JOIN service_types st ON s.service_type_id = st.id
		WHERE s.doctor_id = $1
		  AND s.is_active = true
		  AND ($2::uuid IS NULL OR s.service_type_id = $2)
		ORDER BY s.day_of_week, s.start_time
	`, doctorID, serviceTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleTemplateDetail
	for rows.Next() {
		var d ScheduleTemplateDetail
		var st ServiceType
		var start, end pgtype.Time
		err := rows.Scan(
			&d.ID, &d.DoctorID, &d.DayOfWeek, &start, &end, &d.ServiceTypeID, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
			&st.ID, &st.Name, &st.DurationMinutes, &st.Description, &st.Color, &st.CreatedAt, &st.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		d.StartTime = todFromPG(start)
		d.EndTime = todFromPG(end)
		d.ServiceType = &st
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeactivateScheduleTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctor_schedules
		SET is_active = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate schedule template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) ListBookedIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, fallback time.Duration) ([]BookedInterval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.start_at,
		       a.start_at + make_interval(mins => COALESCE(st.duration_minutes, $4))
		FROM appointments a
		LEFT JOIN service_types st ON a.service_type_id = st.id
		WHERE a.doctor_id = $1
		  AND a.status IN ('PENDING', 'CONFIRMED')
		  AND a.start_at >= $2
		  AND a.start_at <= $3
	`, doctorID, from, to, int(fallback.Minutes()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBookedIntervals(rows)
}

func scanBookedIntervals(rows pgx.Rows) ([]BookedInterval, error) {
	var result []BookedInterval
	for rows.Next() {
		var b BookedInterval
		if err := rows.Scan(&b.AppointmentID, &b.Start, &b.End); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateAppointmentExclusive(ctx context.Context, appt Appointment, end time.Time, fallback time.Duration, check ConflictCheck) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock every row that could conflict for this doctor. FOR UPDATE OF a
	// keeps the lock on the appointment rows only, not the joined types.
	rows, err := tx.Query(ctx, `
		SELECT a.id, a.start_at,
		       a.start_at + make_interval(mins => COALESCE(st.duration_minutes, $3))
		FROM appointments a
		LEFT JOIN service_types st ON a.service_type_id = st.id
		WHERE a.doctor_id = $1
		  AND a.status IN ('PENDING', 'CONFIRMED')
		  AND a.start_at < $2
		FOR UPDATE OF a
	`, appt.DoctorID, end, int(fallback.Minutes()))
	if err != nil {
		return nil, fmt.Errorf("lock conflicting appointments: %w", err)
	}
	existing, err := scanBookedIntervals(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scan conflicting appointments: %w", err)
	}

	if err := check(existing); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, service_type_id, start_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.ServiceTypeID, appt.StartAt, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) AppendAppointmentNotes(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET notes = CASE WHEN notes IS NULL OR notes = '' THEN $2
		            ELSE notes || E'\n' || $2 END,
		    updated_at = now()
		WHERE id = $1
	`, id, note)
	if err != nil {
		return fmt.Errorf("append appointment notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET calendar_event_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, eventID)
	if err != nil {
		return fmt.Errorf("set calendar event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// CancelStalePending cancels appointments that were never confirmed and whose
// start time has already passed. Cancelling frees the window for rebooking
// even though, by then, nobody usually wants it.
func (r *PgRepository) CancelStalePending(ctx context.Context, startedBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    notes = CASE WHEN notes IS NULL OR notes = '' THEN 'Auto-cancelled: never confirmed'
		            ELSE notes || E'\n' || 'Auto-cancelled: never confirmed' END,
		    updated_at = now()
		WHERE status = 'PENDING'
		  AND start_at < $1
	`, startedBefore)
	if err != nil {
		return 0, fmt.Errorf("cancel stale pending: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkNoShows flags confirmed appointments whose start time passed the grace
// window without being completed.
func (r *PgRepository) MarkNoShows(ctx context.Context, startedBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'NO_SHOW',
		    updated_at = now()
		WHERE status = 'CONFIRMED'
		  AND start_at < $1
	`, startedBefore)
	if err != nil {
		return 0, fmt.Errorf("mark no-shows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertInteraction(ctx context.Context, in Interaction) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO interactions (id, patient_id, appointment_id, message_from, message_to, message_body, detected_intent, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`, in.ID, in.PatientID, in.AppointmentID, in.MessageFrom, in.MessageTo, in.MessageBody, in.Intent, in.Confidence, nullableTime(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
