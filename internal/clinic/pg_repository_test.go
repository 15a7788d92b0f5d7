package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func appointmentRow(mock pgxmock.PgxPoolIface, a Appointment) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "patient_id", "doctor_id", "service_type_id", "start_at",
		"status", "calendar_event_id", "notes", "created_at", "updated_at",
	}).AddRow(a.ID, a.PatientID, a.DoctorID, a.ServiceTypeID, a.StartAt,
		a.Status, a.CalendarEventID, a.Notes, a.CreatedAt, a.UpdatedAt)
}

func TestTimeOfDayPGRoundTrip(t *testing.T) {
	tod := NewTimeOfDay(14, 20)
	pg := todToPG(tod)
	assert.True(t, pg.Valid)
	assert.Equal(t, int64(14*3600+20*60)*1_000_000, pg.Microseconds)
	assert.Equal(t, tod, todFromPG(pg))
}

func TestGetActiveDoctorByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, first_name, last_name, sector, specialty, calendar_email, is_active").
		WithArgs(id).
		WillReturnRows(mock.NewRows([]string{
			"id", "first_name", "last_name", "sector", "specialty",
			"calendar_email", "is_active", "created_at", "updated_at",
		}))

	_, err := repo.GetActiveDoctorByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentExclusiveInsertsWhenClear(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	appt := Appointment{
		PatientID:     uuid.New(),
		DoctorID:      &doctorID,
		ServiceTypeID: ptr(uuid.New()),
		StartAt:       time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
	}
	end := appt.StartAt.Add(20 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT a.id, a.start_at").
		WithArgs(appt.DoctorID, end, 20).
		WillReturnRows(mock.NewRows([]string{"id", "start_at", "end_at"}))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), appt.PatientID, appt.DoctorID, appt.ServiceTypeID, appt.StartAt, (*string)(nil)).
		WillReturnRows(appointmentRow(mock, Appointment{
			ID:            uuid.New(),
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
			ServiceTypeID: appt.ServiceTypeID,
			StartAt:       appt.StartAt,
			Status:        StatusPending,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}))
	mock.ExpectCommit()

	created, err := repo.CreateAppointmentExclusive(context.Background(), appt, end, 20*time.Minute, func(existing []BookedInterval) error {
		assert.Empty(t, existing)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentExclusiveRejectedByCheck(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	appt := Appointment{
		PatientID: uuid.New(),
		DoctorID:  &doctorID,
		StartAt:   time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
	}
	end := appt.StartAt.Add(20 * time.Minute)
	existingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT a.id, a.start_at").
		WithArgs(appt.DoctorID, end, 20).
		WillReturnRows(mock.NewRows([]string{"id", "start_at", "end_at"}).
			AddRow(existingID, appt.StartAt, end))
	mock.ExpectRollback()

	rejection := assert.AnError
	_, err := repo.CreateAppointmentExclusive(context.Background(), appt, end, 20*time.Minute, func(existing []BookedInterval) error {
		require.Len(t, existing, 1)
		assert.Equal(t, existingID, existing[0].AppointmentID)
		return rejection
	})
	assert.ErrorIs(t, err, rejection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusCAS(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusConfirmed, StatusPending).
		WillReturnRows(appointmentRow(mock, Appointment{
			ID:        id,
			PatientID: uuid.New(),
			StartAt:   time.Now(),
			Status:    StatusConfirmed,
		}))

	updated, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusLostRace(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	// No row matches id+status: someone changed the status first.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusConfirmed, StatusPending).
		WillReturnRows(mock.NewRows([]string{
			"id", "patient_id", "doctor_id", "service_type_id", "start_at",
			"status", "calendar_event_id", "notes", "created_at", "updated_at",
		}))

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAppointmentNotesMissingRow(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "note").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.AppendAppointmentNotes(context.Background(), id, "note")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookedIntervals(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	from := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	apptID := uuid.New()
	start := from.Add(9 * time.Hour)

	mock.ExpectQuery("SELECT a.id, a.start_at").
		WithArgs(doctorID, from, to, 20).
		WillReturnRows(mock.NewRows([]string{"id", "start_at", "end_at"}).
			AddRow(apptID, start, start.Add(20*time.Minute)))

	intervals, err := repo.ListBookedIntervals(context.Background(), doctorID, from, to, 20*time.Minute)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, apptID, intervals[0].AppointmentID)
	assert.Equal(t, start.Add(20*time.Minute), intervals[0].End)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveTemplates(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	stID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM doctor_schedules s").
		WithArgs(doctorID, (*uuid.UUID)(nil)).
		WillReturnRows(mock.NewRows([]string{
			"id", "doctor_id", "day_of_week", "start_time", "end_time",
			"service_type_id", "is_active", "created_at", "updated_at",
			"st_id", "name", "duration_minutes", "description", "color",
			"st_created_at", "st_updated_at",
		}).AddRow(
			uuid.New(), doctorID, 0, todToPG(NewTimeOfDay(9, 0)), todToPG(NewTimeOfDay(12, 0)),
			stID, true, now, now,
			stID, "Consulta de Morbilidad", 20, nil, nil, now, now,
		))

	templates, err := repo.ListActiveTemplates(context.Background(), doctorID, nil)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, NewTimeOfDay(9, 0), templates[0].StartTime)
	assert.Equal(t, NewTimeOfDay(12, 0), templates[0].EndTime)
	require.NotNil(t, templates[0].ServiceType)
	assert.Equal(t, 20, templates[0].ServiceType.DurationMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusSweeps(t *testing.T) {
	mock, repo := newMockRepo(t)
	cutoff := time.Now()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.CancelStalePending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExec("UPDATE appointments").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err = repo.MarkNoShows(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T { return &v }
