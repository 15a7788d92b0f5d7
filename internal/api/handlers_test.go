package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsalud/clinic-scheduler/internal/availability"
	"github.com/smartsalud/clinic-scheduler/internal/booking"
	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

type fakeBooking struct {
	createFn func(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string) (*clinic.Appointment, error)
	actionFn func(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
}

func (f *fakeBooking) CreateAppointment(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string) (*clinic.Appointment, error) {
	return f.createFn(ctx, patientID, doctorID, serviceTypeID, startAt, notes)
}

func (f *fakeBooking) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return f.actionFn(ctx, id)
}

func (f *fakeBooking) CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*clinic.Appointment, error) {
	return f.actionFn(ctx, id)
}

func (f *fakeBooking) CompleteAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return f.actionFn(ctx, id)
}

func (f *fakeBooking) MarkNoShow(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return f.actionFn(ctx, id)
}

func (f *fakeBooking) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart time.Time) (*clinic.Appointment, error) {
	return f.actionFn(ctx, id)
}

type fakeAvailability struct {
	slots []availability.Slot
	next  *availability.Slot
}

func (f *fakeAvailability) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, serviceTypeID *uuid.UUID) ([]availability.Slot, error) {
	return f.slots, nil
}

func (f *fakeAvailability) GetNextAvailableSlot(ctx context.Context, doctorID uuid.UUID, serviceTypeID *uuid.UUID, horizonDays int) (*availability.Slot, error) {
	return f.next, nil
}

func pendingAppointment() *clinic.Appointment {
	return &clinic.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		StartAt:   time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
		Status:    clinic.StatusPending,
	}
}

func TestCreateAppointmentHandler(t *testing.T) {
	created := pendingAppointment()
	svc := &fakeBooking{
		createFn: func(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string) (*clinic.Appointment, error) {
			assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), startAt.UTC())
			return created, nil
		},
	}

	body := `{
		"patient_id": "` + uuid.NewString() + `",
		"doctor_id": "` + uuid.NewString() + `",
		"service_type_id": "` + uuid.NewString() + `",
		"start_at": "2026-03-16T09:00:00Z"
	}`

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	createAppointmentHandler(svc)(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestCreateAppointmentHandlerValidation(t *testing.T) {
	svc := &fakeBooking{}

	tests := []struct {
		name string
		body string
	}{
		{"garbage body", `{not json`},
		{"bad patient id", `{"patient_id":"nope","doctor_id":"` + uuid.NewString() + `","service_type_id":"` + uuid.NewString() + `","start_at":"2026-03-16T09:00:00Z"}`},
		{"bad start_at", `{"patient_id":"` + uuid.NewString() + `","doctor_id":"` + uuid.NewString() + `","service_type_id":"` + uuid.NewString() + `","start_at":"tomorrow"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			createAppointmentHandler(svc)(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateAppointmentHandlerConflict(t *testing.T) {
	svc := &fakeBooking{
		createFn: func(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string) (*clinic.Appointment, error) {
			return nil, booking.ErrSlotNotAvailable
		},
	}

	body := `{"patient_id":"` + uuid.NewString() + `","doctor_id":"` + uuid.NewString() + `","service_type_id":"` + uuid.NewString() + `","start_at":"2026-03-16T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	createAppointmentHandler(svc)(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_not_available", resp.Error)
}

func TestCreateAppointmentHandlerUnknownPatient(t *testing.T) {
	svc := &fakeBooking{
		createFn: func(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string) (*clinic.Appointment, error) {
			return nil, clinic.ErrPatientNotFound
		},
	}

	body := `{"patient_id":"` + uuid.NewString() + `","doctor_id":"` + uuid.NewString() + `","service_type_id":"` + uuid.NewString() + `","start_at":"2026-03-16T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	createAppointmentHandler(svc)(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newAvailabilityRouter(svc AvailabilityService) http.Handler {
	r := chi.NewRouter()
	r.Get("/doctors/{id}/availability", getAvailabilityHandler(svc))
	r.Get("/doctors/{id}/availability/next", getNextAvailabilityHandler(svc, 30))
	return r
}

func TestGetAvailabilityHandler(t *testing.T) {
	doctorID := uuid.New()
	svc := &fakeAvailability{
		slots: []availability.Slot{
			{
				DoctorID:        doctorID,
				ServiceTypeID:   uuid.New(),
				ServiceTypeName: "Salud Mental",
				DurationMinutes: 40,
				Start:           time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
				End:             time.Date(2026, 3, 16, 9, 40, 0, 0, time.UTC),
			},
		},
	}
	router := newAvailabilityRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/availability?from=2026-03-16&to=2026-03-20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Slots []availability.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 1)
	assert.Equal(t, "Salud Mental", resp.Slots[0].ServiceTypeName)
}

func TestGetAvailabilityHandlerEmptyIsArray(t *testing.T) {
	router := newAvailabilityRouter(&fakeAvailability{})

	req := httptest.NewRequest(http.MethodGet, "/doctors/"+uuid.NewString()+"/availability?from=2026-03-16&to=2026-03-20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slots":[]`)
}

func TestGetAvailabilityHandlerBadRange(t *testing.T) {
	router := newAvailabilityRouter(&fakeAvailability{})

	// to precedes from
	req := httptest.NewRequest(http.MethodGet, "/doctors/"+uuid.NewString()+"/availability?from=2026-03-20&to=2026-03-16", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// missing dates
	req = httptest.NewRequest(http.MethodGet, "/doctors/"+uuid.NewString()+"/availability", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNextAvailabilityHandlerNoSlot(t *testing.T) {
	router := newAvailabilityRouter(&fakeAvailability{next: nil})

	req := httptest.NewRequest(http.MethodGet, "/doctors/"+uuid.NewString()+"/availability/next", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no_slot_available", resp.Error)
}

func TestAppointmentActionHandlerInvalidTransition(t *testing.T) {
	svc := &fakeBooking{
		actionFn: func(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
			return nil, booking.ErrInvalidTransition
		},
	}

	r := chi.NewRouter()
	r.Post("/appointments/{id}/confirm", appointmentActionHandler(svc.ConfirmAppointment))

	req := httptest.NewRequest(http.MethodPost, "/appointments/"+uuid.NewString()+"/confirm", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelAppointmentHandlerOptionalBody(t *testing.T) {
	cancelled := pendingAppointment()
	cancelled.Status = clinic.StatusCancelled
	svc := &fakeBooking{
		actionFn: func(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
			return cancelled, nil
		},
	}

	r := chi.NewRouter()
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))

	// No body at all.
	req := httptest.NewRequest(http.MethodPost, "/appointments/"+cancelled.ID.String()+"/cancel", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// With a reason.
	req = httptest.NewRequest(http.MethodPost, "/appointments/"+cancelled.ID.String()+"/cancel", strings.NewReader(`{"reason":"sick"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
