package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartsalud/clinic-scheduler/internal/availability"
	"github.com/smartsalud/clinic-scheduler/internal/booking"
	"github.com/smartsalud/clinic-scheduler/internal/clinic"
	redisclient "github.com/smartsalud/clinic-scheduler/internal/redis"
)

// BookingService is the slice of the booking engine the handlers call.
type BookingService interface {
	CreateAppointment(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string) (*clinic.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*clinic.Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart time.Time) (*clinic.Appointment, error)
}

// AvailabilityService is the slice of the availability engine the handlers call.
type AvailabilityService interface {
	GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, serviceTypeID *uuid.UUID) ([]availability.Slot, error)
	GetNextAvailableSlot(ctx context.Context, doctorID uuid.UUID, serviceTypeID *uuid.UUID, horizonDays int) (*availability.Slot, error)
}

const dateLayout = "2006-01-02"

// Availability

func getAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "invalid_range", "to must not precede from")
			return
		}

		serviceTypeID, ok := optionalUUID(w, r.URL.Query().Get("service_type_id"), "service_type_id")
		if !ok {
			return
		}

		slots, err := svc.GetAvailableSlots(r.Context(), doctorID, from, to, serviceTypeID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if slots == nil {
			slots = []availability.Slot{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
	}
}

func getNextAvailabilityHandler(svc AvailabilityService, defaultHorizonDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		serviceTypeID, ok := optionalUUID(w, r.URL.Query().Get("service_type_id"), "service_type_id")
		if !ok {
			return
		}

		horizon := defaultHorizonDays
		if raw := r.URL.Query().Get("horizon_days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_horizon_days", "horizon_days must be a positive integer")
				return
			}
			horizon = n
		}

		slot, err := svc.GetNextAvailableSlot(r.Context(), doctorID, serviceTypeID, horizon)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if slot == nil {
			writeError(w, http.StatusNotFound, "no_slot_available", "no available slot within the horizon")
			return
		}

		writeJSON(w, http.StatusOK, slot)
	}
}

// Appointments

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		serviceTypeID, err := uuid.Parse(req.ServiceTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_type_id", "service_type_id must be a valid UUID")
			return
		}
		startAt, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at", "start_at must be RFC 3339")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), patientID, doctorID, serviceTypeID, startAt, req.Notes)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func appointmentActionHandler(action func(context.Context, uuid.UUID) (*clinic.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := action(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		appt, err := svc.CancelAppointment(r.Context(), id, req.Reason)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		newStart, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at", "start_at must be RFC 3339")
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), id, newStart)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := repo.GetAppointmentByID(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		limit := 20
		offset := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		if raw := r.URL.Query().Get("offset"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
				offset = n
			}
		}

		appts, err := repo.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
	}
}

// Patients

func createPatientHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.RUT == "" || req.Phone == "" || req.FirstName == "" || req.LastName == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "rut, phone, first_name and last_name are required")
			return
		}

		p, err := repo.CreatePatient(r.Context(), clinic.Patient{
			RUT:       req.RUT,
			Phone:     req.Phone,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, p)
	}
}

func getPatientHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		p, err := repo.GetPatientByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrPatientNotFound) {
				writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

// Doctors and schedules

func createDoctorHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.FirstName == "" || req.LastName == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "first_name and last_name are required")
			return
		}

		d, err := repo.CreateDoctor(r.Context(), clinic.Doctor{
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Sector:        req.Sector,
			Specialty:     req.Specialty,
			CalendarEmail: req.CalendarEmail,
			IsActive:      true,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, d)
	}
}

func listDoctorsHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := repo.ListActiveDoctors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if doctors == nil {
			doctors = []clinic.Doctor{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
	}
}

func getDoctorHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		d, err := repo.GetDoctorByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, d)
	}
}

func createScheduleHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		var req CreateScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
			writeError(w, http.StatusBadRequest, "invalid_day_of_week", "day_of_week must be 0 (Monday) through 6 (Sunday)")
			return
		}
		start, err := clinic.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}
		end, err := clinic.ParseTimeOfDay(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
			return
		}
		if start >= end {
			writeError(w, http.StatusBadRequest, "invalid_block", "start_time must precede end_time")
			return
		}
		serviceTypeID, err := uuid.Parse(req.ServiceTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_type_id", "service_type_id must be a valid UUID")
			return
		}

		t, err := repo.CreateScheduleTemplate(r.Context(), clinic.ScheduleTemplate{
			DoctorID:      doctorID,
			DayOfWeek:     req.DayOfWeek,
			StartTime:     start,
			EndTime:       end,
			ServiceTypeID: serviceTypeID,
			IsActive:      true,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, t)
	}
}

func deactivateScheduleHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_schedule_id", "scheduleID must be a valid UUID")
			return
		}

		if err := repo.DeactivateScheduleTemplate(r.Context(), id); err != nil {
			if errors.Is(err, clinic.ErrTemplateNotFound) {
				writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Service types

func createServiceTypeHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateServiceTypeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" || req.DurationMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "missing_fields", "name and a positive duration_minutes are required")
			return
		}

		st, err := repo.CreateServiceType(r.Context(), clinic.ServiceType{
			Name:            req.Name,
			DurationMinutes: req.DurationMinutes,
			Description:     req.Description,
			Color:           req.Color,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, st)
	}
}

func listServiceTypesHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := repo.ListServiceTypes(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if types == nil {
			types = []clinic.ServiceType{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"service_types": types})
	}
}

// Interactions (audit write sink)

func createInteractionHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateInteractionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		var appointmentID *uuid.UUID
		if req.AppointmentID != nil {
			id, err := uuid.Parse(*req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			appointmentID = &id
		}

		err = repo.InsertInteraction(r.Context(), clinic.Interaction{
			PatientID:     patientID,
			AppointmentID: appointmentID,
			MessageFrom:   req.MessageFrom,
			MessageTo:     req.MessageTo,
			MessageBody:   req.MessageBody,
			Intent:        req.Intent,
			Confidence:    req.Confidence,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusCreated)
	}
}

// Error mapping

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, clinic.ErrServiceTypeNotFound):
		writeError(w, http.StatusNotFound, "service_type_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "doctor_being_booked", "another booking for this doctor is in progress, retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// optionalUUID parses an optional query parameter; it writes a 400 and
// returns ok=false when the value is present but malformed.
func optionalUUID(w http.ResponseWriter, raw, name string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return nil, false
	}
	return &id, true
}
