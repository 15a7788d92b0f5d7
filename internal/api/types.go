package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

type CreateAppointmentRequest struct {
	PatientID     string  `json:"patient_id"`
	DoctorID      string  `json:"doctor_id"`
	ServiceTypeID string  `json:"service_type_id"`
	StartAt       string  `json:"start_at"` // RFC 3339
	Notes         *string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type RescheduleAppointmentRequest struct {
	StartAt string `json:"start_at"` // RFC 3339
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        *uuid.UUID `json:"doctor_id,omitempty"`
	ServiceTypeID   *uuid.UUID `json:"service_type_id,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	Status          string     `json:"status"`
	CalendarEventID *string    `json:"calendar_event_id,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		ServiceTypeID:   a.ServiceTypeID,
		StartAt:         a.StartAt,
		Status:          string(a.Status),
		CalendarEventID: a.CalendarEventID,
		Notes:           a.Notes,
	}
}

type CreatePatientRequest struct {
	RUT       string  `json:"rut"`
	Phone     string  `json:"phone"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email,omitempty"`
}

type CreateDoctorRequest struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Sector        *string `json:"sector,omitempty"`
	Specialty     *string `json:"specialty,omitempty"`
	CalendarEmail *string `json:"calendar_email,omitempty"`
}

type CreateServiceTypeRequest struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Description     *string `json:"description,omitempty"`
	Color           *string `json:"color,omitempty"`
}

type CreateScheduleRequest struct {
	DayOfWeek     int    `json:"day_of_week"` // 0=Monday ... 6=Sunday
	StartTime     string `json:"start_time"`  // HH:MM
	EndTime       string `json:"end_time"`    // HH:MM
	ServiceTypeID string `json:"service_type_id"`
}

type CreateInteractionRequest struct {
	PatientID     string  `json:"patient_id"`
	AppointmentID *string `json:"appointment_id,omitempty"`
	MessageFrom   string  `json:"message_from"`
	MessageTo     string  `json:"message_to"`
	MessageBody   string  `json:"message_body"`
	Intent        *string `json:"detected_intent,omitempty"`
	Confidence    *int    `json:"confidence_score,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
