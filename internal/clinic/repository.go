package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrServiceTypeNotFound = errors.New("service type not found")
	ErrTemplateNotFound    = errors.New("schedule template not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ConflictCheck inspects the doctor's locked active appointments and returns
// an error when the candidate booking must be rejected. It runs inside the
// booking transaction, after the rows have been locked.
type ConflictCheck func(existing []BookedInterval) error

// Repository contains all DB interactions needed by the services.
type Repository interface {
	// Patients
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error

	// Doctors
	CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetActiveDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListActiveDoctors(ctx context.Context) ([]Doctor, error)

	// Service types
	CreateServiceType(ctx context.Context, st ServiceType) (*ServiceType, error)
	GetServiceTypeByID(ctx context.Context, id uuid.UUID) (*ServiceType, error)
	ListServiceTypes(ctx context.Context) ([]ServiceType, error)

	// Schedule templates
	CreateScheduleTemplate(ctx context.Context, t ScheduleTemplate) (*ScheduleTemplate, error)
	ListActiveTemplates(ctx context.Context, doctorID uuid.UUID, serviceTypeID *uuid.UUID) ([]ScheduleTemplateDetail, error)
	DeactivateScheduleTemplate(ctx context.Context, id uuid.UUID) error

	// Booked-interval index: occupied windows for a doctor whose start falls
	// within [from, to], duration resolved with fallback for legacy rows.
	ListBookedIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, fallback time.Duration) ([]BookedInterval, error)

	// CreateAppointmentExclusive atomically re-checks and inserts: inside one
	// transaction it locks the doctor's PENDING/CONFIRMED appointments
	// starting before `end`, passes their resolved intervals to check, and
	// inserts appt as PENDING only when check returns nil.
	CreateAppointmentExclusive(ctx context.Context, appt Appointment, end time.Time, fallback time.Duration, check ConflictCheck) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// UpdateAppointmentStatus is a compare-and-swap: the row is updated only
	// when its current status equals from. ErrAppointmentNotFound signals a
	// lost race or a missing row.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	AppendAppointmentNotes(ctx context.Context, id uuid.UUID, note string) error
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error

	// Status sweeps, run by cmd/status-worker. Both return the number of
	// rows transitioned.
	CancelStalePending(ctx context.Context, startedBefore time.Time) (int64, error)
	MarkNoShows(ctx context.Context, startedBefore time.Time) (int64, error)

	// Audit sink
	InsertInteraction(ctx context.Context, in Interaction) error
}
