package clinic

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "PENDING"
	StatusConfirmed   AppointmentStatus = "CONFIRMED"
	StatusCancelled   AppointmentStatus = "CANCELLED"
	StatusCompleted   AppointmentStatus = "COMPLETED"
	StatusNoShow      AppointmentStatus = "NO_SHOW"
	StatusRescheduled AppointmentStatus = "RESCHEDULED"
)

// Occupies reports whether an appointment in this status blocks its time
// window for availability and conflict checks.
func (s AppointmentStatus) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransitionTo encodes the appointment lifecycle:
// PENDING -> CONFIRMED | CANCELLED | RESCHEDULED
// CONFIRMED -> CANCELLED | COMPLETED | NO_SHOW
// everything else is terminal.
func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled || to == StatusRescheduled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted || to == StatusNoShow
	case StatusCancelled, StatusCompleted, StatusNoShow, StatusRescheduled:
		return false
	default:
		return false
	}
}

// TimeOfDay is a wall-clock time with no date, stored as minutes since
// midnight. Schedule templates use it for their start and end blocks.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" wall-clock input. Minutes must be two
// digits and trailing text is rejected.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// At anchors the time of day onto a calendar date.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// Weekday maps time.Weekday to the Monday-origin day-of-week used by
// schedule templates (0=Monday ... 6=Sunday).
func Weekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

type Patient struct {
	ID        uuid.UUID
	RUT       string // national id, unique
	Phone     string // unique contact handle
	FirstName string
	LastName  string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Doctor struct {
	ID            uuid.UUID
	FirstName     string
	LastName      string
	Sector        *string
	Specialty     *string
	CalendarEmail *string // nil disables external calendar sync
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

type ServiceType struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
	Description     *string
	Color           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (st *ServiceType) Duration() time.Duration {
	return time.Duration(st.DurationMinutes) * time.Minute
}

// ScheduleTemplate is a recurring weekly availability block for one doctor.
// Templates are soft-deactivated, never deleted, so historical slot
// generation stays explainable.
type ScheduleTemplate struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	DayOfWeek     int // 0=Monday ... 6=Sunday
	StartTime     TimeOfDay
	EndTime       TimeOfDay
	ServiceTypeID uuid.UUID
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScheduleTemplateDetail carries the template together with its service type,
// which the slot generator needs for naming and duration.
type ScheduleTemplateDetail struct {
	ScheduleTemplate
	ServiceType *ServiceType
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        *uuid.UUID // legacy rows may lack a doctor reference
	ServiceTypeID   *uuid.UUID
	StartAt         time.Time
	Status          AppointmentStatus
	CalendarEventID *string // external sync token, unique when present
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookedInterval is an occupied time window for one doctor, with the end
// instant already resolved from the service-type duration (or the configured
// fallback for rows without one).
type BookedInterval struct {
	AppointmentID uuid.UUID
	Start         time.Time
	End           time.Time
}

// Interaction is an append-only audit record of an inbound message and the
// outcome detected for it. The core only writes these.
type Interaction struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	AppointmentID *uuid.UUID
	MessageFrom   string
	MessageTo     string
	MessageBody   string
	Intent        *string
	Confidence    *int
	CreatedAt     time.Time
}
