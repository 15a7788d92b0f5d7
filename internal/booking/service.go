package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartsalud/clinic-scheduler/internal/availability"
	"github.com/smartsalud/clinic-scheduler/internal/calendar"
	"github.com/smartsalud/clinic-scheduler/internal/clinic"
	"github.com/smartsalud/clinic-scheduler/internal/metrics"
	redisclient "github.com/smartsalud/clinic-scheduler/internal/redis"
)

var (
	// ErrSlotNotAvailable is the expected, common outcome of losing the
	// overlap re-check: a rejected booking, not a system fault.
	ErrSlotNotAvailable = errors.New("slot is not available")

	// ErrInvalidTransition rejects confirm/cancel/complete calls on an
	// appointment whose current status disallows them.
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

// Config carries the tunables the engine needs.
type Config struct {
	// FallbackDuration sizes appointments without a service-type reference in
	// overlap checks. Defaults to 20 minutes; pending product confirmation.
	FallbackDuration time.Duration

	// CalendarTimeout bounds each best-effort external calendar call.
	CalendarTimeout time.Duration
}

// Service is the booking engine: it validates a requested reservation,
// re-checks overlap under a doctor-scoped lock, persists the reservation and
// mirrors it to the external calendar best-effort.
type Service struct {
	repo    clinic.Repository
	locker  redisclient.Locker
	cal     calendar.Sync
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.BookingMetrics
}

func NewService(repo clinic.Repository, locker redisclient.Locker, cal calendar.Sync, cfg Config, logger *zap.Logger, m *metrics.BookingMetrics) *Service {
	if cfg.FallbackDuration <= 0 {
		cfg.FallbackDuration = 20 * time.Minute
	}
	if cfg.CalendarTimeout <= 0 {
		cfg.CalendarTimeout = 5 * time.Second
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		cal:     cal,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// CreateAppointment books a slot for a patient. Availability as previously
// reported to the caller is only a snapshot, so the authoritative overlap
// check runs here, under the doctor lock, immediately before the insert.
// Exactly one of two concurrent attempts for overlapping windows succeeds.
func (s *Service) CreateAppointment(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string) (*clinic.Appointment, error) {
	return s.create(ctx, patientID, doctorID, serviceTypeID, startAt, notes, uuid.Nil)
}

// create is the checked booking path. ignore names an appointment whose
// window does not count as a conflict; reschedules pass the appointment being
// replaced so it can move within its own block.
func (s *Service) create(ctx context.Context, patientID, doctorID, serviceTypeID uuid.UUID, startAt time.Time, notes *string, ignore uuid.UUID) (*clinic.Appointment, error) {
	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, clinic.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetActiveDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, clinic.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	serviceType, err := s.repo.GetServiceTypeByID(ctx, serviceTypeID)
	if err != nil {
		if errors.Is(err, clinic.ErrServiceTypeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service type: %w", err)
	}

	endAt := startAt.Add(serviceType.Duration())

	appt := clinic.Appointment{
		PatientID:     patientID,
		DoctorID:      &doctorID,
		ServiceTypeID: &serviceTypeID,
		StartAt:       startAt,
		Notes:         notes,
	}

	var created *clinic.Appointment

	err = s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		var txErr error
		created, txErr = s.repo.CreateAppointmentExclusive(lockCtx, appt, endAt, s.cfg.FallbackDuration, func(existing []clinic.BookedInterval) error {
			for _, b := range existing {
				if b.AppointmentID == ignore {
					continue
				}
				if availability.Overlaps(startAt, endAt, b.Start, b.End) {
					return ErrSlotNotAvailable
				}
			}
			return nil
		})
		return txErr
	})
	if err != nil {
		if errors.Is(err, ErrSlotNotAvailable) {
			s.metrics.ObserveBooking("conflict")
			return nil, ErrSlotNotAvailable
		}
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	s.metrics.ObserveBooking("created")
	s.logger.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", doctorID.String()),
		zap.String("patient_id", patientID.String()),
		zap.Time("start_at", startAt),
	)

	// Calendar sync is fire-and-forget: a provider outage never rolls back
	// or delays the committed booking.
	s.syncCreate(ctx, created, patient, doctor, serviceType, endAt)

	return created, nil
}

// ConfirmAppointment moves a pending appointment to confirmed and refreshes
// the calendar event's status marker.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.Status.CanTransitionTo(clinic.StatusConfirmed) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, clinic.StatusConfirmed)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, clinic.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.syncStatus(ctx, updated)
	return updated, nil
}

// CancelAppointment cancels unless the appointment is already CANCELLED or
// COMPLETED, appends the reason to its notes and removes the calendar event.
// A provider 404 on delete counts as already satisfied.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*clinic.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.Status.CanTransitionTo(clinic.StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, clinic.StatusCancelled)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, clinic.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if reason != nil && *reason != "" {
		if err := s.repo.AppendAppointmentNotes(ctx, id, "Cancelled: "+*reason); err != nil {
			s.logger.Warn("append cancel reason failed",
				zap.String("appointment_id", id.String()),
				zap.Error(err),
			)
		}
	}

	s.syncDelete(ctx, updated)
	return updated, nil
}

// CompleteAppointment marks a confirmed appointment as attended.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return s.transition(ctx, id, clinic.StatusCompleted)
}

// MarkNoShow marks a confirmed appointment the patient did not attend.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return s.transition(ctx, id, clinic.StatusNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to clinic.AppointmentStatus) (*clinic.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	s.syncStatus(ctx, updated)
	return updated, nil
}

// RescheduleAppointment books a replacement at newStart through the same
// checked path and only then retires the original as RESCHEDULED. A rejected
// replacement leaves the original untouched. The original's own window is
// excluded from the conflict check, so an appointment can move within its
// current block.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart time.Time) (*clinic.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.Status.CanTransitionTo(clinic.StatusRescheduled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, clinic.StatusRescheduled)
	}
	if appt.DoctorID == nil || appt.ServiceTypeID == nil {
		return nil, fmt.Errorf("%w: legacy appointment lacks doctor or service type", ErrInvalidTransition)
	}

	replacement, err := s.create(ctx, appt.PatientID, *appt.DoctorID, *appt.ServiceTypeID, newStart, appt.Notes, appt.ID)
	if err != nil {
		return nil, err
	}

	retired, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, clinic.StatusRescheduled)
	if err != nil {
		// The original changed status mid-flight; release the replacement
		// window instead of holding both.
		if _, cerr := s.repo.UpdateAppointmentStatus(ctx, replacement.ID, clinic.StatusPending, clinic.StatusCancelled); cerr != nil {
			s.logger.Error("release replacement appointment failed",
				zap.String("appointment_id", replacement.ID.String()),
				zap.Error(cerr),
			)
		}
		s.syncDelete(ctx, replacement)
		return nil, fmt.Errorf("retire appointment: %w", err)
	}
	s.syncDelete(ctx, retired)

	return replacement, nil
}

// Calendar sync helpers. Failures are logged and counted, never propagated.

func (s *Service) syncCreate(ctx context.Context, appt *clinic.Appointment, patient *clinic.Patient, doctor *clinic.Doctor, serviceType *clinic.ServiceType, endAt time.Time) {
	if doctor.CalendarEmail == nil {
		return
	}

	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CalendarTimeout)
	defer cancel()

	eventID, err := s.cal.CreateEvent(syncCtx, calendar.Event{
		Summary:     "Cita: " + patient.FullName(),
		Description: fmt.Sprintf("Tipo: %s\nPaciente: %s\nRUT: %s\nTeléfono: %s", serviceType.Name, patient.FullName(), patient.RUT, patient.Phone),
		Start:       appt.StartAt,
		End:         endAt,
		Status:      appt.Status,
		CalendarID:  *doctor.CalendarEmail,
	})
	if err != nil {
		s.metrics.ObserveSyncFailure()
		s.logger.Error("calendar sync create failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
		return
	}
	if eventID == "" {
		return
	}

	if err := s.repo.SetCalendarEventID(ctx, appt.ID, eventID); err != nil {
		s.logger.Error("store calendar event id failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
		return
	}
	appt.CalendarEventID = &eventID
}

func (s *Service) syncStatus(ctx context.Context, appt *clinic.Appointment) {
	if appt.CalendarEventID == nil {
		return
	}

	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CalendarTimeout)
	defer cancel()

	err := s.cal.UpdateEventStatus(syncCtx, *appt.CalendarEventID, appt.Status)
	if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		s.metrics.ObserveSyncFailure()
		s.logger.Error("calendar sync update failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("event_id", *appt.CalendarEventID),
			zap.Error(err),
		)
	}
}

func (s *Service) syncDelete(ctx context.Context, appt *clinic.Appointment) {
	if appt.CalendarEventID == nil {
		return
	}

	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CalendarTimeout)
	defer cancel()

	err := s.cal.DeleteEvent(syncCtx, *appt.CalendarEventID)
	if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		s.metrics.ObserveSyncFailure()
		s.logger.Error("calendar sync delete failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("event_id", *appt.CalendarEventID),
			zap.Error(err),
		)
	}
}
