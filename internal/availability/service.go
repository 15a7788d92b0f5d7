package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
	"github.com/smartsalud/clinic-scheduler/internal/metrics"
)

// Service computes bookable slots: recurring templates expanded over a date
// range, minus the occupied windows from the booked-interval index. Read-only;
// safe for any number of concurrent callers.
type Service struct {
	repo             clinic.Repository
	clock            clinic.Clock
	fallbackDuration time.Duration
	logger           *zap.Logger
	metrics          *metrics.BookingMetrics
}

func NewService(repo clinic.Repository, clock clinic.Clock, fallbackDuration time.Duration, logger *zap.Logger, m *metrics.BookingMetrics) *Service {
	return &Service{
		repo:             repo,
		clock:            clock,
		fallbackDuration: fallbackDuration,
		logger:           logger,
		metrics:          m,
	}
}

// GetAvailableSlots returns the doctor's free slots in [from, to] inclusive,
// optionally filtered by service type, sorted ascending by start instant.
// An unknown or inactive doctor yields an empty result, not an error.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, serviceTypeID *uuid.UUID) ([]Slot, error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveAvailabilityLatency(time.Since(started).Seconds())
	}()

	if _, err := s.repo.GetActiveDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, clinic.ErrDoctorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	templates, err := s.repo.ListActiveTemplates(ctx, doctorID, serviceTypeID)
	if err != nil {
		return nil, fmt.Errorf("load schedule templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, nil
	}

	potential := ExpandTemplates(templates, from, to)

	booked, err := s.repo.ListBookedIntervals(ctx, doctorID, startOfDay(from), endOfDay(to), s.fallbackDuration)
	if err != nil {
		return nil, fmt.Errorf("load booked intervals: %w", err)
	}

	free := subtract(potential, booked)

	s.logger.Debug("availability computed",
		zap.String("doctor_id", doctorID.String()),
		zap.Int("potential", len(potential)),
		zap.Int("booked", len(booked)),
		zap.Int("free", len(free)),
	)

	sort.Slice(free, func(i, j int) bool {
		if !free[i].Start.Equal(free[j].Start) {
			return free[i].Start.Before(free[j].Start)
		}
		// Stable order for templates sharing a start instant.
		return free[i].ServiceTypeID.String() < free[j].ServiceTypeID.String()
	})

	return free, nil
}

// GetNextAvailableSlot searches [today, today+horizonDays] and returns the
// earliest slot strictly after the current instant, or nil when none exists.
func (s *Service) GetNextAvailableSlot(ctx context.Context, doctorID uuid.UUID, serviceTypeID *uuid.UUID, horizonDays int) (*Slot, error) {
	now := s.clock.Now()
	from := startOfDay(now)
	to := from.AddDate(0, 0, horizonDays)

	slots, err := s.GetAvailableSlots(ctx, doctorID, from, to, serviceTypeID)
	if err != nil {
		return nil, err
	}

	for _, slot := range slots {
		if slot.Start.After(now) {
			found := slot
			return &found, nil
		}
	}
	return nil, nil
}

// GetAvailableSlotsForDoctors merges availability across several doctors,
// capped at limit slots. Used by the clinic dashboard.
func (s *Service) GetAvailableSlotsForDoctors(ctx context.Context, doctorIDs []uuid.UUID, from, to time.Time, serviceTypeID *uuid.UUID, limit int) ([]Slot, error) {
	var all []Slot
	for _, id := range doctorIDs {
		slots, err := s.GetAvailableSlots(ctx, id, from, to, serviceTypeID)
		if err != nil {
			return nil, err
		}
		all = append(all, slots...)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		if all[i].DoctorID != all[j].DoctorID {
			return all[i].DoctorID.String() < all[j].DoctorID.String()
		}
		return all[i].ServiceTypeID.String() < all[j].ServiceTypeID.String()
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// subtract drops every potential slot that overlaps a booked interval.
func subtract(potential []Slot, booked []clinic.BookedInterval) []Slot {
	var free []Slot
	for _, slot := range potential {
		occupied := false
		for _, b := range booked {
			if Overlaps(slot.Start, slot.End, b.Start, b.End) {
				occupied = true
				break
			}
		}
		if !occupied {
			free = append(free, slot)
		}
	}
	return free
}
