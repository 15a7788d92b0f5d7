// Package calendar defines the external calendar collaborator consumed by the
// booking engine. The provider's API semantics are opaque here: every call is
// best-effort from the caller's perspective and bounded by the caller's
// context deadline.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

// ErrEventNotFound is returned by DeleteEvent/UpdateEventStatus when the
// provider no longer has the event. Callers treat it as already satisfied.
var ErrEventNotFound = errors.New("calendar event not found")

type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Status      clinic.AppointmentStatus
	CalendarID  string // per-doctor calendar, empty means provider default
}

// Sync mirrors appointment state to an external calendar. CreateEvent returns
// the provider's event id (the sync token stored on the appointment).
type Sync interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	UpdateEventStatus(ctx context.Context, eventID string, status clinic.AppointmentStatus) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// NoopSync is used when calendar sync is disabled. Creates report no token.
type NoopSync struct{}

func (NoopSync) CreateEvent(context.Context, Event) (string, error) { return "", nil }

func (NoopSync) UpdateEventStatus(context.Context, string, clinic.AppointmentStatus) error {
	return nil
}

func (NoopSync) DeleteEvent(context.Context, string) error { return nil }
