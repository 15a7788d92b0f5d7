package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

// Slot is a concrete, dated, bookable time interval derived from a recurring
// schedule template. One template block maps to exactly one slot; blocks are
// not subdivided into duration-sized chunks.
type Slot struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	ServiceTypeID   uuid.UUID `json:"service_type_id"`
	ServiceTypeName string    `json:"service_type_name"`
	DurationMinutes int       `json:"duration_minutes"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ExpandTemplates walks every calendar date in [from, to] inclusive and emits
// one slot per active template matching that date's day of week. Templates
// whose weekday never occurs in the range contribute nothing; an empty
// template set yields an empty slot set.
func ExpandTemplates(templates []clinic.ScheduleTemplateDetail, from, to time.Time) []Slot {
	var slots []Slot

	for date := startOfDay(from); !date.After(to); date = date.AddDate(0, 0, 1) {
		weekday := clinic.Weekday(date)
		for _, t := range templates {
			if t.DayOfWeek != weekday {
				continue
			}
			slots = append(slots, Slot{
				DoctorID:        t.DoctorID,
				ServiceTypeID:   t.ServiceTypeID,
				ServiceTypeName: t.ServiceType.Name,
				DurationMinutes: t.ServiceType.DurationMinutes,
				Start:           t.StartTime.At(date),
				End:             t.EndTime.At(date),
			})
		}
	}

	return slots
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
