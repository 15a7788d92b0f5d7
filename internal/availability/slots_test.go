package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	tests := []struct {
		name         string
		aStart, aEnd int
		bStart, bEnd int
		want         bool
	}{
		{"identical", 0, 30, 0, 30, true},
		{"contained", 0, 60, 10, 20, true},
		{"partial front", 0, 30, 20, 50, true},
		{"partial back", 20, 50, 0, 30, true},
		{"touching end-to-start", 0, 30, 30, 60, false},
		{"touching start-to-end", 30, 60, 0, 30, false},
		{"disjoint", 0, 10, 40, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(at(tt.aStart), at(tt.aEnd), at(tt.bStart), at(tt.bEnd))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandTemplates(t *testing.T) {
	doctorID := uuid.New()
	st := &clinic.ServiceType{ID: uuid.New(), Name: "Consulta de Morbilidad", DurationMinutes: 20}

	mondayMorning := clinic.ScheduleTemplateDetail{
		ScheduleTemplate: clinic.ScheduleTemplate{
			ID:            uuid.New(),
			DoctorID:      doctorID,
			DayOfWeek:     0,
			StartTime:     clinic.NewTimeOfDay(9, 0),
			EndTime:       clinic.NewTimeOfDay(12, 0),
			ServiceTypeID: st.ID,
			IsActive:      true,
		},
		ServiceType: st,
	}
	fridayAfternoon := clinic.ScheduleTemplateDetail{
		ScheduleTemplate: clinic.ScheduleTemplate{
			ID:            uuid.New(),
			DoctorID:      doctorID,
			DayOfWeek:     4,
			StartTime:     clinic.NewTimeOfDay(14, 0),
			EndTime:       clinic.NewTimeOfDay(17, 0),
			ServiceTypeID: st.ID,
			IsActive:      true,
		},
		ServiceType: st,
	}

	// Two full weeks starting Monday 2026-03-16.
	from := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 13)

	slots := ExpandTemplates([]clinic.ScheduleTemplateDetail{mondayMorning, fridayAfternoon}, from, to)
	require.Len(t, slots, 4) // two Mondays, two Fridays

	assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC), slots[0].End)
	assert.Equal(t, time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC), slots[1].Start)
	assert.Equal(t, time.Date(2026, 3, 23, 9, 0, 0, 0, time.UTC), slots[2].Start)
	assert.Equal(t, time.Date(2026, 3, 27, 14, 0, 0, 0, time.UTC), slots[3].Start)

	for _, s := range slots {
		assert.Equal(t, doctorID, s.DoctorID)
		assert.Equal(t, st.ID, s.ServiceTypeID)
		assert.Equal(t, "Consulta de Morbilidad", s.ServiceTypeName)
		assert.Equal(t, 20, s.DurationMinutes)
	}
}

func TestExpandTemplatesWeekdayNotInRange(t *testing.T) {
	st := &clinic.ServiceType{ID: uuid.New(), Name: "Recetas", DurationMinutes: 30}
	sundayOnly := clinic.ScheduleTemplateDetail{
		ScheduleTemplate: clinic.ScheduleTemplate{
			DoctorID:      uuid.New(),
			DayOfWeek:     6,
			StartTime:     clinic.NewTimeOfDay(10, 0),
			EndTime:       clinic.NewTimeOfDay(12, 0),
			ServiceTypeID: st.ID,
		},
		ServiceType: st,
	}

	// Monday through Wednesday, no Sunday.
	from := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)

	slots := ExpandTemplates([]clinic.ScheduleTemplateDetail{sundayOnly}, from, to)
	assert.Empty(t, slots)
}

func TestExpandTemplatesEmpty(t *testing.T) {
	from := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, ExpandTemplates(nil, from, from.AddDate(0, 0, 7)))
}
