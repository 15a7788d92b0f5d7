package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

func TestHTTPSyncCreateEvent(t *testing.T) {
	var got eventPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"event_id": "evt-42"})
	}))
	defer srv.Close()

	sync := NewHTTPSync(srv.URL, time.Second)
	start := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)

	eventID, err := sync.CreateEvent(context.Background(), Event{
		Summary:    "Cita: Ana Rojas",
		Start:      start,
		End:        start.Add(20 * time.Minute),
		Status:     clinic.StatusPending,
		CalendarID: "dr.silva@clinic.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-42", eventID)

	assert.Equal(t, "Cita: Ana Rojas", got.Summary)
	assert.Equal(t, string(ColorBanana), got.ColorID)
	assert.Equal(t, "dr.silva@clinic.example", got.CalendarID)
	assert.Equal(t, start.Format(time.RFC3339), got.Start)
}

func TestHTTPSyncUpdateEventStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/events/evt-42", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, string(ColorBasil), body["color_id"])

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sync := NewHTTPSync(srv.URL, time.Second)
	err := sync.UpdateEventStatus(context.Background(), "evt-42", clinic.StatusConfirmed)
	assert.NoError(t, err)
}

func TestHTTPSyncDeleteEventGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	sync := NewHTTPSync(srv.URL, time.Second)
	err := sync.DeleteEvent(context.Background(), "evt-42")
	assert.ErrorIs(t, err, ErrEventNotFound)

	err = sync.UpdateEventStatus(context.Background(), "evt-42", clinic.StatusCancelled)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestHTTPSyncCreateEventServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sync := NewHTTPSync(srv.URL, time.Second)
	_, err := sync.CreateEvent(context.Background(), Event{Status: clinic.StatusPending})
	assert.Error(t, err)
}
