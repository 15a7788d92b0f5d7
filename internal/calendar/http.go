package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smartsalud/clinic-scheduler/internal/clinic"
)

// HTTPSync talks to the calendar bridge, the small service that owns the
// provider credentials and translates these calls into provider API calls.
// Status is carried as the provider color id.
type HTTPSync struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSync(baseURL string, timeout time.Duration) *HTTPSync {
	return &HTTPSync{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type eventPayload struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	ColorID     string `json:"color_id"`
	CalendarID  string `json:"calendar_id,omitempty"`
}

func (s *HTTPSync) CreateEvent(ctx context.Context, ev Event) (string, error) {
	payload := eventPayload{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       ev.Start.Format(time.RFC3339),
		End:         ev.End.Format(time.RFC3339),
		ColorID:     string(ColorForStatus(ev.Status)),
		CalendarID:  ev.CalendarID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal calendar event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create calendar event: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode calendar event response: %w", err)
	}
	return out.EventID, nil
}

func (s *HTTPSync) UpdateEventStatus(ctx context.Context, eventID string, status clinic.AppointmentStatus) error {
	body, err := json.Marshal(map[string]string{
		"color_id": string(ColorForStatus(status)),
	})
	if err != nil {
		return fmt.Errorf("marshal calendar update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.baseURL+"/events/"+eventID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrEventNotFound
	default:
		return fmt.Errorf("update calendar event: unexpected status %d", resp.StatusCode)
	}
}

func (s *HTTPSync) DeleteEvent(ctx context.Context, eventID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/events/"+eventID, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrEventNotFound
	default:
		return fmt.Errorf("delete calendar event: unexpected status %d", resp.StatusCode)
	}
}
