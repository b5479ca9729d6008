package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/pkg/circuitbreaker"
)

// Config configures the HTTP calendar adapter.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type httpService struct {
	cfg    Config
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

// NewHTTPService builds a calendar adapter talking to the provider's REST
// API with a bounded per-call timeout.
func NewHTTPService(cfg Config, logger *zerolog.Logger) Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "calendar",
		MaxRequests: 10,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
	})

	return &httpService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cb:     cb,
		logger: logger,
	}
}

type eventRequest struct {
	ClinicID    int64  `json:"clinic_id"`
	Title       string `json:"title"`
	PatientName string `json:"patient_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Phone       string `json:"phone"`
	Status      string `json:"status,omitempty"`
}

type eventResponse struct {
	EventID string `json:"event_id"`
}

func (s *httpService) CreateEvent(ctx context.Context, event *Event) (string, error) {
	body := eventRequest{
		ClinicID:    event.ClinicID,
		Title:       event.Title,
		PatientName: event.PatientName,
		Date:        event.Date.Format(model.DateLayout),
		Time:        event.Time,
		Phone:       event.Phone,
	}

	var resp eventResponse
	err := s.do(ctx, http.MethodPost, "/v1/events", body, &resp)
	if err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (s *httpService) UpdateEvent(ctx context.Context, clinicID int64, eventID string, status string) error {
	body := eventRequest{ClinicID: clinicID, Status: status}
	return s.do(ctx, http.MethodPatch, "/v1/events/"+eventID, body, nil)
}

func (s *httpService) CancelEvent(ctx context.Context, clinicID int64, eventID string) error {
	body := eventRequest{ClinicID: clinicID, Status: "canceled"}
	return s.do(ctx, http.MethodPatch, "/v1/events/"+eventID, body, nil)
}

func (s *httpService) DeleteEvent(ctx context.Context, clinicID int64, eventID string) error {
	return s.do(ctx, http.MethodDelete, "/v1/events/"+eventID, nil, nil)
}

func (s *httpService) do(ctx context.Context, method, path string, body, out interface{}) error {
	return s.cb.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		var reqBody io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal calendar request: %w", err)
			}
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("failed to build calendar request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("calendar request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			s.logger.Warn().
				Int("status", resp.StatusCode).
				Str("path", path).
				Bytes("body", respBody).
				Msg("calendar provider returned an error")
			return fmt.Errorf("calendar provider returned %d", resp.StatusCode)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode calendar response: %w", err)
			}
		}
		return nil
	})
}
