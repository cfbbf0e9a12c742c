// Package client talks to the agenda REST API on behalf of the console views.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/domain/patient"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx response or a body with "success": false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each request. Zero means no timeout. The HTTP client
// is copied first, so a shared client passed to WithHTTPClient is left as is.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("api request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api request")

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if env.Success != nil && !*env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// ListAppointments fetches GET /api/agendamentos with the given filter.
func (c *Client) ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	q := url.Values{}
	if f.PatientID != "" {
		q.Set("paciente_id", f.PatientID)
	}
	if f.From != "" {
		q.Set("data_inicio", f.From)
	}
	if f.To != "" {
		q.Set("data_fim", f.To)
	}
	if f.Status != "" {
		q.Set("status", f.Status.Wire())
	}
	var resp appointment.ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/agendamentos", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Appointments, nil
}

func (c *Client) GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	var resp appointment.GetResponse
	if err := c.do(ctx, http.MethodGet, "/api/agendamentos/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Appointment == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "response carried no appointment"}
	}
	return resp.Appointment, nil
}

// UpdateAppointment sends a partial PUT; only non-nil fields of u are sent.
func (c *Client) UpdateAppointment(ctx context.Context, id string, u appointment.Update) error {
	return c.do(ctx, http.MethodPut, "/api/agendamentos/"+url.PathEscape(id), nil, u, nil)
}

func (c *Client) CreateAppointment(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	var resp appointment.MutationResponse
	if err := c.do(ctx, http.MethodPost, "/api/agendamentos", nil, a, &resp); err != nil {
		return nil, err
	}
	return resp.Appointment, nil
}

func (c *Client) ListPatients(ctx context.Context) ([]patient.Patient, error) {
	var resp patient.ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/pacientes", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Patients, nil
}

// NearTermPatients lists patients whose DPP falls within days.
func (c *Client) NearTermPatients(ctx context.Context, days int) ([]patient.NearTerm, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("dias", strconv.Itoa(days))
	}
	var resp patient.NearTermResponse
	if err := c.do(ctx, http.MethodGet, "/api/pacientes/proximas-do-parto", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Patients, nil
}
