package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	providerRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcom_requests_total",
			Help: "Total number of scheduling provider requests",
		},
		[]string{"operation", "status_code"},
	)
	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calcom_request_duration_seconds",
			Help:    "Duration of scheduling provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

const bookingsPageSize = 100

// Gateway is the set of provider operations the session orchestrator uses.
type Gateway interface {
	CreateSchedule(ctx context.Context, input ScheduleInput) (ID, error)
	CreateEventType(ctx context.Context, input EventTypeInput) (*EventType, error)
	UpdateEventType(ctx context.Context, id string, patch EventTypePatch) error
	DeleteEventType(ctx context.Context, id string) error
	ListBookings(ctx context.Context, eventIDs ...string) ([]Booking, error)
}

type Options struct {
	BaseURL    string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the Cal.com v2 API. It holds no per-request state and is safe
// for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	apiVersion string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		apiVersion: opts.APIVersion,
		httpClient: httpClient,
	}
}

func (c *Client) CreateSchedule(ctx context.Context, input ScheduleInput) (ID, error) {
	var schedule Schedule
	if err := c.do(ctx, "create_schedule", http.MethodPost, "/v2/schedules", nil, input, &schedule); err != nil {
		return "", err
	}
	if schedule.ID == "" {
		return "", fmt.Errorf("calcom create_schedule: %w", ErrMissingID)
	}
	return schedule.ID, nil
}

func (c *Client) CreateEventType(ctx context.Context, input EventTypeInput) (*EventType, error) {
	var eventType EventType
	if err := c.do(ctx, "create_event_type", http.MethodPost, "/v2/event-types", nil, input, &eventType); err != nil {
		return nil, err
	}
	if eventType.ID == "" {
		return nil, fmt.Errorf("calcom create_event_type: %w", ErrMissingID)
	}
	return &eventType, nil
}

func (c *Client) UpdateEventType(ctx context.Context, id string, patch EventTypePatch) error {
	path := "/v2/event-types/" + url.PathEscape(id)
	return c.do(ctx, "update_event_type", http.MethodPatch, path, nil, patch, nil)
}

func (c *Client) DeleteEventType(ctx context.Context, id string) error {
	path := "/v2/event-types/" + url.PathEscape(id)
	return c.do(ctx, "delete_event_type", http.MethodDelete, path, nil, nil, nil)
}

// ListBookings returns the bookings of one or more event types, following
// the provider's pages until the last one.
func (c *Client) ListBookings(ctx context.Context, eventIDs ...string) ([]Booking, error) {
	if len(eventIDs) == 0 {
		return []Booking{}, nil
	}

	bookings := []Booking{}
	for skip := 0; ; skip += bookingsPageSize {
		query := url.Values{}
		query.Set("take", strconv.Itoa(bookingsPageSize))
		query.Set("skip", strconv.Itoa(skip))
		query.Set("eventTypeIds", strings.Join(eventIDs, ","))

		env, err := c.send(ctx, "list_bookings", http.MethodGet, "/v2/bookings", query, nil)
		if err != nil {
			return nil, err
		}

		page, err := decodeBookings(env.Data)
		if err != nil {
			return nil, fmt.Errorf("calcom list_bookings: %w", err)
		}
		bookings = append(bookings, page...)

		if !env.hasMore(len(page), bookingsPageSize) {
			return bookings, nil
		}
	}
}

// decodeBookings accepts both response shapes the provider uses across API
// versions: a bare array and an object wrapping it under "bookings".
func decodeBookings(raw json.RawMessage) ([]Booking, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Booking{}, nil
	}

	if trimmed[0] == '[' {
		var bookings []Booking
		if err := json.Unmarshal(trimmed, &bookings); err != nil {
			return nil, fmt.Errorf("decode bookings: %w", err)
		}
		return bookings, nil
	}

	var wrapped struct {
		Bookings []Booking `json:"bookings"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	if wrapped.Bookings == nil {
		return []Booking{}, nil
	}
	return wrapped.Bookings, nil
}

// do sends a request and decodes the response's data field into out.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body any, out any) error {
	env, err := c.send(ctx, operation, method, path, query, body)
	if err != nil {
		return err
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("calcom %s: decode response data: %w", operation, err)
	}

	return nil
}

// send performs one provider call. Only a non-2xx reply becomes an *APIError;
// transport and serialization failures are returned as plain wrapped errors.
func (c *Client) send(ctx context.Context, operation, method, path string, query url.Values, body any) (*envelope, error) {
	start := time.Now()
	status := 0
	defer func() {
		providerRequestTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
		providerRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("calcom %s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("calcom %s: build request: %w", operation, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("cal-api-version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduling provider unreachable", slog.String("operation", operation), slog.String("error", err.Error()))
		return nil, fmt.Errorf("calcom %s: %w", operation, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("calcom %s: read response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(operation, resp.StatusCode, respBody)
		slog.ErrorContext(ctx, "Scheduling provider error",
			slog.String("operation", operation),
			slog.Int("status_code", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	env := &envelope{}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return env, nil
	}

	if err := json.Unmarshal(respBody, env); err != nil {
		return nil, fmt.Errorf("calcom %s: decode response: %w", operation, err)
	}

	return env, nil
}

// IsAPIError reports whether err carries a provider error and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
