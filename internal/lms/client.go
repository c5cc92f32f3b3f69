package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const coursesPageSize = 100

// APIError is returned when the learning platform replied with a non-2xx
// status.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lms: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type Course struct {
	CourseID       int64   `json:"course_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Status         string  `json:"status"`
	CompletedOn    *string `json:"completed_on"`
	LastAccessDate *string `json:"last_access_date"`
}

type Summary struct {
	TotalCourses    int `json:"total_courses"`
	TotalCompleted  int `json:"total_completed"`
	TotalInProgress int `json:"total_in_progress"`
}

type CourseSummary struct {
	Courses []Course `json:"courses"`
	Summary Summary  `json:"summary"`
}

type remoteCourse struct {
	IDCourse    int64  `json:"id_course"`
	UIDCourse   string `json:"uidCourse"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type remoteEnrollment struct {
	UIDCourse      string  `json:"uidCourse"`
	Status         string  `json:"status"`
	CompletedOn    *string `json:"completed_on"`
	LastAccessDate *string `json:"last_access_date"`
}

type itemsEnvelope[T any] struct {
	Data struct {
		Items []T `json:"items"`
	} `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// CourseSummary returns the courses a user is enrolled in together with
// completion totals. The caller's bearer token is forwarded as-is.
func (c *Client) CourseSummary(ctx context.Context, userID, bearer string) (*CourseSummary, error) {
	courseQuery := url.Values{}
	courseQuery.Set("page_size", fmt.Sprintf("%d", coursesPageSize))
	courseQuery.Set("sort_by", "create_date")
	courseQuery.Set("sort_by_direction", "desc")

	var courses itemsEnvelope[remoteCourse]
	if err := c.get(ctx, "/learn/v1/courses", courseQuery, bearer, &courses); err != nil {
		return nil, err
	}

	enrollmentQuery := url.Values{}
	enrollmentQuery.Set("id_user", userID)

	var enrollments itemsEnvelope[remoteEnrollment]
	if err := c.get(ctx, "/learn/v1/enrollments", enrollmentQuery, bearer, &enrollments); err != nil {
		return nil, err
	}

	return summarize(courses.Data.Items, enrollments.Data.Items), nil
}

func summarize(courses []remoteCourse, enrollments []remoteEnrollment) *CourseSummary {
	byCourse := make(map[string]remoteEnrollment, len(enrollments))
	for _, e := range enrollments {
		byCourse[e.UIDCourse] = e
	}

	result := &CourseSummary{Courses: []Course{}}
	for _, course := range courses {
		enrollment, ok := byCourse[course.UIDCourse]
		if !ok {
			continue
		}

		result.Courses = append(result.Courses, Course{
			CourseID:       course.IDCourse,
			Title:          course.Name,
			Description:    course.Description,
			Status:         enrollment.Status,
			CompletedOn:    nonEmpty(enrollment.CompletedOn),
			LastAccessDate: nonEmpty(enrollment.LastAccessDate),
		})
	}

	for _, course := range result.Courses {
		result.Summary.TotalCourses++
		if course.CompletedOn != nil {
			result.Summary.TotalCompleted++
		}
		if course.Status == "in_progress" {
			result.Summary.TotalInProgress++
		}
	}

	return result
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func (c *Client) get(ctx context.Context, path string, query url.Values, bearer string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("lms %s: build request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "Learning platform unreachable", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("lms %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("lms %s: read response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp.StatusCode, body)
		slog.ErrorContext(ctx, "Learning platform error",
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("lms %s: decode response: %w", path, err)
	}
	return nil
}

func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}

	var payload struct {
		ErrorDescription string          `json:"error_description"`
		Message          json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	if payload.ErrorDescription != "" {
		apiErr.Message = payload.ErrorDescription
		return apiErr
	}

	if len(payload.Message) > 0 && string(payload.Message) != "null" {
		var s string
		if err := json.Unmarshal(payload.Message, &s); err == nil {
			apiErr.Message = s
		} else {
			apiErr.Message = string(payload.Message)
		}
	}
	return apiErr
}
