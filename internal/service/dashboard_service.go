package service

import (
	"context"
	"strconv"
	"time"

	"session-service/internal/lms"
	"session-service/internal/model"

	"golang.org/x/sync/errgroup"
)

type CourseSource interface {
	CourseSummary(ctx context.Context, userID, bearer string) (*lms.CourseSummary, error)
}

type UpcomingSession struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Slug       string       `json:"slug"`
	BookingURL string       `json:"booking_url"`
	Duration   int          `json:"duration"`
	Location   *string      `json:"location"`
	Slots      []model.Slot `json:"slots"`
}

type SessionSummary struct {
	Total    int               `json:"total"`
	Upcoming []UpcomingSession `json:"upcoming"`
}

type Dashboard struct {
	Course   lms.Summary    `json:"course"`
	Sessions SessionSummary `json:"sessions"`
}

type DashboardService interface {
	GetDashboard(ctx context.Context, userID int64, bearer string) (*Dashboard, error)
}

type dashboardService struct {
	courses  CourseSource
	sessions SessionService
	now      func() model.Date
}

func NewDashboardService(courses CourseSource, sessions SessionService, cfg SessionServiceConfig) DashboardService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	return &dashboardService{
		courses:  courses,
		sessions: sessions,
		now: func() model.Date {
			t := now()
			if loc != nil {
				t = t.In(loc)
			}
			return model.NewDate(t.Year(), t.Month(), t.Day())
		},
	}
}

// GetDashboard combines the learner's course progress with the sessions they
// own. Both sources are queried concurrently.
func (s *dashboardService) GetDashboard(ctx context.Context, userID int64, bearer string) (*Dashboard, error) {
	var (
		courses  *lms.CourseSummary
		sessions []model.SessionView
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courses, err = s.courses.CourseSummary(gctx, strconv.FormatInt(userID, 10), bearer)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = s.sessions.ListSessions(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Dashboard{
		Course:   courses.Summary,
		Sessions: summarizeSessions(sessions, s.now()),
	}, nil
}

// summarizeSessions keeps, per session, only the slots starting after today.
// Slots without a start date never count.
func summarizeSessions(sessions []model.SessionView, today model.Date) SessionSummary {
	summary := SessionSummary{Total: len(sessions), Upcoming: []UpcomingSession{}}

	for _, session := range sessions {
		var future []model.Slot
		for _, slot := range session.Slots {
			if slot.StartDate.IsZero() || !slot.StartDate.After(today.Time) {
				continue
			}
			future = append(future, slot)
		}
		if len(future) == 0 {
			continue
		}

		summary.Upcoming = append(summary.Upcoming, UpcomingSession{
			ID:         session.ID.String(),
			Title:      session.Title,
			Slug:       session.Slug,
			BookingURL: session.BookingURL,
			Duration:   session.Duration,
			Location:   session.Location,
			Slots:      future,
		})
	}

	return summary
}
