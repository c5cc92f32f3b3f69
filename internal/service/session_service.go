package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"session-service/internal/calcom"
	"session-service/internal/events"
	"session-service/internal/model"
	"session-service/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var participantCountDegraded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "session_participant_count_degraded_total",
	Help: "Number of session listings served with zero participant totals because bookings could not be fetched",
})

var tracer = otel.Tracer("session-service/internal/service")

type CreateSessionInput struct {
	UserID      int64
	Title       string
	Description string
	Slug        *string
	Length      int
	Slots       []model.SlotInput
	Location    *string
}

// UpdateSessionInput holds the fields a caller may change. Nil fields and an
// empty Slots slice are treated as not supplied.
type UpdateSessionInput struct {
	Title       *string
	Description *string
	Slug        *string
	Length      *int
	Location    *string
	Slots       []model.SlotInput
}

type SessionService interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*model.CreatedSession, error)
	ListSessions(ctx context.Context, userID int64) ([]model.SessionView, error)
	GetSession(ctx context.Context, id uuid.UUID) (*model.SessionView, error)
	UpdateSession(ctx context.Context, id uuid.UUID, input UpdateSessionInput) (*model.SessionView, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	ListParticipants(ctx context.Context, id uuid.UUID) ([]model.Participant, error)
}

type SessionServiceConfig struct {
	BookingBaseURL string
	Username       string
	TimeZone       string
	Location       *time.Location
	Now            func() time.Time
}

type sessionService struct {
	gateway     calcom.Gateway
	sessionRepo repository.SessionRepository
	slotRepo    repository.SlotRepository
	publisher   events.EventPublisher
	cfg         SessionServiceConfig
}

func NewSessionService(
	gateway calcom.Gateway,
	sessionRepo repository.SessionRepository,
	slotRepo repository.SlotRepository,
	pub events.EventPublisher,
	cfg SessionServiceConfig,
) SessionService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = cfg.Location.String()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}

	return &sessionService{
		gateway:     gateway,
		sessionRepo: sessionRepo,
		slotRepo:    slotRepo,
		publisher:   pub,
		cfg:         cfg,
	}
}

func (s *sessionService) bookingURL(slug string) string {
	return strings.TrimRight(s.cfg.BookingBaseURL, "/") + "/" + s.cfg.Username + "/" + slug
}

func (s *sessionService) CreateSession(ctx context.Context, input CreateSessionInput) (_ *model.CreatedSession, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.CreateSession", trace.WithAttributes(attribute.Int64("session.user_id", input.UserID)))
	defer func() { endSpan(span, err) }()

	if len(input.Slots) == 0 {
		return nil, ErrNoSlots
	}

	scheduleID, err := s.gateway.CreateSchedule(ctx, calcom.ScheduleInput{
		Name:         input.Title,
		TimeZone:     s.cfg.TimeZone,
		Availability: Availability(input.Slots),
	})
	if err != nil {
		return nil, err
	}

	base := input.Title
	if input.Slug != nil && strings.TrimSpace(*input.Slug) != "" {
		base = *input.Slug
	}
	slug := UniqueSlug(base, s.cfg.Now())

	windowStart, windowEnd := BookingWindow(input.Slots)
	seats := calcom.DefaultSeats
	eventInput := calcom.EventTypeInput{
		Title:           input.Title,
		Slug:            slug,
		Description:     input.Description,
		LengthInMinutes: input.Length,
		ScheduleID:      scheduleID,
		Seats:           &seats,
		BookingWindow:   calcom.RangeWindow(windowStart, windowEnd),
		BookingFields:   calcom.DefaultBookingFields,
	}
	if input.Location != nil && *input.Location != "" {
		eventInput.Locations = calcom.AddressLocations(*input.Location)
	}

	eventType, err := s.gateway.CreateEventType(ctx, eventInput)
	if err != nil {
		return nil, err
	}

	if eventType.Slug != "" {
		slug = eventType.Slug
	}

	session, err := s.sessionRepo.Create(ctx, &model.Session{
		UserID:        input.UserID,
		RemoteEventID: eventType.ID.String(),
		Title:         input.Title,
		Description:   input.Description,
		Slug:          slug,
		Duration:      input.Length,
		BookingURL:    s.bookingURL(slug),
		Username:      s.cfg.Username,
		Location:      input.Location,
	})
	if err != nil {
		s.discardRemoteEvent(ctx, uuid.Nil, eventType.ID.String())
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, NewValidationError("slug", "slug is already in use")
		}
		return nil, fmt.Errorf("store session: %w", err)
	}

	slots := make([]model.Slot, 0, len(input.Slots))
	for _, in := range input.Slots {
		slots = append(slots, in.ToSlot(session.ID))
	}

	createdSlots, err := s.slotRepo.CreateBatch(ctx, slots)
	if err != nil {
		if delErr := s.sessionRepo.Delete(ctx, session.ID); delErr != nil {
			slog.ErrorContext(ctx, "Failed to remove session after slot insert failure",
				slog.String("session_id", session.ID.String()),
				slog.String("error", delErr.Error()),
			)
		}
		s.discardRemoteEvent(ctx, session.ID, session.RemoteEventID)
		return nil, fmt.Errorf("store slots: %w", err)
	}

	if err := s.publisher.PublishSessionCreated(ctx, session); err != nil {
		slog.WarnContext(ctx, "Failed to publish session created event", slog.String("session_id", session.ID.String()), slog.String("error", err.Error()))
	}

	slog.InfoContext(ctx, "Session created",
		slog.String("session_id", session.ID.String()),
		slog.String("remote_event_id", session.RemoteEventID),
		slog.Int("slots", len(createdSlots)),
	)

	return &model.CreatedSession{
		SessionView: model.SessionView{
			Session: *session,
			Slots:   createdSlots,
			Status:  StatusOf(s.cfg.Now(), createdSlots, s.cfg.Location),
		},
		RemoteTitle:   eventType.Title,
		LengthMinutes: eventType.LengthInMinutes,
	}, nil
}

// discardRemoteEvent undoes a just-created event type after a local write
// failed. The schedule it references is left behind.
func (s *sessionService) discardRemoteEvent(ctx context.Context, sessionID uuid.UUID, remoteEventID string) {
	if err := s.gateway.DeleteEventType(ctx, remoteEventID); err != nil {
		slog.ErrorContext(ctx, "Failed to remove remote event type after local write failure",
			slog.String("remote_event_id", remoteEventID),
			slog.String("error", err.Error()),
		)
		s.reportOrphan(ctx, sessionID, remoteEventID, err)
	}
}

func (s *sessionService) reportOrphan(ctx context.Context, sessionID uuid.UUID, remoteEventID string, cause error) {
	if err := s.publisher.PublishRemoteDeleteFailed(ctx, sessionID, remoteEventID, cause.Error()); err != nil {
		slog.WarnContext(ctx, "Failed to publish remote delete failure", slog.String("remote_event_id", remoteEventID), slog.String("error", err.Error()))
	}
}

func (s *sessionService) ListSessions(ctx context.Context, userID int64) (_ []model.SessionView, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.ListSessions", trace.WithAttributes(attribute.Int64("session.user_id", userID)))
	defer func() { endSpan(span, err) }()

	sessions, err := s.sessionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []model.SessionView{}, nil
	}

	ids := make([]uuid.UUID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}

	slots, err := s.slotRepo.ListBySessionIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	slotsBySession := make(map[uuid.UUID][]model.Slot, len(sessions))
	for _, slot := range slots {
		slotsBySession[slot.SessionID] = append(slotsBySession[slot.SessionID], slot)
	}

	counts := s.participantCounts(ctx, sessions)
	now := s.cfg.Now()

	views := make([]model.SessionView, 0, len(sessions))
	for _, session := range sessions {
		sessionSlots := slotsBySession[session.ID]
		if sessionSlots == nil {
			sessionSlots = []model.Slot{}
		}
		total := counts[session.RemoteEventID]
		views = append(views, model.SessionView{
			Session:           session,
			Slots:             sessionSlots,
			Status:            StatusOf(now, sessionSlots, s.cfg.Location),
			TotalParticipants: &total,
		})
	}

	return views, nil
}

// participantCounts fetches bookings for all sessions in one call. When the
// provider is unavailable every session reports zero.
func (s *sessionService) participantCounts(ctx context.Context, sessions []model.Session) map[string]int {
	seen := make(map[string]bool, len(sessions))
	eventIDs := make([]string, 0, len(sessions))
	for _, session := range sessions {
		if session.RemoteEventID == "" || seen[session.RemoteEventID] {
			continue
		}
		seen[session.RemoteEventID] = true
		eventIDs = append(eventIDs, session.RemoteEventID)
	}
	if len(eventIDs) == 0 {
		return map[string]int{}
	}

	bookings, err := s.gateway.ListBookings(ctx, eventIDs...)
	if err != nil {
		participantCountDegraded.Inc()
		slog.WarnContext(ctx, "Bookings unavailable, reporting zero participants",
			slog.Int("sessions", len(sessions)),
			slog.String("error", err.Error()),
		)
		return map[string]int{}
	}

	return SumParticipants(bookings)
}

func (s *sessionService) GetSession(ctx context.Context, id uuid.UUID) (_ *model.SessionView, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.GetSession", trace.WithAttributes(attribute.String("session.id", id.String())))
	defer func() { endSpan(span, err) }()

	return s.loadView(ctx, id)
}

func (s *sessionService) loadView(ctx context.Context, id uuid.UUID) (*model.SessionView, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	slots, err := s.slotRepo.ListBySessionID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.SessionView{
		Session: *session,
		Slots:   slots,
		Status:  StatusOf(s.cfg.Now(), slots, s.cfg.Location),
	}, nil
}

func (s *sessionService) UpdateSession(ctx context.Context, id uuid.UUID, input UpdateSessionInput) (_ *model.SessionView, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.UpdateSession", trace.WithAttributes(attribute.String("session.id", id.String())))
	defer func() { endSpan(span, err) }()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	var slug *string
	if input.Slug != nil {
		fresh := UniqueSlug(*input.Slug, s.cfg.Now())
		slug = &fresh
	}

	patch := calcom.EventTypePatch{
		Title:       input.Title,
		Description: input.Description,
		Slug:        slug,
	}
	if input.Location != nil {
		locations := []calcom.Location{}
		if *input.Location != "" {
			locations = calcom.AddressLocations(*input.Location)
		}
		patch.Locations = &locations
	}
	if len(input.Slots) > 0 {
		patch.BookingWindow = calcom.RangeWindow(BookingWindow(input.Slots))
	}

	if !patch.IsEmpty() {
		if err := s.gateway.UpdateEventType(ctx, session.RemoteEventID, patch); err != nil {
			return nil, err
		}
	}

	update := model.SessionUpdate{
		Title:       input.Title,
		Description: input.Description,
		Slug:        slug,
		Duration:    input.Length,
		Location:    input.Location,
	}
	if slug != nil {
		url := s.bookingURL(*slug)
		update.BookingURL = &url
	}

	if !update.IsEmpty() {
		updated, err := s.sessionRepo.Update(ctx, id, update)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateSlug) {
				return nil, NewValidationError("slug", "slug is already in use")
			}
			return nil, err
		}
		if updated == nil {
			return nil, ErrSessionNotFound
		}
	}

	if len(input.Slots) > 0 {
		slots := make([]model.Slot, 0, len(input.Slots))
		for _, in := range input.Slots {
			slots = append(slots, in.ToSlot(id))
		}
		if _, err := s.slotRepo.ReplaceForSession(ctx, id, slots); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
	}

	view, err := s.loadView(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.publisher.PublishSessionUpdated(ctx, &view.Session); err != nil {
		slog.WarnContext(ctx, "Failed to publish session updated event", slog.String("session_id", id.String()), slog.String("error", err.Error()))
	}

	return view, nil
}

func (s *sessionService) DeleteSession(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "SessionService.DeleteSession", trace.WithAttributes(attribute.String("session.id", id.String())))
	defer func() { endSpan(span, err) }()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	if err := s.gateway.DeleteEventType(ctx, session.RemoteEventID); err != nil {
		slog.WarnContext(ctx, "Remote event type delete failed, continuing with local cleanup",
			slog.String("session_id", id.String()),
			slog.String("remote_event_id", session.RemoteEventID),
			slog.String("error", err.Error()),
		)
		s.reportOrphan(ctx, id, session.RemoteEventID, err)
	}

	if err := s.slotRepo.DeleteBySessionID(ctx, id); err != nil {
		return err
	}

	if err := s.sessionRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if err := s.publisher.PublishSessionDeleted(ctx, id, session.RemoteEventID); err != nil {
		slog.WarnContext(ctx, "Failed to publish session deleted event", slog.String("session_id", id.String()), slog.String("error", err.Error()))
	}

	return nil
}

func (s *sessionService) ListParticipants(ctx context.Context, id uuid.UUID) (_ []model.Participant, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.ListParticipants", trace.WithAttributes(attribute.String("session.id", id.String())))
	defer func() { endSpan(span, err) }()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	bookings, err := s.gateway.ListBookings(ctx, session.RemoteEventID)
	if err != nil {
		return nil, err
	}

	participants := []model.Participant{}
	for _, booking := range bookings {
		if eventID := booking.EventID(); eventID != "" && eventID != session.RemoteEventID {
			continue
		}
		for _, attendee := range booking.Attendees {
			participants = append(participants, model.Participant{
				Name:       attendee.Name,
				Email:      attendee.Email,
				TimeZone:   attendee.TimeZone,
				BookingUID: booking.UID,
				Start:      booking.Start,
			})
		}
	}

	return participants, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
