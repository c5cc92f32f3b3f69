package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"session-service/internal/model"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectSessionCreated      = "session.created"
	SubjectSessionUpdated      = "session.updated"
	SubjectSessionDeleted      = "session.deleted"
	SubjectRemoteDeleteFailed  = "session.remote_delete_failed"
	SubjectRemoteDeleteFailDLQ = "session.remote_delete_failed.dlq"
)

type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, session *model.Session) error
	PublishSessionUpdated(ctx context.Context, session *model.Session) error
	PublishSessionDeleted(ctx context.Context, sessionID uuid.UUID, remoteEventID string) error
	PublishRemoteDeleteFailed(ctx context.Context, sessionID uuid.UUID, remoteEventID, reason string) error
}

type SessionEvent struct {
	EventType     string    `json:"event_type"`
	SessionID     uuid.UUID `json:"session_id"`
	UserID        int64     `json:"user_id,omitempty"`
	RemoteEventID string    `json:"remote_event_id"`
	Title         string    `json:"title,omitempty"`
	Slug          string    `json:"slug,omitempty"`
	BookingURL    string    `json:"booking_url,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type RemoteDeleteFailedEvent struct {
	EventType     string    `json:"event_type"`
	SessionID     uuid.UUID `json:"session_id"`
	RemoteEventID string    `json:"remote_event_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(conn *nats.Conn) *NatsPublisher {
	return &NatsPublisher{conn: conn}
}

func sessionEvent(eventType string, session *model.Session) SessionEvent {
	return SessionEvent{
		EventType:     eventType,
		SessionID:     session.ID,
		UserID:        session.UserID,
		RemoteEventID: session.RemoteEventID,
		Title:         session.Title,
		Slug:          session.Slug,
		BookingURL:    session.BookingURL,
		OccurredAt:    time.Now().UTC(),
	}
}

func (p *NatsPublisher) PublishSessionCreated(ctx context.Context, session *model.Session) error {
	return p.publish(ctx, SubjectSessionCreated, sessionEvent(SubjectSessionCreated, session))
}

func (p *NatsPublisher) PublishSessionUpdated(ctx context.Context, session *model.Session) error {
	return p.publish(ctx, SubjectSessionUpdated, sessionEvent(SubjectSessionUpdated, session))
}

func (p *NatsPublisher) PublishSessionDeleted(ctx context.Context, sessionID uuid.UUID, remoteEventID string) error {
	event := SessionEvent{
		EventType:     SubjectSessionDeleted,
		SessionID:     sessionID,
		RemoteEventID: remoteEventID,
		OccurredAt:    time.Now().UTC(),
	}
	return p.publish(ctx, SubjectSessionDeleted, event)
}

func (p *NatsPublisher) PublishRemoteDeleteFailed(ctx context.Context, sessionID uuid.UUID, remoteEventID, reason string) error {
	event := RemoteDeleteFailedEvent{
		EventType:     SubjectRemoteDeleteFailed,
		SessionID:     sessionID,
		RemoteEventID: remoteEventID,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
	return p.publish(ctx, SubjectRemoteDeleteFailed, event)
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, event any) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "Error marshalling event JSON", slog.String("subject", subject), slog.String("error", err.Error()))
		return err
	}

	if err := p.conn.Publish(subject, eventJSON); err != nil {
		slog.ErrorContext(ctx, "Error publishing to NATS", slog.String("subject", subject), slog.String("error", err.Error()))
		return err
	}

	slog.DebugContext(ctx, "Published event to NATS", slog.String("subject", subject))
	return nil
}

// NopPublisher discards every event. It is used when no event bus is
// configured.
type NopPublisher struct{}

func (NopPublisher) PublishSessionCreated(context.Context, *model.Session) error { return nil }
func (NopPublisher) PublishSessionUpdated(context.Context, *model.Session) error { return nil }
func (NopPublisher) PublishSessionDeleted(context.Context, uuid.UUID, string) error {
	return nil
}
func (NopPublisher) PublishRemoteDeleteFailed(context.Context, uuid.UUID, string, string) error {
	return nil
}
