package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"session-service/internal/model"
	"session-service/internal/repository"

	"github.com/nats-io/nats.go"
)

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
)

type dlqPublisher interface {
	Publish(subject string, data []byte) error
}

// OrphanSubscriber records provider event types whose remote deletion failed
// so operators can clean them up.
type OrphanSubscriber struct {
	natsConn   *nats.Conn
	dlq        dlqPublisher
	orphanRepo repository.OrphanRepository
	retryDelay time.Duration
	sub        *nats.Subscription
}

func NewOrphanSubscriber(conn *nats.Conn, orphanRepo repository.OrphanRepository) *OrphanSubscriber {
	return &OrphanSubscriber{
		natsConn:   conn,
		dlq:        conn,
		orphanRepo: orphanRepo,
		retryDelay: retryDelay,
	}
}

func (s *OrphanSubscriber) Start() error {
	sub, err := s.natsConn.Subscribe(SubjectRemoteDeleteFailed, func(msg *nats.Msg) {
		s.handle(context.Background(), msg.Data)
	})
	if err != nil {
		return err
	}
	s.sub = sub

	slog.Info("Orphan subscriber listening", slog.String("subject", SubjectRemoteDeleteFailed))
	return nil
}

func (s *OrphanSubscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *OrphanSubscriber) handle(ctx context.Context, data []byte) {
	var event RemoteDeleteFailedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal remote delete event", slog.String("error", err.Error()))
		return
	}

	orphan := &model.OrphanedRemoteEvent{
		SessionID:     event.SessionID,
		RemoteEventID: event.RemoteEventID,
		Reason:        event.Reason,
	}

	var saveErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		saveErr = s.orphanRepo.Save(ctx, orphan)
		if saveErr == nil {
			slog.InfoContext(ctx, "Orphaned remote event recorded",
				slog.String("session_id", event.SessionID.String()),
				slog.String("remote_event_id", event.RemoteEventID),
				slog.Int("attempt", attempt),
			)
			return
		}

		slog.WarnContext(ctx, "Failed saving orphaned remote event",
			slog.Int("attempt", attempt),
			slog.String("error", saveErr.Error()),
		)
		if attempt < maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	slog.ErrorContext(ctx, "Giving up on orphaned remote event",
		slog.String("session_id", event.SessionID.String()),
		slog.String("remote_event_id", event.RemoteEventID),
		slog.String("error", saveErr.Error()),
	)

	if err := s.dlq.Publish(SubjectRemoteDeleteFailDLQ, data); err != nil {
		slog.ErrorContext(ctx, "Failed to publish to DLQ", slog.String("subject", SubjectRemoteDeleteFailDLQ), slog.String("error", err.Error()))
	}
}
