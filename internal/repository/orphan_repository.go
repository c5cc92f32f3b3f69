package repository

import (
	"context"
	"fmt"

	"session-service/internal/model"

	"github.com/jmoiron/sqlx"
)

// OrphanRepository records provider event types that outlived their local
// session.
type OrphanRepository interface {
	Save(ctx context.Context, orphan *model.OrphanedRemoteEvent) error
	List(ctx context.Context) ([]model.OrphanedRemoteEvent, error)
}

type postgresOrphanRepository struct {
	db *sqlx.DB
}

func NewPostgresOrphanRepository(db *sqlx.DB) OrphanRepository {
	return &postgresOrphanRepository{db: db}
}

func (r *postgresOrphanRepository) Save(ctx context.Context, orphan *model.OrphanedRemoteEvent) error {
	query := `
		INSERT INTO orphaned_remote_events (session_id, remote_event_id, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	row := r.db.QueryRowxContext(ctx, query, orphan.SessionID, orphan.RemoteEventID, orphan.Reason)
	if err := row.Scan(&orphan.ID, &orphan.CreatedAt); err != nil {
		return fmt.Errorf("insert orphan: %w", err)
	}
	return nil
}

func (r *postgresOrphanRepository) List(ctx context.Context) ([]model.OrphanedRemoteEvent, error) {
	orphans := []model.OrphanedRemoteEvent{}
	query := `SELECT id, session_id, remote_event_id, reason, created_at FROM orphaned_remote_events ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &orphans, query); err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	return orphans, nil
}
