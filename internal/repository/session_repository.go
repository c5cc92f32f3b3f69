package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"session-service/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) (*model.Session, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Session, error)
	Update(ctx context.Context, id uuid.UUID, update model.SessionUpdate) (*model.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresSessionRepository struct {
	db *sqlx.DB
}

func NewPostgresSessionRepository(db *sqlx.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

const sessionColumns = `id, user_id, remote_event_id, title, description, slug, duration, booking_url, username, location, created_at, updated_at`

func (r *postgresSessionRepository) Create(ctx context.Context, session *model.Session) (*model.Session, error) {
	query := `
		INSERT INTO sessions (user_id, remote_event_id, title, description, slug, duration, booking_url, username, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		session.UserID, session.RemoteEventID, session.Title, session.Description, session.Slug,
		session.Duration, session.BookingURL, session.Username, session.Location,
	)
	if err := row.Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return session, nil
}

func (r *postgresSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	var session model.Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	err := r.db.GetContext(ctx, &session, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("find session: %w", err)
	}

	return &session, nil
}

func (r *postgresSessionRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Session, error) {
	sessions := []model.Session{}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

// Update writes only the non-nil columns of update and bumps updated_at. It
// returns nil without error when no row matches.
func (r *postgresSessionRepository) Update(ctx context.Context, id uuid.UUID, update model.SessionUpdate) (*model.Session, error) {
	var setClauses []string
	var args []interface{}
	argId := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argId))
		args = append(args, value)
		argId++
	}

	if update.Title != nil {
		set("title", *update.Title)
	}
	if update.Description != nil {
		set("description", *update.Description)
	}
	if update.Slug != nil {
		set("slug", *update.Slug)
	}
	if update.Duration != nil {
		set("duration", *update.Duration)
	}
	if update.Location != nil {
		set("location", *update.Location)
	}
	if update.BookingURL != nil {
		set("booking_url", *update.BookingURL)
	}

	if len(setClauses) == 0 {
		return r.FindByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE sessions SET %s WHERE id = $%d RETURNING %s", strings.Join(setClauses, ", "), argId, sessionColumns)
	args = append(args, id)

	var session model.Session
	if err := r.db.GetContext(ctx, &session, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("update session: %w", err)
	}

	return &session, nil
}

func (r *postgresSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
