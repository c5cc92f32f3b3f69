package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"session-service/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SlotRepository interface {
	CreateBatch(ctx context.Context, slots []model.Slot) ([]model.Slot, error)
	ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]model.Slot, error)
	ListBySessionIDs(ctx context.Context, sessionIDs []uuid.UUID) ([]model.Slot, error)
	DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error
	ReplaceForSession(ctx context.Context, sessionID uuid.UUID, slots []model.Slot) ([]model.Slot, error)
}

type postgresSlotRepository struct {
	db *sqlx.DB
}

func NewPostgresSlotRepository(db *sqlx.DB) SlotRepository {
	return &postgresSlotRepository{db: db}
}

const slotColumns = `id, session_id, start_date, end_date, start_time, end_time, created_at`

const insertSlotQuery = `
		INSERT INTO session_slots (session_id, start_date, end_date, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

// CreateBatch inserts all slots in one transaction; either every slot is
// stored or none is.
func (r *postgresSlotRepository) CreateBatch(ctx context.Context, slots []model.Slot) ([]model.Slot, error) {
	if len(slots) == 0 {
		return []model.Slot{}, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin slot batch: %w", err)
	}
	defer tx.Rollback()

	created, err := insertSlots(ctx, tx, slots)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit slot batch: %w", err)
	}

	return created, nil
}

// ReplaceForSession swaps the whole slot set of a session in one transaction.
// The session row is locked first so concurrent replaces of the same session
// run one after the other.
func (r *postgresSlotRepository) ReplaceForSession(ctx context.Context, sessionID uuid.UUID, slots []model.Slot) ([]model.Slot, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin slot replace: %w", err)
	}
	defer tx.Rollback()

	var lockedID uuid.UUID
	if err := tx.QueryRowxContext(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_slots WHERE session_id = $1`, sessionID); err != nil {
		return nil, fmt.Errorf("delete slots: %w", err)
	}

	created, err := insertSlots(ctx, tx, slots)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit slot replace: %w", err)
	}

	return created, nil
}

func insertSlots(ctx context.Context, tx *sqlx.Tx, slots []model.Slot) ([]model.Slot, error) {
	created := make([]model.Slot, 0, len(slots))
	for _, slot := range slots {
		row := tx.QueryRowxContext(ctx, insertSlotQuery, slot.SessionID, slot.StartDate, slot.EndDate, slot.StartTime, slot.EndTime)
		if err := row.Scan(&slot.ID, &slot.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert slot: %w", err)
		}
		created = append(created, slot)
	}
	return created, nil
}

func (r *postgresSlotRepository) ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]model.Slot, error) {
	slots := []model.Slot{}
	query := `SELECT ` + slotColumns + ` FROM session_slots WHERE session_id = $1 ORDER BY start_date, start_time`
	if err := r.db.SelectContext(ctx, &slots, query, sessionID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	return slots, nil
}

func (r *postgresSlotRepository) ListBySessionIDs(ctx context.Context, sessionIDs []uuid.UUID) ([]model.Slot, error) {
	slots := []model.Slot{}
	if len(sessionIDs) == 0 {
		return slots, nil
	}

	query, args, err := sqlx.In(`SELECT `+slotColumns+` FROM session_slots WHERE session_id IN (?) ORDER BY start_date, start_time`, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}

	if err := r.db.SelectContext(ctx, &slots, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	return slots, nil
}

func (r *postgresSlotRepository) DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_slots WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}
	return nil
}
