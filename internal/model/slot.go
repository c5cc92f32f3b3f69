package model

import (
	"time"

	"github.com/google/uuid"
)

type Slot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SessionID uuid.UUID `db:"session_id" json:"session_id"`
	StartDate Date      `db:"start_date" json:"start_date"`
	EndDate   Date      `db:"end_date" json:"end_date"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SlotInput is one requested time window before it is persisted.
type SlotInput struct {
	StartDate Date
	EndDate   Date
	StartTime string
	EndTime   string
}

func (in SlotInput) ToSlot(sessionID uuid.UUID) Slot {
	return Slot{
		SessionID: sessionID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}
}
