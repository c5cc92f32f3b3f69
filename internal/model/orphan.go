package model

import (
	"time"

	"github.com/google/uuid"
)

type OrphanedRemoteEvent struct {
	ID            uuid.UUID `db:"id" json:"id"`
	SessionID     uuid.UUID `db:"session_id" json:"session_id"`
	RemoteEventID string    `db:"remote_event_id" json:"remote_event_id"`
	Reason        string    `db:"reason" json:"reason"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
