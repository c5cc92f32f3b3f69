package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	StatusUpcoming  SessionStatus = "upcoming"
	StatusOngoing   SessionStatus = "ongoing"
	StatusCompleted SessionStatus = "completed"
)

// Session is the local record of one bookable offering. RemoteEventID points
// at the provider's event type and is only written after remote creation
// succeeded.
type Session struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	RemoteEventID string    `db:"remote_event_id" json:"remote_event_id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	Slug          string    `db:"slug" json:"slug"`
	Duration      int       `db:"duration" json:"duration"`
	BookingURL    string    `db:"booking_url" json:"booking_url"`
	Username      string    `db:"username" json:"username"`
	Location      *string   `db:"location" json:"location"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SessionUpdate lists the locally stored columns an update may touch. Nil
// fields are left unchanged.
type SessionUpdate struct {
	Title       *string
	Description *string
	Slug        *string
	Duration    *int
	Location    *string
	BookingURL  *string
}

func (u SessionUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Slug == nil && u.Duration == nil && u.Location == nil && u.BookingURL == nil
}

// SessionView is a session enriched with its slots and the derived fields.
type SessionView struct {
	Session
	Slots             []Slot        `json:"slots"`
	Status            SessionStatus `json:"status,omitempty"`
	TotalParticipants *int          `json:"total_participants,omitempty"`
}

// CreatedSession is returned by create: the stored view plus the fields the
// provider echoed back for the new event type.
type CreatedSession struct {
	SessionView
	RemoteTitle   string `json:"remote_title,omitempty"`
	LengthMinutes int    `json:"length_in_minutes,omitempty"`
}
