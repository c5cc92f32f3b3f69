package model

// Participant is one attendee of one booking made against a session.
type Participant struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	TimeZone   string `json:"time_zone,omitempty"`
	BookingUID string `json:"booking_uid,omitempty"`
	Start      string `json:"start,omitempty"`
}
