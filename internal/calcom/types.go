package calcom

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is a provider identifier that may arrive as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

var AllDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type Availability struct {
	Days      []string `json:"days"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
}

type ScheduleInput struct {
	Name         string         `json:"name"`
	TimeZone     string         `json:"timeZone"`
	Availability []Availability `json:"availability"`
	IsDefault    bool           `json:"isDefault"`
}

type Location struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Public  bool   `json:"public"`
}

func AddressLocations(address string) []Location {
	return []Location{{Type: "address", Address: address, Public: true}}
}

type BookingWindow struct {
	Type  string   `json:"type"`
	Value []string `json:"value"`
}

func RangeWindow(start, end string) *BookingWindow {
	return &BookingWindow{Type: "range", Value: []string{start, end}}
}

type Seats struct {
	SeatsPerTimeSlot      int  `json:"seatsPerTimeSlot"`
	ShowAttendeeInfo      bool `json:"showAttendeeInfo"`
	ShowAvailabilityCount bool `json:"showAvailabilityCount"`
}

type BookingField struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
}

// DefaultSeats is the fixed capacity and visibility policy for every session.
var DefaultSeats = Seats{
	SeatsPerTimeSlot:      100,
	ShowAttendeeInfo:      false,
	ShowAvailabilityCount: false,
}

var DefaultBookingFields = []BookingField{
	{Type: "name", Label: "Name", Placeholder: "Enter your name", Required: true},
	{Type: "email", Label: "Email", Placeholder: "Enter your email", Required: true},
}

type EventTypeInput struct {
	Title           string         `json:"title"`
	Slug            string         `json:"slug"`
	Description     string         `json:"description"`
	LengthInMinutes int            `json:"lengthInMinutes"`
	ScheduleID      ID             `json:"scheduleId"`
	Seats           *Seats         `json:"seats,omitempty"`
	Locations       []Location     `json:"locations,omitempty"`
	BookingWindow   *BookingWindow `json:"bookingWindow,omitempty"`
	BookingFields   []BookingField `json:"bookingFields,omitempty"`
}

// EventTypePatch carries only the fields being changed; nil fields are
// omitted from the request body. Locations pointing at an empty slice clears
// the event's locations.
type EventTypePatch struct {
	Title         *string        `json:"title,omitempty"`
	Description   *string        `json:"description,omitempty"`
	Slug          *string        `json:"slug,omitempty"`
	Locations     *[]Location    `json:"locations,omitempty"`
	BookingWindow *BookingWindow `json:"bookingWindow,omitempty"`
}

func (p EventTypePatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Slug == nil && p.Locations == nil && p.BookingWindow == nil
}

type EventType struct {
	ID              ID     `json:"id"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	LengthInMinutes int    `json:"lengthInMinutes"`
}

type Schedule struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone,omitempty"`
}

type Booking struct {
	ID          ID         `json:"id"`
	UID         string     `json:"uid,omitempty"`
	Status      string     `json:"status,omitempty"`
	Start       string     `json:"start,omitempty"`
	End         string     `json:"end,omitempty"`
	EventTypeID ID         `json:"eventTypeId,omitempty"`
	EventType   *EventRef  `json:"eventType,omitempty"`
	Attendees   []Attendee `json:"attendees"`
}

type EventRef struct {
	ID   ID     `json:"id"`
	Slug string `json:"slug,omitempty"`
}

// EventID returns the originating event type id from whichever field the
// provider populated.
func (b Booking) EventID() string {
	if b.EventTypeID != "" {
		return b.EventTypeID.String()
	}
	if b.EventType != nil {
		return b.EventType.ID.String()
	}
	return ""
}

type envelope struct {
	Status     string          `json:"status"`
	Data       json.RawMessage `json:"data"`
	Pagination *pagination     `json:"pagination"`
}

type pagination struct {
	TotalItems  int   `json:"totalItems"`
	HasNextPage *bool `json:"hasNextPage"`
}

// hasMore reports whether another page should be requested after one that
// returned n items. Without pagination metadata a short page is the last.
func (e *envelope) hasMore(n, pageSize int) bool {
	if n == 0 {
		return false
	}
	if e.Pagination != nil && e.Pagination.HasNextPage != nil {
		return *e.Pagination.HasNextPage
	}
	return n >= pageSize
}
