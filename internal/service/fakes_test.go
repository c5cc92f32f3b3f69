package service_test

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"session-service/internal/calcom"
	"session-service/internal/model"
	"session-service/internal/repository"

	"github.com/google/uuid"
)

type gatewayCall struct {
	Op    string
	ID    string
	Patch calcom.EventTypePatch
	Event calcom.EventTypeInput
	IDs   []string
}

type fakeGateway struct {
	mu        sync.Mutex
	calls     []gatewayCall
	nextID    int
	bookings  []calcom.Booking
	failOn    map[string]error
	eventSlug string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 990, failOn: map[string]error{}}
}

func providerError(op string, status int) error {
	return &calcom.APIError{Operation: op, StatusCode: status, Message: http.StatusText(status)}
}

func (g *fakeGateway) record(call gatewayCall) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
	return g.failOn[call.Op]
}

func (g *fakeGateway) ops() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ops := make([]string, 0, len(g.calls))
	for _, c := range g.calls {
		ops = append(ops, c.Op)
	}
	return ops
}

func (g *fakeGateway) lastCall(op string) (gatewayCall, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.calls) - 1; i >= 0; i-- {
		if g.calls[i].Op == op {
			return g.calls[i], true
		}
	}
	return gatewayCall{}, false
}

func (g *fakeGateway) CreateSchedule(_ context.Context, _ calcom.ScheduleInput) (calcom.ID, error) {
	if err := g.record(gatewayCall{Op: "create_schedule"}); err != nil {
		return "", err
	}
	return "4821", nil
}

func (g *fakeGateway) CreateEventType(_ context.Context, input calcom.EventTypeInput) (*calcom.EventType, error) {
	if err := g.record(gatewayCall{Op: "create_event_type", Event: input}); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.mu.Unlock()

	slug := input.Slug
	if g.eventSlug != "" {
		slug = g.eventSlug
	}
	return &calcom.EventType{
		ID:              calcom.ID(strconv.Itoa(id)),
		Slug:            slug,
		Title:           input.Title,
		LengthInMinutes: input.LengthInMinutes,
	}, nil
}

func (g *fakeGateway) UpdateEventType(_ context.Context, id string, patch calcom.EventTypePatch) error {
	return g.record(gatewayCall{Op: "update_event_type", ID: id, Patch: patch})
}

func (g *fakeGateway) DeleteEventType(_ context.Context, id string) error {
	return g.record(gatewayCall{Op: "delete_event_type", ID: id})
}

func (g *fakeGateway) ListBookings(_ context.Context, eventIDs ...string) ([]calcom.Booking, error) {
	if err := g.record(gatewayCall{Op: "list_bookings", IDs: eventIDs}); err != nil {
		return nil, err
	}
	return g.bookings, nil
}

type store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]model.Session
	slots    map[uuid.UUID]model.Slot
	writes   int
	failSlot error
	seq      int
}

func newStore() *store {
	return &store{sessions: map[uuid.UUID]model.Session{}, slots: map[uuid.UUID]model.Slot{}}
}

func (s *store) tick() time.Time {
	s.seq++
	return time.Date(2025, 1, 1, 0, 0, s.seq, 0, time.UTC)
}

type sessionRepo struct{ *store }

func (r sessionRepo) Create(_ context.Context, session *model.Session) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Slug == session.Slug {
			return nil, repository.ErrDuplicateSlug
		}
	}
	r.writes++
	session.ID = uuid.New()
	session.CreatedAt = r.tick()
	session.UpdatedAt = session.CreatedAt
	r.sessions[session.ID] = *session
	return session, nil
}

func (r sessionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (r sessionRepo) ListByUserID(_ context.Context, userID int64) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := []model.Session{}
	for _, session := range r.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	return sessions, nil
}

func (r sessionRepo) Update(_ context.Context, id uuid.UUID, update model.SessionUpdate) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	r.writes++
	if update.Title != nil {
		session.Title = *update.Title
	}
	if update.Description != nil {
		session.Description = *update.Description
	}
	if update.Slug != nil {
		session.Slug = *update.Slug
	}
	if update.Duration != nil {
		session.Duration = *update.Duration
	}
	if update.Location != nil {
		session.Location = update.Location
	}
	if update.BookingURL != nil {
		session.BookingURL = *update.BookingURL
	}
	session.UpdatedAt = r.tick()
	r.sessions[id] = session
	return &session, nil
}

func (r sessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	r.writes++
	delete(r.sessions, id)
	return nil
}

type slotRepo struct{ *store }

func (r slotRepo) CreateBatch(_ context.Context, slots []model.Slot) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSlot != nil {
		return nil, r.failSlot
	}
	r.writes++
	created := make([]model.Slot, 0, len(slots))
	for _, slot := range slots {
		slot.ID = uuid.New()
		slot.CreatedAt = r.tick()
		r.slots[slot.ID] = slot
		created = append(created, slot)
	}
	return created, nil
}

func (r slotRepo) list(match func(model.Slot) bool) []model.Slot {
	slots := []model.Slot{}
	for _, slot := range r.slots {
		if match(slot) {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].CreatedAt.Before(slots[j].CreatedAt) })
	return slots
}

func (r slotRepo) ListBySessionID(_ context.Context, sessionID uuid.UUID) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(s model.Slot) bool { return s.SessionID == sessionID }), nil
}

func (r slotRepo) ListBySessionIDs(_ context.Context, sessionIDs []uuid.UUID) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := map[uuid.UUID]bool{}
	for _, id := range sessionIDs {
		wanted[id] = true
	}
	return r.list(func(s model.Slot) bool { return wanted[s.SessionID] }), nil
}

func (r slotRepo) DeleteBySessionID(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for id, slot := range r.slots {
		if slot.SessionID == sessionID {
			delete(r.slots, id)
		}
	}
	return nil
}

// ReplaceForSession swaps the slot set under one lock, the way the database
// transaction does.
func (r slotRepo) ReplaceForSession(_ context.Context, sessionID uuid.UUID, slots []model.Slot) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, repository.ErrNotFound
	}
	if r.failSlot != nil {
		return nil, r.failSlot
	}
	r.writes++
	for id, slot := range r.slots {
		if slot.SessionID == sessionID {
			delete(r.slots, id)
		}
	}
	created := make([]model.Slot, 0, len(slots))
	for _, slot := range slots {
		slot.ID = uuid.New()
		slot.CreatedAt = r.tick()
		r.slots[slot.ID] = slot
		created = append(created, slot)
	}
	return created, nil
}

func (s *store) slotCount(sessionID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slot := range s.slots {
		if slot.SessionID == sessionID {
			n++
		}
	}
	return n
}

type publishedEvent struct {
	Subject       string
	SessionID     uuid.UUID
	RemoteEventID string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) add(subject string, id uuid.UUID, remote string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Subject: subject, SessionID: id, RemoteEventID: remote})
	return p.err
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}

func (p *fakePublisher) PublishSessionCreated(_ context.Context, s *model.Session) error {
	return p.add("session.created", s.ID, s.RemoteEventID)
}

func (p *fakePublisher) PublishSessionUpdated(_ context.Context, s *model.Session) error {
	return p.add("session.updated", s.ID, s.RemoteEventID)
}

func (p *fakePublisher) PublishSessionDeleted(_ context.Context, id uuid.UUID, remote string) error {
	return p.add("session.deleted", id, remote)
}

func (p *fakePublisher) PublishRemoteDeleteFailed(_ context.Context, id uuid.UUID, remote, _ string) error {
	return p.add("session.remote_delete_failed", id, remote)
}

var errDatabase = errors.New("database unavailable")
