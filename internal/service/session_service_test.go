package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"session-service/internal/calcom"
	"session-service/internal/model"
	"session-service/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 8, 19, 12, 0, 0, 0, time.UTC)

type harness struct {
	gateway   *fakeGateway
	store     *store
	publisher *fakePublisher
	svc       service.SessionService
}

func newHarness() *harness {
	h := &harness{
		gateway:   newFakeGateway(),
		store:     newStore(),
		publisher: &fakePublisher{},
	}
	h.svc = service.NewSessionService(h.gateway, sessionRepo{h.store}, slotRepo{h.store}, h.publisher, service.SessionServiceConfig{
		BookingBaseURL: "https://cal.com/",
		Username:       "coach",
		TimeZone:       "UTC",
		Location:       time.UTC,
		Now:            func() time.Time { return fixedNow },
	})
	return h
}

func slot(startDate, endDate, startTime, endTime string) model.SlotInput {
	start, _ := model.ParseDate(startDate)
	end, _ := model.ParseDate(endDate)
	return model.SlotInput{StartDate: start, EndDate: end, StartTime: startTime, EndTime: endTime}
}

func validInput() service.CreateSessionInput {
	location := "Room 4"
	return service.CreateSessionInput{
		UserID:      42,
		Title:       "Intro to Go",
		Description: "Basics",
		Length:      60,
		Location:    &location,
		Slots: []model.SlotInput{
			slot("2025-08-22", "2025-08-22", "14:00", "15:00"),
			slot("2025-08-20", "2025-08-20", "09:00", "10:00"),
			slot("2025-08-21", "2025-08-21", "09:00", "10:00"),
		},
	}
}

func TestCreateSession_StoresSessionAndEverySlot(t *testing.T) {
	h := newHarness()

	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	require.Equal(t, []string{"create_schedule", "create_event_type"}, h.gateway.ops())
	require.Len(t, h.store.sessions, 1)
	require.Equal(t, 3, h.store.slotCount(created.ID))
	require.Len(t, created.Slots, 3)
	require.Equal(t, "991", created.RemoteEventID)

	expectedSlug := "intro-to-go-" + "1755604800000"
	require.Equal(t, expectedSlug, created.Slug)
	require.Equal(t, "https://cal.com/coach/"+expectedSlug, created.BookingURL)
	require.Equal(t, model.StatusUpcoming, created.Status)
	require.Equal(t, 60, created.LengthMinutes)

	call, ok := h.gateway.lastCall("create_event_type")
	require.True(t, ok)
	require.Equal(t, calcom.ID("4821"), call.Event.ScheduleID)
	require.Equal(t, []string{"2025-08-20", "2025-08-22"}, call.Event.BookingWindow.Value)
	require.Equal(t, 100, call.Event.Seats.SeatsPerTimeSlot)
	require.Equal(t, "Room 4", call.Event.Locations[0].Address)

	require.Equal(t, []string{"session.created"}, h.publisher.subjects())
}

func TestCreateSession_ExplicitSlugIsSlugified(t *testing.T) {
	h := newHarness()
	input := validInput()
	custom := "  Café Días!! "
	input.Slug = &custom

	created, err := h.svc.CreateSession(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "cafe-dias-1755604800000", created.Slug)
}

func TestCreateSession_UsesSlugReturnedByProvider(t *testing.T) {
	h := newHarness()
	h.gateway.eventSlug = "provider-slug"

	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "provider-slug", created.Slug)
	require.Equal(t, "https://cal.com/coach/provider-slug", created.BookingURL)
}

func TestCreateSession_NoSlotsFailsBeforeAnySideEffect(t *testing.T) {
	h := newHarness()
	input := validInput()
	input.Slots = nil

	_, err := h.svc.CreateSession(context.Background(), input)
	require.ErrorIs(t, err, service.ErrNoSlots)
	require.Equal(t, service.KindValidation, service.ErrorKind(err))
	require.Empty(t, h.gateway.ops())
	require.Zero(t, h.store.writes)
}

func TestCreateSession_RemoteFailureLeavesNoLocalRows(t *testing.T) {
	for _, op := range []string{"create_schedule", "create_event_type"} {
		t.Run(op, func(t *testing.T) {
			h := newHarness()
			h.gateway.failOn[op] = providerError(op, http.StatusUnprocessableEntity)

			_, err := h.svc.CreateSession(context.Background(), validInput())
			require.Error(t, err)
			require.Equal(t, service.KindRemoteProvider, service.ErrorKind(err))
			require.Equal(t, http.StatusUnprocessableEntity, service.RemoteStatus(err))
			require.Zero(t, h.store.writes)
			require.Empty(t, h.publisher.subjects())
		})
	}
}

func TestCreateSession_SlotFailureCompensates(t *testing.T) {
	h := newHarness()
	h.store.failSlot = errDatabase

	_, err := h.svc.CreateSession(context.Background(), validInput())
	require.ErrorIs(t, err, errDatabase)
	require.Equal(t, service.KindUnexpected, service.ErrorKind(err))

	require.Empty(t, h.store.sessions)
	require.Equal(t, []string{"create_schedule", "create_event_type", "delete_event_type"}, h.gateway.ops())
	call, _ := h.gateway.lastCall("delete_event_type")
	require.Equal(t, "991", call.ID)
}

func TestCreateSession_CompensationFailureIsReported(t *testing.T) {
	h := newHarness()
	h.store.failSlot = errDatabase
	h.gateway.failOn["delete_event_type"] = providerError("delete_event_type", http.StatusBadGateway)

	_, err := h.svc.CreateSession(context.Background(), validInput())
	require.ErrorIs(t, err, errDatabase)
	require.Equal(t, []string{"session.remote_delete_failed"}, h.publisher.subjects())
}

func TestListSessions_EmptyShortCircuitsRemoteCalls(t *testing.T) {
	h := newHarness()

	sessions, err := h.svc.ListSessions(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, sessions)
	require.Empty(t, sessions)
	require.Empty(t, h.gateway.ops())
}

func TestListSessions_MergesSlotsStatusAndParticipants(t *testing.T) {
	h := newHarness()
	first, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	past := validInput()
	past.Title = "Retrospective"
	past.Slots = []model.SlotInput{slot("2025-08-01", "2025-08-01", "09:00", "10:00")}
	second, err := h.svc.CreateSession(context.Background(), past)
	require.NoError(t, err)

	h.gateway.bookings = []calcom.Booking{
		{ID: "1", EventTypeID: calcom.ID(first.RemoteEventID), Attendees: []calcom.Attendee{{Name: "a"}, {Name: "b"}}},
		{ID: "2", EventTypeID: calcom.ID(first.RemoteEventID)},
	}

	sessions, err := h.svc.ListSessions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[uuid.UUID]model.SessionView{}
	for _, s := range sessions {
		byID[s.ID] = s
	}

	require.Equal(t, 2, *byID[first.ID].TotalParticipants)
	require.Equal(t, model.StatusUpcoming, byID[first.ID].Status)
	require.Len(t, byID[first.ID].Slots, 3)

	require.Equal(t, 0, *byID[second.ID].TotalParticipants)
	require.Equal(t, model.StatusCompleted, byID[second.ID].Status)

	call, _ := h.gateway.lastCall("list_bookings")
	require.ElementsMatch(t, []string{first.RemoteEventID, second.RemoteEventID}, call.IDs)
}

func TestListSessions_IsIdempotent(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	h.gateway.bookings = []calcom.Booking{{EventTypeID: calcom.ID(created.RemoteEventID), Attendees: []calcom.Attendee{{Name: "x"}}}}

	first, err := h.svc.ListSessions(context.Background(), 42)
	require.NoError(t, err)
	second, err := h.svc.ListSessions(context.Background(), 42)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestListSessions_DegradesParticipantsWhenProviderFails(t *testing.T) {
	h := newHarness()
	_, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	h.gateway.failOn["list_bookings"] = providerError("list_bookings", http.StatusServiceUnavailable)

	sessions, err := h.svc.ListSessions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, 0, *sessions[0].TotalParticipants)
}

func TestGetSession(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	view, err := h.svc.GetSession(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Slug, view.Slug)
	require.Len(t, view.Slots, 3)

	_, err = h.svc.GetSession(context.Background(), uuid.New())
	require.ErrorIs(t, err, service.ErrSessionNotFound)
	require.Equal(t, service.KindNotFound, service.ErrorKind(err))
}

func TestUpdateSession_TitleOnly(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	writesBefore := h.store.writes

	title := "New"
	view, err := h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "New", view.Title)
	require.Equal(t, created.Description, view.Description)
	require.Len(t, view.Slots, 3)

	call, ok := h.gateway.lastCall("update_event_type")
	require.True(t, ok)
	require.Equal(t, created.RemoteEventID, call.ID)
	require.Equal(t, calcom.EventTypePatch{Title: &title}, call.Patch)

	require.Equal(t, writesBefore+1, h.store.writes, "only the session row is written")
	require.Equal(t, []string{"session.created", "session.updated"}, h.publisher.subjects())
}

func TestUpdateSession_ReplacesSlotsAndWindow(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	length := 90
	view, err := h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{
		Length: &length,
		Slots:  []model.SlotInput{slot("2025-09-01", "2025-09-02", "10:00", "11:30")},
	})
	require.NoError(t, err)
	require.Equal(t, 90, view.Duration)
	require.Len(t, view.Slots, 1)
	require.Equal(t, "2025-09-01", view.Slots[0].StartDate.String())
	require.Equal(t, 1, h.store.slotCount(created.ID))

	call, _ := h.gateway.lastCall("update_event_type")
	require.Nil(t, call.Patch.Title)
	require.Equal(t, []string{"2025-09-01", "2025-09-02"}, call.Patch.BookingWindow.Value)
}

func TestUpdateSession_LengthOnlySkipsRemote(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	length := 45
	_, err = h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{Length: &length})
	require.NoError(t, err)

	_, called := h.gateway.lastCall("update_event_type")
	require.False(t, called)
}

func TestUpdateSession_NewSlugIsStoredAndSentRemote(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	slug := "Advanced Go"
	view, err := h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{Slug: &slug})
	require.NoError(t, err)

	call, _ := h.gateway.lastCall("update_event_type")
	require.Equal(t, view.Slug, *call.Patch.Slug)
	require.Equal(t, "advanced-go-1755604800000", view.Slug)
	require.Equal(t, "https://cal.com/coach/advanced-go-1755604800000", view.BookingURL)
}

func TestUpdateSession_RemoteFailurePropagatesWithoutLocalWrite(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	writesBefore := h.store.writes
	h.gateway.failOn["update_event_type"] = providerError("update_event_type", http.StatusBadRequest)

	title := "New"
	_, err = h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{Title: &title})
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, service.RemoteStatus(err))
	require.Equal(t, writesBefore, h.store.writes)

	view, err := h.svc.GetSession(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Intro to Go", view.Title)
}

func TestUpdateSession_NotFound(t *testing.T) {
	h := newHarness()
	title := "x"

	_, err := h.svc.UpdateSession(context.Background(), uuid.New(), service.UpdateSessionInput{Title: &title})
	require.ErrorIs(t, err, service.ErrSessionNotFound)
	require.Empty(t, h.gateway.ops())
}

func TestUpdateSession_ConcurrentUpdatesLastWriterWins(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	titleA, descA := "Title A", "Description A"
	titleB, descB := "Title B", "Description B"
	slotsA := []model.SlotInput{slot("2025-09-01", "2025-09-01", "10:00", "11:00")}
	slotsB := []model.SlotInput{
		slot("2025-09-02", "2025-09-02", "10:00", "11:00"),
		slot("2025-09-03", "2025-09-03", "10:00", "11:00"),
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, in := range []service.UpdateSessionInput{
		{Title: &titleA, Description: &descA, Slots: slotsA},
		{Title: &titleB, Description: &descB, Slots: slotsB},
	} {
		wg.Add(1)
		go func(i int, in service.UpdateSessionInput) {
			defer wg.Done()
			_, errs[i] = h.svc.UpdateSession(context.Background(), created.ID, in)
		}(i, in)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	view, err := h.svc.GetSession(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{"Title A|Description A", "Title B|Description B"}, view.Title+"|"+view.Description)

	var dates []string
	for _, s := range view.Slots {
		dates = append(dates, s.StartDate.String())
	}
	assert.Contains(t, [][]string{{"2025-09-01"}, {"2025-09-02", "2025-09-03"}}, dates, "slot sets must never be merged")
}

func TestUpdateSession_SlotReplaceFailureKeepsPreviousSlots(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	h.store.failSlot = errDatabase

	_, err = h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{
		Slots: []model.SlotInput{slot("2025-09-01", "2025-09-01", "10:00", "11:00")},
	})
	require.ErrorIs(t, err, errDatabase)
	require.Equal(t, 3, h.store.slotCount(created.ID))
}

func TestUpdateSession_EmptyLocationClearsRemoteLocations(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	empty := ""
	view, err := h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{Location: &empty})
	require.NoError(t, err)
	require.NotNil(t, view.Location)
	require.Empty(t, *view.Location)

	call, ok := h.gateway.lastCall("update_event_type")
	require.True(t, ok)
	require.NotNil(t, call.Patch.Locations)
	require.Empty(t, *call.Patch.Locations)
}

func TestUpdateSession_LocationIsSentRemote(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	room := "Room 9"
	_, err = h.svc.UpdateSession(context.Background(), created.ID, service.UpdateSessionInput{Location: &room})
	require.NoError(t, err)

	call, _ := h.gateway.lastCall("update_event_type")
	require.NotNil(t, call.Patch.Locations)
	require.Equal(t, "Room 9", (*call.Patch.Locations)[0].Address)
}

func TestDeleteSession_RemovesEverythingEvenWhenRemoteFails(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	h.gateway.failOn["delete_event_type"] = errors.New("connection refused")

	require.NoError(t, h.svc.DeleteSession(context.Background(), created.ID))

	require.Empty(t, h.store.sessions)
	require.Zero(t, h.store.slotCount(created.ID))
	require.Equal(t, []string{"session.created", "session.remote_delete_failed", "session.deleted"}, h.publisher.subjects())
}

func TestDeleteSession_NotFound(t *testing.T) {
	h := newHarness()

	err := h.svc.DeleteSession(context.Background(), uuid.New())
	require.ErrorIs(t, err, service.ErrSessionNotFound)
	require.Empty(t, h.gateway.ops())
}

func TestDeleteSession_PublishFailureIsNotReturned(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	h.publisher.err = errors.New("nats: connection closed")

	require.NoError(t, h.svc.DeleteSession(context.Background(), created.ID))
}

func TestListParticipants(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	h.gateway.bookings = []calcom.Booking{
		{UID: "b1", EventTypeID: calcom.ID(created.RemoteEventID), Attendees: []calcom.Attendee{{Name: "Ana", Email: "ana@x.io"}, {Name: "Ben", Email: "ben@x.io"}}},
		{UID: "b2", EventType: &calcom.EventRef{ID: calcom.ID(created.RemoteEventID)}, Attendees: []calcom.Attendee{{Name: "Cy", Email: "cy@x.io"}}},
		{UID: "b3", EventTypeID: "other", Attendees: []calcom.Attendee{{Name: "Nope"}}},
	}

	participants, err := h.svc.ListParticipants(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, participants, 3)
	require.Equal(t, "Ana", participants[0].Name)
	require.Equal(t, "b2", participants[2].BookingUID)

	call, _ := h.gateway.lastCall("list_bookings")
	require.Equal(t, []string{created.RemoteEventID}, call.IDs)
}

func TestListParticipants_ProviderFailurePropagates(t *testing.T) {
	h := newHarness()
	created, err := h.svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	h.gateway.failOn["list_bookings"] = providerError("list_bookings", http.StatusUnauthorized)

	_, err = h.svc.ListParticipants(context.Background(), created.ID)
	require.Equal(t, service.KindRemoteProvider, service.ErrorKind(err))
	require.Equal(t, http.StatusUnauthorized, service.RemoteStatus(err))
}
