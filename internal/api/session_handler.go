package api

import (
	"log/slog"
	"strconv"

	"session-service/internal/model"
	"session-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SessionHandler struct {
	sessionService service.SessionService
	validate       *validator.Validate
	errs           *ErrorResponder
}

func NewSessionHandler(sessionService service.SessionService, errs *ErrorResponder) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		validate:       newValidator(),
		errs:           errs,
	}
}

type SlotRequest struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

type CreateSessionRequest struct {
	UserID      int64         `json:"user_id" validate:"required,min=1"`
	Title       string        `json:"title" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=5000"`
	Slug        *string       `json:"slug,omitempty" validate:"omitempty,max=200"`
	Length      int           `json:"length" validate:"required,min=1,max=1440"`
	Slots       []SlotRequest `json:"slots" validate:"dive"`
	Location    *string       `json:"location,omitempty" validate:"omitempty,max=500"`
}

type UpdateSessionRequest struct {
	Title       *string       `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string       `json:"description,omitempty" validate:"omitempty,max=5000"`
	Slug        *string       `json:"slug,omitempty" validate:"omitempty,min=1,max=200"`
	Length      *int          `json:"length,omitempty" validate:"omitempty,min=1,max=1440"`
	Location    *string       `json:"location,omitempty" validate:"omitempty,max=500"`
	Slots       []SlotRequest `json:"slots,omitempty" validate:"omitempty,dive"`
}

func toSlotInputs(slots []SlotRequest) []model.SlotInput {
	inputs := make([]model.SlotInput, 0, len(slots))
	for _, s := range slots {
		start, _ := model.ParseDate(s.StartDate)
		end, _ := model.ParseDate(s.EndDate)
		inputs = append(inputs, model.SlotInput{
			StartDate: start,
			EndDate:   end,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	return inputs
}

func parseSessionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, service.NewValidationError("id", "must be a valid session id")
	}
	return id, nil
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var request CreateSessionRequest

	if err := c.BodyParser(&request); err != nil {
		return fail(c, fiber.StatusBadRequest, "Cannot parse JSON")
	}

	if err := h.validate.Struct(&request); err != nil {
		return h.errs.Respond(c, toValidationError(err))
	}

	created, err := h.sessionService.CreateSession(c.UserContext(), service.CreateSessionInput{
		UserID:      request.UserID,
		Title:       request.Title,
		Description: request.Description,
		Slug:        request.Slug,
		Length:      request.Length,
		Slots:       toSlotInputs(request.Slots),
		Location:    request.Location,
	})
	if err != nil {
		return h.errs.Respond(c, err)
	}

	if sub, err := GetSubjectFromClaims(c); err == nil {
		slog.InfoContext(c.UserContext(), "Session created by operator", slog.String("operator", sub), slog.String("session_id", created.ID.String()))
	}

	return success(c, fiber.StatusCreated, created)
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return h.errs.Respond(c, service.NewValidationError("user_id", "must be a positive integer"))
	}

	sessions, err := h.sessionService.ListSessions(c.UserContext(), userID)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	return success(c, fiber.StatusOK, sessions)
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	session, err := h.sessionService.GetSession(c.UserContext(), id)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	return success(c, fiber.StatusOK, session)
}

func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	var request UpdateSessionRequest
	if err := c.BodyParser(&request); err != nil {
		return fail(c, fiber.StatusBadRequest, "Cannot parse JSON")
	}

	if err := h.validate.Struct(&request); err != nil {
		return h.errs.Respond(c, toValidationError(err))
	}

	session, err := h.sessionService.UpdateSession(c.UserContext(), id, service.UpdateSessionInput{
		Title:       request.Title,
		Description: request.Description,
		Slug:        request.Slug,
		Length:      request.Length,
		Location:    request.Location,
		Slots:       toSlotInputs(request.Slots),
	})
	if err != nil {
		return h.errs.Respond(c, err)
	}

	return success(c, fiber.StatusOK, session)
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	if err := h.sessionService.DeleteSession(c.UserContext(), id); err != nil {
		return h.errs.Respond(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"id": id, "deleted": true})
}

func (h *SessionHandler) ListParticipants(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	participants, err := h.sessionService.ListParticipants(c.UserContext(), id)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	return success(c, fiber.StatusOK, participants)
}
