package api

import (
	"strconv"

	"session-service/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
	errs             *ErrorResponder
}

func NewDashboardHandler(dashboardService service.DashboardService, errs *ErrorResponder) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, errs: errs}
}

// GetDashboard forwards the caller's bearer token to the learning platform,
// which is the one that validates it.
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	token, problem := bearerToken(c)
	if problem != "" {
		return fail(c, fiber.StatusUnauthorized, problem)
	}

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return h.errs.Respond(c, service.NewValidationError("user_id", "must be a positive integer"))
	}

	dashboard, err := h.dashboardService.GetDashboard(c.UserContext(), userID, token)
	if err != nil {
		return h.errs.Respond(c, err)
	}

	return success(c, fiber.StatusOK, dashboard)
}
