package api

import (
	"context"

	"session-service/internal/model"

	"github.com/gofiber/fiber/v2"
)

type OrphanLister interface {
	List(ctx context.Context) ([]model.OrphanedRemoteEvent, error)
}

type OrphanHandler struct {
	orphans OrphanLister
	errs    *ErrorResponder
}

func NewOrphanHandler(orphans OrphanLister, errs *ErrorResponder) *OrphanHandler {
	return &OrphanHandler{orphans: orphans, errs: errs}
}

func (h *OrphanHandler) ListOrphans(c *fiber.Ctx) error {
	orphans, err := h.orphans.List(c.UserContext())
	if err != nil {
		return h.errs.Respond(c, err)
	}
	return success(c, fiber.StatusOK, orphans)
}
