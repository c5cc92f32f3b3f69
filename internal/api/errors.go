package api

import (
	"errors"
	"log/slog"

	"session-service/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ErrorResponder struct {
	development bool
}

func NewErrorResponder(development bool) *ErrorResponder {
	return &ErrorResponder{development: development}
}

func success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{"status": "success", "data": data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"status": statusLabel(status), "message": message})
}

func statusLabel(status int) string {
	if status >= fiber.StatusInternalServerError {
		return "error"
	}
	return "fail"
}

// Respond maps a service error onto an HTTP response. Internal detail is
// only exposed in development.
func (r *ErrorResponder) Respond(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Something went wrong"
	body := fiber.Map{}

	switch service.ErrorKind(err) {
	case service.KindNotFound:
		status = fiber.StatusNotFound
		message = err.Error()
	case service.KindValidation:
		status = fiber.StatusBadRequest
		message = err.Error()
		if fields := fieldErrors(err); fields != nil {
			body["errors"] = fields
			message = "Invalid input"
		}
	case service.KindRemoteProvider:
		if remote := service.RemoteStatus(err); remote > 0 {
			status = remote
		}
		message = service.RemoteMessage(err)
	}

	if status >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "Request failed",
			slog.String("path", c.Path()),
			slog.String("kind", string(service.ErrorKind(err))),
			slog.String("error", err.Error()),
		)
	}

	body["status"] = statusLabel(status)
	body["message"] = message
	if r.development {
		body["detail"] = err.Error()
	}

	return c.Status(status).JSON(body)
}

func fieldErrors(err error) map[string]string {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.FieldErrors
	}
	return nil
}
