package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Sessions  *SessionHandler
	Orphans   *OrphanHandler
	Dashboard *DashboardHandler
}

func SetupRoutes(app *fiber.App, h Handlers, jwtSecret string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "session-service"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")

	sessions := v1.Group("/sessions", AuthMiddleware(jwtSecret))
	sessions.Post("/", h.Sessions.CreateSession)
	sessions.Get("/", h.Sessions.ListSessions)
	sessions.Get("/:id", h.Sessions.GetSession)
	sessions.Put("/:id", h.Sessions.UpdateSession)
	sessions.Delete("/:id", h.Sessions.DeleteSession)
	sessions.Get("/:id/participants", h.Sessions.ListParticipants)

	if h.Orphans != nil {
		v1.Get("/orphans", AuthMiddleware(jwtSecret), h.Orphans.ListOrphans)
	}

	if h.Dashboard != nil {
		v1.Get("/dashboard", h.Dashboard.GetDashboard)
	}
}
