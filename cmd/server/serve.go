package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"session-service/internal/api"
	"session-service/internal/calcom"
	"session-service/internal/config"
	"session-service/internal/events"
	"session-service/internal/lms"
	"session-service/internal/repository"
	"session-service/internal/service"
	"session-service/internal/tracing"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Require("DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "CAL_API_KEY", "CAL_USERNAME", "JWT_SECRET"); err != nil {
		return err
	}

	api.SetupGlobalHandler(serviceName, cfg.LogLevel, cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracerProvider(ctx, tracing.Options{
		ServiceName: serviceName,
		Version:     version,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Error("Error shutting down tracer provider", slog.String("error", err.Error()))
		}
	}()

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("Successfully connected to the database.")

	sessionRepo := repository.NewPostgresSessionRepository(db)
	slotRepo := repository.NewPostgresSlotRepository(db)
	orphanRepo := repository.NewPostgresOrphanRepository(db)

	var publisher events.EventPublisher = events.NopPublisher{}
	natsConn, err := nats.Connect(cfg.NATSURL, nats.Name(serviceName))
	if err != nil {
		slog.Warn("Failed to connect to NATS, lifecycle events disabled", slog.String("error", err.Error()))
	} else {
		defer natsConn.Drain()
		publisher = events.NewNatsPublisher(natsConn)
		slog.Info("Successfully connected to NATS.")

		orphanSubscriber := events.NewOrphanSubscriber(natsConn, orphanRepo)
		if err := orphanSubscriber.Start(); err != nil {
			slog.Warn("Failed to start orphan subscriber", slog.String("error", err.Error()))
		} else {
			defer orphanSubscriber.Stop()
		}
	}

	gateway := calcom.NewClient(calcom.Options{
		BaseURL:    cfg.CalBaseURL,
		APIKey:     cfg.CalAPIKey,
		APIVersion: cfg.CalAPIVersion,
		Timeout:    cfg.HTTPClientTimeout,
	})

	serviceCfg := service.SessionServiceConfig{
		BookingBaseURL: cfg.CalBookingBaseURL,
		Username:       cfg.CalUsername,
		TimeZone:       cfg.CalTimezone,
		Location:       cfg.Location(),
	}
	sessionService := service.NewSessionService(gateway, sessionRepo, slotRepo, publisher, serviceCfg)

	errs := api.NewErrorResponder(cfg.IsDevelopment())
	handlers := api.Handlers{
		Sessions: api.NewSessionHandler(sessionService, errs),
		Orphans:  api.NewOrphanHandler(orphanRepo, errs),
	}

	if cfg.LMSBaseURL != "" {
		lmsClient := lms.NewClient(cfg.LMSBaseURL, cfg.HTTPClientTimeout)
		dashboardService := service.NewDashboardService(lmsClient, sessionService, serviceCfg)
		handlers.Dashboard = api.NewDashboardHandler(dashboardService, errs)
	} else {
		slog.Warn("LMS_BASE_URL is not set, dashboard route disabled")
	}

	app := newApp(cfg)
	api.SetupRoutes(app, handlers, cfg.JWTSecret)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("Listening session-service", slog.String("port", cfg.Port))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down session-service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func newApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	app.Use(otelfiber.Middleware())
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":  "fail",
				"message": "Too many request, please try again later.",
			})
		},
	}))
	app.Use(api.PrometheusMiddleware())

	return app
}
