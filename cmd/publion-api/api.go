// Package main provides the Publion API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/publion/publion/internal/analyzer"
	"github.com/publion/publion/internal/connections"
	"github.com/publion/publion/internal/generator"
	"github.com/publion/publion/internal/imaging"
	"github.com/publion/publion/internal/publisher"
	"github.com/publion/publion/internal/scraper"
	"github.com/publion/publion/pkg/cmd"
	"github.com/publion/publion/pkg/engine"
	"github.com/publion/publion/pkg/eventbus"
	"github.com/publion/publion/pkg/otelhelper"
	"github.com/publion/publion/pkg/persistence"
	"github.com/publion/publion/pkg/services"
	"github.com/publion/publion/pkg/web"
)

// APIConfig holds everything the server needs beyond the listen port.
type APIConfig struct {
	DatabaseURL       string
	EventBus          string
	CheckpointURL     string
	ScraperServiceURL string
	ScraperAPIKey     string
	Retention         time.Duration
	Tracing           bool
}

type API struct {
	logger             *slog.Logger
	persistence        persistence.Persistence
	eventBus           eventbus.EventBus
	executionsService  *services.Executions
	connectionsService *services.Connections
	validate           *validator.Validate
	retention          time.Duration
	sweeper            *cron.Cron
}

// NewAPI assembles storage, the event bus, the stage orchestrator and the
// services behind the HTTP surface.
func NewAPI(ctx context.Context, logger *slog.Logger, config APIConfig) (*API, error) {
	store, err := cmd.NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	eventBus, err := cmd.NewEventBus(config.EventBus, logger)
	if err != nil {
		return nil, err
	}

	checkpoints, err := cmd.NewCheckpointStore(ctx, config.CheckpointURL)
	if err != nil {
		return nil, err
	}

	var tracer trace.Tracer
	if config.Tracing {
		tracer, err = otelhelper.NewTracer(ctx, "publion-api")
		if err != nil {
			return nil, err
		}
	}

	connectionRepo := store.ConnectionRepository()

	orchestrator := engine.NewOrchestrator(engine.Config{
		Executions:  store.ExecutionRepository(),
		Checkpoints: checkpoints,
		EventBus:    eventBus,
		Collaborators: engine.Collaborators{
			Scraper: scraper.New(scraper.Config{
				ServiceURL: config.ScraperServiceURL,
				APIKey:     config.ScraperAPIKey,
			}, logger),
			Analyzer:    analyzer.New(logger),
			Generator:   generator.New(logger),
			Credentials: connections.NewChecker(connectionRepo, logger),
			Images:      imaging.NewFetcher(logger),
			Publisher:   publisher.New(publisher.Config{}, connectionRepo, logger),
		},
		Tracer: tracer,
		Logger: logger,
	})

	return &API{
		logger:             logger,
		persistence:        store,
		eventBus:           eventBus,
		executionsService:  services.NewExecutions(store, orchestrator, logger),
		connectionsService: services.NewConnections(store, logger),
		validate:           validator.New(validator.WithRequiredStructEnabled()),
		retention:          config.Retention,
	}, nil
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.executionsService, a.connectionsService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Publion API")
	})

	v1 := app.Group("/v1")
	v1.Post("/executions", handlers.CreateExecution)
	v1.Get("/executions/:id", handlers.GetExecution)
	v1.Post("/executions/:id/actions", handlers.PostAction)
	v1.Get("/inbox", handlers.GetInbox)

	v1.Post("/connections", handlers.AddConnection)
	v1.Get("/connections", handlers.GetConnections)
	v1.Put("/connections/:id/tokens", handlers.UpdateConnectionTokens)
	v1.Delete("/connections/:id", handlers.DeleteConnection)

	app.Get("/health", handlers.HealthCheck)

	return app
}

// Start recovers runs orphaned by the previous process, schedules the
// retention sweep and serves HTTP until the listener stops.
func (a *API) Start(ctx context.Context, port int) error {
	recovered, err := a.executionsService.RecoverStuck(ctx)
	if err != nil {
		return err
	}

	if recovered > 0 {
		a.logger.InfoContext(ctx, "Terminated runs orphaned by previous process", "count", recovered)
	}

	a.sweeper = cron.New()

	_, err = a.sweeper.AddFunc("@hourly", func() {
		removed, sweepErr := a.executionsService.SweepTerminal(context.Background(), a.retention)
		if sweepErr != nil {
			a.logger.Error("Retention sweep failed", "error", sweepErr)

			return
		}

		if removed > 0 {
			a.logger.Info("Removed expired terminal runs", "count", removed)
		}
	})
	if err != nil {
		return err
	}

	a.sweeper.Start()

	return a.App().Listen(":" + strconv.Itoa(port))
}

func (a *API) Close(ctx context.Context) {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	if err := a.eventBus.Close(); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := a.persistence.Close(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
