package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/publion/publion/pkg/log"
	"github.com/publion/publion/pkg/services"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "publion-api",
		Usage:                 "Turn article URLs into reviewed social media posts",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres URL or a directory path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "checkpoint-url",
				Usage:   "Redis URL for durable suspension checkpoints (empty keeps them in memory)",
				Sources: cli.EnvVars("CHECKPOINT_URL"),
			},
			&cli.StringFlag{
				Name:    "scraper-service-url",
				Usage:   "Base URL of the scraping service (empty enables direct fetching)",
				Sources: cli.EnvVars("SCRAPER_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "scraper-api-key",
				Usage:   "API key for the scraping service",
				Sources: cli.EnvVars("SCRAPER_API_KEY"),
			},
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "How long completed and terminated runs are kept",
				Value:   services.DefaultRetention,
				Sources: cli.EnvVars("RETENTION"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces for pipeline stages",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Publion API")

			api, err := NewAPI(ctx, logger, APIConfig{
				DatabaseURL:       command.String("database-url"),
				EventBus:          command.String("event-bus"),
				CheckpointURL:     command.String("checkpoint-url"),
				ScraperServiceURL: command.String("scraper-service-url"),
				ScraperAPIKey:     command.String("scraper-api-key"),
				Retention:         command.Duration("retention"),
				Tracing:           command.Bool("tracing"),
			})
			if err != nil {
				return err
			}
			defer api.Close(ctx)

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
