package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukex/dealflow/pkg/automation"
	"github.com/dukex/dealflow/pkg/cmd"
	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/log"
	"github.com/dukex/dealflow/pkg/otelhelper"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/dukex/dealflow/pkg/sweep"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "dealflow-engine"

func main() {
	cmd := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Run pipeline automations for deal changes",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewValidateCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of event handlers running in parallel",
				Value:   4,
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.IntFlag{
				Name:    "max-automation-hops",
				Usage:   "Automation-caused changes processed per originating change",
				Value:   automation.DefaultMaxHops,
				Sources: cli.EnvVars("MAX_AUTOMATION_HOPS"),
			},
			&cli.StringFlag{
				Name:    "age-sweep-schedule",
				Usage:   "Cron expression of the deal age sweep",
				Value:   sweep.DefaultSchedule,
				Sources: cli.EnvVars("AGE_SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "age-marker-url",
				Usage:   "Redis URL of the age marker store shared by engine instances",
				Sources: cli.EnvVars("AGE_MARKER_URL"),
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

			tracer, err := otelhelper.NewTracer(ctx, serviceName)
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			logger := log.WithModule(serviceName)

			logger.InfoContext(ctx, "Initializing Dealflow engine")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			if markerURL := command.String("age-marker-url"); markerURL != "" {
				markers := cmd.NewAgeMarkers(ctx, logger, markerURL)
				defer func() {
					if err := markers.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close age marker store", "error", err)
					}
				}()

				store = persistence.WithAgeMarkers(store, markers)
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), serviceName, logger,
				eventbus.WithWorkers(int(command.Int("workers"))),
				eventbus.WithTracer(tracer),
			)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			engine := NewEngine(store, eventBus, logger, Config{
				MaxHops:       int(command.Int("max-automation-hops")),
				SweepSchedule: command.String("age-sweep-schedule"),
				Tracer:        tracer,
			})

			return engine.Start(ctx)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("Engine failed", "error", err)
		os.Exit(1)
	}
}
