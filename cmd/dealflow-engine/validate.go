package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dukex/dealflow/pkg/cmd"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/dukex/dealflow/pkg/services"
	"github.com/dukex/dealflow/pkg/sweep"
	"github.com/urfave/cli/v3"
)

// ErrInvalidPipelines is returned when at least one stored pipeline fails validation.
var ErrInvalidPipelines = errors.New("invalid pipelines found")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate stored pipelines and the age sweep schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "age-sweep-schedule",
				Usage:   "Cron expression of the deal age sweep",
				Value:   sweep.DefaultSchedule,
				Sources: cli.EnvVars("AGE_SWEEP_SCHEDULE"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With(
				"module", serviceName,
				"action", "validate",
			)

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			return validate(ctx, os.Stdout, store, command.String("age-sweep-schedule"))
		},
	}
}

func validate(ctx context.Context, out io.Writer, store persistence.Persistence, schedule string) error {
	sweeper := sweep.NewSweeper(store, nil, slog.Default(), sweep.WithSchedule(schedule))
	if err := sweeper.Validate(); err != nil {
		return err
	}

	reports, err := services.NewPipeline(store).ValidateAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pipelines: %w", err)
	}

	_, _ = fmt.Fprintln(out, "Pipeline Validation Results:")
	_, _ = fmt.Fprintln(out, "============================")

	invalid := 0

	for _, report := range reports {
		_, _ = fmt.Fprintf(out, "\nPipeline: %s (account %s)\n", report.PipelineID, report.AccountID)

		if report.Err != nil {
			_, _ = fmt.Fprintf(out, "    ❌ INVALID: %v\n", report.Err)
			invalid++

			continue
		}

		_, _ = fmt.Fprintf(out, "    ✅ VALID\n")
	}

	_, _ = fmt.Fprintf(out, "\nSummary: %d valid, %d invalid\n", len(reports)-invalid, invalid)

	if invalid > 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPipelines, invalid)
	}

	return nil
}
