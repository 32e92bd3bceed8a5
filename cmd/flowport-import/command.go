package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowport/pkg/cmd"
	"github.com/dukex/flowport/pkg/importer"
	"github.com/dukex/flowport/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "flowport-import"

func NewImportCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      serviceName,
		Usage:     "Import workflows from a JSON export",
		UsageText: "flowport-import --input=file.json\nflowport-import --separate --input=backups/latest/",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Usage: "Input file name or directory if --separate is used",
			},
			&cli.BoolFlag{
				Name:  "separate",
				Usage: "Imports *.json files from directory provided by --input",
			},
			&cli.StringFlag{
				Name:    "userId",
				Aliases: []string{"user-id"},
				Usage:   "The ID of the user to assign the imported workflows to",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka). Empty disables events",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			return ctx, cmd.LoadEnv(logger)
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			input := command.String("input")
			if input == "" {
				logger.InfoContext(ctx, "An input file or directory with --input must be provided")

				return nil
			}

			report, err := runImport(ctx, logger, command, importer.Options{
				Input:    input,
				Separate: command.Bool("separate"),
				UserID:   command.String("userId"),
			})
			if err != nil {
				logger.ErrorContext(ctx, "An error occurred while importing workflows", "error", err)

				return cli.Exit(err.Error(), 1)
			}

			for _, id := range report.Deactivated {
				logger.InfoContext(ctx, "Workflow was deactivated and must be activated again", "workflow_id", id)
			}

			logger.InfoContext(ctx, fmt.Sprintf("Successfully imported %d workflows", report.Imported),
				"tags_created", report.TagsCreated,
				"unresolved_credentials", len(report.Unresolved),
			)

			return nil
		},
	}
}

func runImport(ctx context.Context, logger *slog.Logger, command *cli.Command, opts importer.Options) (*importer.Report, error) {
	tracer, shutdown, err := cmd.NewTracer(ctx, command.Bool("tracing"), serviceName)
	if err != nil {
		return nil, err
	}

	defer func() {
		err := shutdown(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
		}
	}()

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	importerOpts := []importer.Option{importer.WithTracer(tracer)}

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
	if err != nil {
		return nil, err
	}

	if eventBus != nil {
		defer func() {
			err := eventBus.Close()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()

		importerOpts = append(importerOpts, importer.WithEventPublisher(eventBus))
	}

	return importer.New(persistence, logger, importerOpts...).Run(ctx, opts)
}
