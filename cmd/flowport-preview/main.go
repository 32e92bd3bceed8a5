// Package main provides the flowport preview server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/flowport/pkg/cmd"
	"github.com/dukex/flowport/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultAddr = ":9092"

func main() {
	logger := log.WithModule("preview")

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Serve embedded editor previews of workflows and executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Address to listen on",
				Value:   defaultAddr,
				Sources: cli.EnvVars("PREVIEW_ADDR"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for active execution tracking. Empty disables tracking",
				Sources: cli.EnvVars("REDIS_URL"),
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

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			tracer, shutdown, err := cmd.NewTracer(ctx, command.Bool("tracing"), serviceName)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			defer func() {
				err := shutdown(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
				}
			}()

			app, err := NewApp(ctx, logger, Config{
				DatabaseURL:  command.String("database-url"),
				RedisURL:     command.String("redis-url"),
				EventBus:     command.String("event-bus"),
				KafkaBrokers: command.String("kafka-brokers"),
				Tracer:       tracer,
			})
			if err != nil {
				logger.ErrorContext(ctx, "Failed to initialize preview server", "error", err)

				return cli.Exit(err.Error(), 1)
			}
			defer app.Close(context.WithoutCancel(ctx))

			err = app.Run(ctx, command.String("addr"))
			if err != nil {
				logger.ErrorContext(ctx, "Preview server stopped", "error", err)

				return cli.Exit(err.Error(), 1)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("flowport-preview failed", "error", err)
		os.Exit(1)
	}
}
