package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukex/flowport/pkg/cmd"
	"github.com/dukex/flowport/pkg/eventbus"
	"github.com/dukex/flowport/pkg/events"
	"github.com/dukex/flowport/pkg/executions"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/dukex/flowport/pkg/preview"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "flowport-preview"

type Config struct {
	DatabaseURL  string
	RedisURL     string
	EventBus     string
	KafkaBrokers string
	Tracer       trace.Tracer
}

// App owns the preview server and the connections it was built from.
type App struct {
	logger      *slog.Logger
	server      *preview.Server
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	redis       *redis.Client
}

func NewApp(ctx context.Context, logger *slog.Logger, config Config) (*App, error) {
	app := &App{logger: logger}

	p, err := cmd.NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	app.persistence = p

	app.eventBus, err = cmd.NewEventBus(config.EventBus, config.KafkaBrokers, serviceName, logger)
	if err != nil {
		app.Close(ctx)

		return nil, err
	}

	opts := []preview.ServerOption{}
	if config.Tracer != nil {
		opts = append(opts, preview.WithServerTracer(config.Tracer))
	}

	if app.eventBus != nil {
		opts = append(opts, preview.WithSink(preview.NewEventSink(app.eventBus, logger)))
	}

	if config.RedisURL != "" {
		app.redis, err = executions.Connect(ctx, config.RedisURL)
		if err != nil {
			app.Close(ctx)

			return nil, err
		}

		opts = append(opts, preview.WithTracker(executions.NewTracker(app.redis, logger)))
	} else {
		logger.WarnContext(ctx, "No redis url configured, execution previews will not show the active execution")
	}

	app.server = preview.NewServer(p.Workflows(), logger, opts...)

	if app.eventBus != nil {
		err = app.eventBus.Handle(events.WorkflowImportedEvent, app.server.HandleWorkflowImported)
		if err != nil {
			app.Close(ctx)

			return nil, err
		}
	}

	return app, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run subscribes to workflow events and serves until ctx is done.
func (a *App) Run(ctx context.Context, addr string) error {
	if a.eventBus != nil {
		err := a.eventBus.Subscribe(ctx)
		if err != nil {
			return err
		}
	}

	err := a.server.ListenAndServe(ctx, addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (a *App) Close(ctx context.Context) {
	if a.eventBus != nil {
		err := a.eventBus.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}

	if a.redis != nil {
		err := a.redis.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
		}
	}

	if a.persistence != nil {
		err := a.persistence.Close(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}
}
