package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/dukex/flowport/pkg/otelhelper"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

// LoadEnv loads .env style files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadEnv(logger *slog.Logger, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, name := range files {
		err := godotenv.Load(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return err
		}

		logger.Debug("Loaded environment file", "file", name)
	}

	return nil
}

// NewTracer returns an exporting tracer when enabled and a no-op tracer otherwise.
func NewTracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, serviceName)
}
