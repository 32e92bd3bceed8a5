// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukex/flowport/pkg/persistence"
	"github.com/dukex/flowport/pkg/persistence/file"
	"github.com/dukex/flowport/pkg/persistence/postgresql"
)

var ErrMissingDatabaseURL = errors.New("database url is required")

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "pgx"}

// NewPersistence opens the store named by databaseURL. postgres://, postgresql://
// and pgx:// URLs open the SQL store; anything else is a file store root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if databaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql", "pgx":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "file"
	}

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
