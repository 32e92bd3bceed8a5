// Package postgresql provides PostgreSQL persistence for workflows, credentials, tags and ownership.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowport/pkg/persistence"
	"github.com/dukex/flowport/pkg/persistence/sqlbase"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	*repositories

	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence opens the database, pings it and runs pending migrations.
// URLs with the pgx:// scheme use the pgx driver, everything else uses lib/pq.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	driver, dsn := driverFor(databaseURL)

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.InfoContext(ctx, "Connected to PostgreSQL", "driver", driver)

	return &Persistence{
		repositories: newRepositories(database, logger),
		db:           database,
		logger:       logger,
	}, nil
}

func driverFor(databaseURL string) (string, string) {
	if rest, ok := strings.CutPrefix(databaseURL, "pgx://"); ok {
		return "pgx", "postgres://" + rest
	}

	return "postgres", databaseURL
}

// Transact runs fn inside a database transaction.
func (p *Persistence) Transact(ctx context.Context, fn persistence.TxFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(ctx, newRepositories(tx, p.logger))
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			p.logger.ErrorContext(ctx, "failed to rollback transaction", "error", rollbackErr)
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// atomically runs fn in a transaction unless q already is one.
func atomically(ctx context.Context, q querier, fn func(q querier) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(tx)
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}

type repositories struct {
	workflows   *WorkflowRepository
	credentials *CredentialRepository
	tags        *TagRepository
	users       *UserRepository
	roles       *RoleRepository
	sharing     *SharingRepository
}

func newRepositories(q querier, logger *slog.Logger) *repositories {
	return &repositories{
		workflows:   NewWorkflowRepository(q, logger),
		credentials: NewCredentialRepository(q, logger),
		tags:        NewTagRepository(q, logger),
		users:       NewUserRepository(q),
		roles:       NewRoleRepository(q),
		sharing:     NewSharingRepository(q, logger),
	}
}

func (r *repositories) Workflows() persistence.WorkflowRepository     { return r.workflows }
func (r *repositories) Credentials() persistence.CredentialRepository { return r.credentials }
func (r *repositories) Tags() persistence.TagRepository               { return r.tags }
func (r *repositories) Users() persistence.UserRepository             { return r.users }
func (r *repositories) Roles() persistence.RoleRepository             { return r.roles }
func (r *repositories) Sharing() persistence.SharingRepository        { return r.sharing }

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
