package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/google/uuid"
)

type CredentialRepository struct {
	db     querier
	logger *slog.Logger
}

func NewCredentialRepository(db querier, logger *slog.Logger) *CredentialRepository {
	return &CredentialRepository{db: db, logger: logger}
}

const selectCredentials = `SELECT id, name, type, data, created_at, updated_at FROM credentials_entity`

func (r *CredentialRepository) GetAll(ctx context.Context) ([]*models.Credential, error) {
	credentials, err := r.query(ctx, selectCredentials+" ORDER BY id")
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "credential", "", err)
	}

	return credentials, nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	var credential models.Credential

	err := r.db.QueryRowContext(ctx, selectCredentials+" WHERE id = $1", id).Scan(
		&credential.ID, &credential.Name, &credential.Type, &credential.Data, &credential.CreatedAt, &credential.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewEntityError("GetByID", "credential", id, persistence.ErrCredentialNotFound)
	}

	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "credential", id, err)
	}

	return &credential, nil
}

func (r *CredentialRepository) FindByNameAndType(ctx context.Context, name, credentialType string) ([]*models.Credential, error) {
	credentials, err := r.query(ctx, selectCredentials+" WHERE name = $1 AND type = $2 ORDER BY id", name, credentialType)
	if err != nil {
		return nil, persistence.NewEntityError("FindByNameAndType", "credential", "", err)
	}

	return credentials, nil
}

func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	if credential.ID == "" {
		credential.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials_entity (id, name, type, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , type = EXCLUDED.type
		  , data = EXCLUDED.data
		  , updated_at = EXCLUDED.updated_at
	`, credential.ID, credential.Name, credential.Type, credential.Data, credential.CreatedAt, credential.UpdatedAt)
	if err != nil {
		return persistence.NewEntityError("Save", "credential", credential.ID, fmt.Errorf("failed to save credential: %w", err))
	}

	return nil
}

func (r *CredentialRepository) query(ctx context.Context, query string, args ...any) ([]*models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	credentials := make([]*models.Credential, 0)

	for rows.Next() {
		var credential models.Credential

		err := rows.Scan(&credential.ID, &credential.Name, &credential.Type, &credential.Data, &credential.CreatedAt, &credential.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, &credential)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}
