package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/google/uuid"
)

type TagRepository struct {
	db     querier
	logger *slog.Logger
}

func NewTagRepository(db querier, logger *slog.Logger) *TagRepository {
	return &TagRepository{db: db, logger: logger}
}

func (r *TagRepository) GetAll(ctx context.Context) ([]*models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM tag_entity ORDER BY name")
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "tag", "", fmt.Errorf("failed to query tags: %w", err))
	}

	defer closeRows(ctx, r.logger, rows)

	tags := make([]*models.Tag, 0)

	for rows.Next() {
		var tag models.Tag

		err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt, &tag.UpdatedAt)
		if err != nil {
			return nil, persistence.NewEntityError("GetAll", "tag", "", fmt.Errorf("failed to scan tag: %w", err))
		}

		tags = append(tags, &tag)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "tag", "", err)
	}

	return tags, nil
}

func (r *TagRepository) Save(ctx context.Context, tag *models.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}

	tag.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tag_entity (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
	`, tag.ID, tag.Name, tag.CreatedAt, tag.UpdatedAt)
	if err != nil {
		return persistence.NewEntityError("Save", "tag", tag.ID, fmt.Errorf("failed to save tag: %w", err))
	}

	return nil
}
