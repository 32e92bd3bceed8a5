package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
)

type SharingRepository struct {
	db     querier
	logger *slog.Logger
}

func NewSharingRepository(db querier, logger *slog.Logger) *SharingRepository {
	return &SharingRepository{db: db, logger: logger}
}

// Upsert stores the share keyed by (workflow_id, user_id).
func (r *SharingRepository) Upsert(ctx context.Context, share *models.SharedWorkflow) error {
	now := time.Now().UTC()
	if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}

	share.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO shared_workflow (workflow_id, user_id, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, user_id) DO UPDATE SET
			role_id = EXCLUDED.role_id
		  , updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`, share.WorkflowID, share.UserID, share.RoleID, share.CreatedAt, share.UpdatedAt).Scan(&share.CreatedAt)
	if err != nil {
		key := share.WorkflowID + "/" + share.UserID

		return persistence.NewEntityError("Upsert", "shared workflow", key, fmt.Errorf("failed to upsert share: %w", err))
	}

	return nil
}

func (r *SharingRepository) GetByWorkflowID(ctx context.Context, workflowID string) ([]*models.SharedWorkflow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT workflow_id, user_id, role_id, created_at, updated_at
		FROM shared_workflow
		WHERE workflow_id = $1
		ORDER BY user_id
	`, workflowID)
	if err != nil {
		return nil, persistence.NewEntityError("GetByWorkflowID", "shared workflow", workflowID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	shares := make([]*models.SharedWorkflow, 0, 1)

	for rows.Next() {
		var share models.SharedWorkflow

		err := rows.Scan(&share.WorkflowID, &share.UserID, &share.RoleID, &share.CreatedAt, &share.UpdatedAt)
		if err != nil {
			return nil, persistence.NewEntityError("GetByWorkflowID", "shared workflow", workflowID, err)
		}

		shares = append(shares, &share)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewEntityError("GetByWorkflowID", "shared workflow", workflowID, err)
	}

	return shares, nil
}
