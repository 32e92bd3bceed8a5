package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     querier
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db querier, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const selectWorkflows = `
	SELECT
		id
	  , name
	  , active
	  , nodes
	  , connections
	  , settings
	  , static_data
	  , pin_data
	  , meta
	  , created_at
	  , updated_at
	FROM workflow_entity
`

// GetAll returns all workflows ordered by name.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, selectWorkflows+" ORDER BY name, id")
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "workflow", "", fmt.Errorf("failed to query workflows: %w", err))
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)
	byID := make(map[string]*models.Workflow)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewEntityError("GetAll", "workflow", "", err)
		}

		workflows = append(workflows, workflow)
		byID[workflow.ID] = workflow
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "workflow", "", fmt.Errorf("error iterating workflows: %w", err))
	}

	err = r.loadTags(ctx, byID, "")
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "workflow", "", err)
	}

	return workflows, nil
}

// GetByID returns ErrWorkflowNotFound when no workflow has the id.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, selectWorkflows+" WHERE id = $1", id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewEntityError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "workflow", id, err)
	}

	err = r.loadTags(ctx, map[string]*models.Workflow{id: workflow}, id)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "workflow", id, err)
	}

	return workflow, nil
}

// Upsert inserts or replaces the workflow and its tag links. created_at survives replacement.
func (r *WorkflowRepository) Upsert(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := jsonColumn(workflow.Nodes, "[]")
	if err != nil {
		return persistence.NewEntityError("Upsert", "workflow", workflow.ID, err)
	}

	connections, err := jsonColumn(workflow.Connections, "{}")
	if err != nil {
		return persistence.NewEntityError("Upsert", "workflow", workflow.ID, err)
	}

	optional := make([]any, 0, 4)

	for _, value := range []any{workflow.Settings, workflow.StaticData, workflow.PinData, workflow.Meta} {
		column, err := jsonColumn(value, "")
		if err != nil {
			return persistence.NewEntityError("Upsert", "workflow", workflow.ID, err)
		}

		optional = append(optional, column)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	query := `
		INSERT INTO workflow_entity (
			id, name, active, nodes, connections, settings, static_data, pin_data, meta, created_at, updated_at
		) VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb, $9::jsonb, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , active = EXCLUDED.active
		  , nodes = EXCLUDED.nodes
		  , connections = EXCLUDED.connections
		  , settings = EXCLUDED.settings
		  , static_data = EXCLUDED.static_data
		  , pin_data = EXCLUDED.pin_data
		  , meta = EXCLUDED.meta
		  , updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err = atomically(ctx, r.db, func(q querier) error {
		err := q.QueryRowContext(ctx, query,
			workflow.ID, workflow.Name, workflow.Active, nodes, connections,
			optional[0], optional[1], optional[2], optional[3],
			workflow.CreatedAt, workflow.UpdatedAt,
		).Scan(&workflow.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert workflow: %w", err)
		}

		_, err = q.ExecContext(ctx, "DELETE FROM workflows_tags WHERE workflow_id = $1", workflow.ID)
		if err != nil {
			return fmt.Errorf("failed to clear workflow tags: %w", err)
		}

		for _, tagID := range workflow.TagIDs() {
			_, err = q.ExecContext(ctx,
				"INSERT INTO workflows_tags (workflow_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				workflow.ID, tagID)
			if err != nil {
				return fmt.Errorf("failed to link tag %s: %w", tagID, err)
			}
		}

		return nil
	})
	if err != nil {
		return persistence.NewEntityError("Upsert", "workflow", workflow.ID, err)
	}

	return nil
}

// Delete removes the workflow. Tag links and shares cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_entity WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "workflow", id, fmt.Errorf("failed to delete workflow: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewEntityError("Delete", "workflow", id, err)
	}

	if affected == 0 {
		return persistence.NewEntityError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// loadTags attaches tags to the given workflows. An empty workflowID loads links for all workflows.
func (r *WorkflowRepository) loadTags(ctx context.Context, workflows map[string]*models.Workflow, workflowID string) error {
	if len(workflows) == 0 {
		return nil
	}

	query := `
		SELECT wt.workflow_id, t.id, t.name, t.created_at, t.updated_at
		FROM workflows_tags wt
		JOIN tag_entity t ON t.id = wt.tag_id
		WHERE $1 = '' OR wt.workflow_id = $1
		ORDER BY t.name
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return fmt.Errorf("failed to query workflow tags: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	for rows.Next() {
		var (
			owner string
			tag   models.Tag
		)

		err := rows.Scan(&owner, &tag.ID, &tag.Name, &tag.CreatedAt, &tag.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan workflow tag: %w", err)
		}

		if workflow, ok := workflows[owner]; ok {
			workflow.Tags = append(workflow.Tags, &tag)
		}
	}

	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow                                          models.Workflow
		nodes, connections, settings, staticData, pinData []byte
		meta                                              []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Active,
		&nodes,
		&connections,
		&settings,
		&staticData,
		&pinData,
		&meta,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	columns := []struct {
		data   []byte
		target any
	}{
		{nodes, &workflow.Nodes},
		{connections, &workflow.Connections},
		{settings, &workflow.Settings},
		{staticData, &workflow.StaticData},
		{pinData, &workflow.PinData},
		{meta, &workflow.Meta},
	}

	for _, column := range columns {
		if len(column.data) == 0 {
			continue
		}

		err := json.Unmarshal(column.data, column.target)
		if err != nil {
			return nil, fmt.Errorf("failed to decode workflow %s: %w", workflow.ID, err)
		}
	}

	return &workflow, nil
}

// jsonColumn encodes value for a JSONB parameter. A JSON null becomes fallback,
// or SQL NULL when fallback is empty.
func jsonColumn(value any, fallback string) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON column: %w", err)
	}

	if string(data) == "null" {
		if fallback == "" {
			return nil, nil
		}

		return fallback, nil
	}

	return string(data), nil
}
