package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/google/uuid"
)

type UserRepository struct {
	db querier
}

func NewUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

const selectUsers = `SELECT id, COALESCE(email, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), global_role_id, created_at FROM "user"`

func scanUser(row scanner) (*models.User, error) {
	var user models.User

	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.GlobalRoleID, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUsers+" WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewEntityError("GetByID", "user", id, persistence.ErrUserNotFound)
	}

	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "user", id, err)
	}

	return user, nil
}

// GetByGlobalRole returns the oldest user holding the global role.
func (r *UserRepository) GetByGlobalRole(ctx context.Context, roleID string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUsers+" WHERE global_role_id = $1 ORDER BY created_at LIMIT 1", roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewEntityError("GetByGlobalRole", "user", "", persistence.ErrUserNotFound)
	}

	if err != nil {
		return nil, persistence.NewEntityError("GetByGlobalRole", "user", "", err)
	}

	return user, nil
}

func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO "user" (id, email, first_name, last_name, global_role_id, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email
		  , first_name = EXCLUDED.first_name
		  , last_name = EXCLUDED.last_name
		  , global_role_id = EXCLUDED.global_role_id
	`, user.ID, user.Email, user.FirstName, user.LastName, user.GlobalRoleID, user.CreatedAt)
	if err != nil {
		return persistence.NewEntityError("Save", "user", user.ID, fmt.Errorf("failed to save user: %w", err))
	}

	return nil
}

type RoleRepository struct {
	db querier
}

func NewRoleRepository(db querier) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) FindByNameAndScope(ctx context.Context, name string, scope models.RoleScope) (*models.Role, error) {
	var role models.Role

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, scope FROM role WHERE name = $1 AND scope = $2", name, string(scope),
	).Scan(&role.ID, &role.Name, &role.Scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewEntityError("FindByNameAndScope", "role", "", persistence.ErrRoleNotFound)
	}

	if err != nil {
		return nil, persistence.NewEntityError("FindByNameAndScope", "role", "", err)
	}

	return &role, nil
}

// Save stores the role. A role with the same name and scope keeps its existing id.
func (r *RoleRepository) Save(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO role (id, name, scope) VALUES ($1, $2, $3)
		ON CONFLICT (name, scope) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, role.ID, role.Name, string(role.Scope)).Scan(&role.ID)
	if err != nil {
		return persistence.NewEntityError("Save", "role", role.ID, fmt.Errorf("failed to save role: %w", err))
	}

	return nil
}
