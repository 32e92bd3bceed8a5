// Package persistence provides the storage abstraction for workflows, credentials, tags and ownership.
package persistence

import (
	"context"

	"github.com/dukex/flowport/pkg/models"
)

type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	// GetByID returns ErrWorkflowNotFound when no workflow has the id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// Upsert inserts the workflow or replaces the stored one with the same id.
	Upsert(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

type CredentialRepository interface {
	GetAll(ctx context.Context) ([]*models.Credential, error)
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	// FindByNameAndType returns every credential matching both fields exactly.
	FindByNameAndType(ctx context.Context, name, credentialType string) ([]*models.Credential, error)
	Save(ctx context.Context, credential *models.Credential) error
}

type TagRepository interface {
	GetAll(ctx context.Context) ([]*models.Tag, error)
	Save(ctx context.Context, tag *models.Tag) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByGlobalRole returns the first user holding the global role.
	GetByGlobalRole(ctx context.Context, roleID string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

type RoleRepository interface {
	FindByNameAndScope(ctx context.Context, name string, scope models.RoleScope) (*models.Role, error)
	Save(ctx context.Context, role *models.Role) error
}

type SharingRepository interface {
	// Upsert stores the share keyed by (WorkflowID, UserID).
	Upsert(ctx context.Context, share *models.SharedWorkflow) error
	GetByWorkflowID(ctx context.Context, workflowID string) ([]*models.SharedWorkflow, error)
}

// Repositories groups the repositories of one store or of one open transaction.
type Repositories interface {
	Workflows() WorkflowRepository
	Credentials() CredentialRepository
	Tags() TagRepository
	Users() UserRepository
	Roles() RoleRepository
	Sharing() SharingRepository
}

// TxFunc runs inside a transaction. Returning an error rolls the transaction back.
type TxFunc func(ctx context.Context, repos Repositories) error

type Persistence interface {
	Repositories

	// Transact runs fn in a transaction and commits when fn returns nil.
	Transact(ctx context.Context, fn TxFunc) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
