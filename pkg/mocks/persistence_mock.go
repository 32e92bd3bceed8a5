package mocks

import (
	"context"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Upsert(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockCredentialRepository is a mock implementation of persistence.CredentialRepository interface.
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) GetAll(ctx context.Context) ([]*models.Credential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Credential), args.Error(1)
}

func (m *MockCredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Credential), args.Error(1)
}

func (m *MockCredentialRepository) FindByNameAndType(ctx context.Context, name, credentialType string) ([]*models.Credential, error) {
	args := m.Called(ctx, name, credentialType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	args := m.Called(ctx, credential)

	return args.Error(0)
}

// MockPersistence wraps a real store and lets tests replace single repositories
// and the health check.
type MockPersistence struct {
	persistence.Persistence
	mock.Mock

	WorkflowRepo   persistence.WorkflowRepository
	CredentialRepo persistence.CredentialRepository
}

func (m *MockPersistence) Workflows() persistence.WorkflowRepository {
	if m.WorkflowRepo != nil {
		return m.WorkflowRepo
	}

	return m.Persistence.Workflows()
}

func (m *MockPersistence) Credentials() persistence.CredentialRepository {
	if m.CredentialRepo != nil {
		return m.CredentialRepo
	}

	return m.Persistence.Credentials()
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
