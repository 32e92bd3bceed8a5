// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"
	"testing"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:          uuid.NewString(),
		Name:        "HTTP Request",
		Type:        "n8n-nodes-base.httpRequest",
		TypeVersion: 1,
		Position:    []float64{100, 200},
		Parameters:  map[string]any{"url": "https://example.com"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithLegacyCredential adds a name-only credential reference, as older exports carry.
func WithLegacyCredential(credentialType, name string) func(*models.Node) {
	return func(n *models.Node) {
		if n.Credentials == nil {
			n.Credentials = make(map[string]*models.NodeCredential)
		}

		n.Credentials[credentialType] = &models.NodeCredential{Name: name, Legacy: true}
	}
}

// WithCredential adds a resolved credential reference.
func WithCredential(credentialType, id, name string) func(*models.Node) {
	return func(n *models.Node) {
		if n.Credentials == nil {
			n.Credentials = make(map[string]*models.NodeCredential)
		}

		n.Credentials[credentialType] = &models.NodeCredential{ID: models.StringPtr(id), Name: name}
	}
}

// WithNodeName sets the node name.
func WithNodeName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// CreateTestWorkflow creates a test Workflow with one node that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:          uuid.NewString(),
		Name:        "Test Workflow",
		Nodes:       []*models.Node{CreateTestNode()},
		Connections: map[string]any{},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

func WithNodes(nodes ...*models.Node) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Nodes = nodes
	}
}

func WithActive(active bool) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Active = active
	}
}

// WithTagNames attaches unsaved tags referenced by name only.
func WithTagNames(names ...string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		for _, name := range names {
			w.Tags = append(w.Tags, &models.Tag{Name: name})
		}
	}
}

func WithWorkflowName(name string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Name = name
	}
}

// Owner is the instance owner created by SeedOwner.
type Owner struct {
	User         *models.User
	GlobalRole   *models.Role
	WorkflowRole *models.Role
}

// SeedOwner stores the owner roles and an instance owner user.
func SeedOwner(ctx context.Context, t *testing.T, repos persistence.Repositories) *Owner {
	t.Helper()

	owner := &Owner{
		GlobalRole:   &models.Role{Name: models.RoleOwner, Scope: models.RoleScopeGlobal},
		WorkflowRole: &models.Role{Name: models.RoleOwner, Scope: models.RoleScopeWorkflow},
	}

	require.NoError(t, repos.Roles().Save(ctx, owner.GlobalRole))
	require.NoError(t, repos.Roles().Save(ctx, owner.WorkflowRole))

	owner.User = &models.User{Email: "owner@example.com", FirstName: "Instance", LastName: "Owner", GlobalRoleID: owner.GlobalRole.ID}
	require.NoError(t, repos.Users().Save(ctx, owner.User))

	return owner
}
