package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ persistence.Persistence = (*Persistence)(nil)

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")

	fp := NewPersistence(root)
	require.NoError(t, fp.HealthCheck(t.Context()))

	notADir := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0600))
	assert.Error(t, NewPersistence(notADir).HealthCheck(t.Context()))
}

func TestWorkflowRepository_UpsertAndGet(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	workflow := &models.Workflow{
		ID:          "wf-1",
		Name:        "Test Workflow",
		Nodes:       []*models.Node{{ID: "n1", Name: "Start", Type: "manualTrigger"}},
		Connections: map[string]any{},
	}

	require.NoError(t, fp.Workflows().Upsert(ctx, workflow))
	assert.False(t, workflow.CreatedAt.IsZero())

	createdAt := workflow.CreatedAt

	got, err := fp.Workflows().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Workflow", got.Name)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "n1", got.Nodes[0].ID)

	time.Sleep(5 * time.Millisecond)

	updated := &models.Workflow{ID: "wf-1", Name: "Renamed", Connections: map[string]any{}}
	require.NoError(t, fp.Workflows().Upsert(ctx, updated))

	got, err = fp.Workflows().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.CreatedAt.Equal(createdAt))
	assert.True(t, got.UpdatedAt.After(createdAt))

	all, err := fp.Workflows().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	_, err := fp.Workflows().GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = fp.Workflows().Delete(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	all, err := fp.Workflows().GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWorkflowRepository_RejectsUnsafeIDs(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		err := fp.Workflows().Upsert(ctx, &models.Workflow{ID: id})
		require.Error(t, err, id)
		assert.True(t, persistence.IsInvalidID(err), id)
	}
}

func TestWorkflowRepository_DeleteRemovesSharing(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	require.NoError(t, fp.Workflows().Upsert(ctx, &models.Workflow{ID: "wf-1", Name: "one"}))
	require.NoError(t, fp.Workflows().Upsert(ctx, &models.Workflow{ID: "wf-2", Name: "two"}))
	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-1", UserID: "u1", RoleID: "r1"}))
	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-2", UserID: "u1", RoleID: "r1"}))

	require.NoError(t, fp.Workflows().Delete(ctx, "wf-1"))

	shares, err := fp.Sharing().GetByWorkflowID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, shares)

	shares, err = fp.Sharing().GetByWorkflowID(ctx, "wf-2")
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}

func TestSharingRepository_UpsertIsKeyedByWorkflowAndUser(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-1", UserID: "u1", RoleID: "r1"}))
	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-1", UserID: "u1", RoleID: "r2"}))
	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-1", UserID: "u2", RoleID: "r1"}))

	shares, err := fp.Sharing().GetByWorkflowID(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, "u1", shares[0].UserID)
	assert.Equal(t, "r2", shares[0].RoleID)
}

func TestCredentialRepository_FindByNameAndType(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	for _, credential := range []*models.Credential{
		{ID: "c1", Name: "My Cred", Type: "fooApi"},
		{ID: "c2", Name: "My Cred", Type: "barApi"},
		{ID: "c3", Name: "Shared", Type: "fooApi"},
		{ID: "c4", Name: "Shared", Type: "fooApi"},
	} {
		require.NoError(t, fp.Credentials().Save(ctx, credential))
	}

	matches, err := fp.Credentials().FindByNameAndType(ctx, "My Cred", "fooApi")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ID)

	matches, err = fp.Credentials().FindByNameAndType(ctx, "Shared", "fooApi")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = fp.Credentials().FindByNameAndType(ctx, "Nope", "fooApi")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = fp.Credentials().GetByID(ctx, "c9")
	assert.True(t, persistence.IsCredentialNotFound(err))
}

func TestUserAndRoleRepositories(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	globalOwner := &models.Role{Name: models.RoleOwner, Scope: models.RoleScopeGlobal}
	require.NoError(t, fp.Roles().Save(ctx, globalOwner))
	require.NotEmpty(t, globalOwner.ID)

	role, err := fp.Roles().FindByNameAndScope(ctx, models.RoleOwner, models.RoleScopeGlobal)
	require.NoError(t, err)
	assert.Equal(t, globalOwner.ID, role.ID)

	_, err = fp.Roles().FindByNameAndScope(ctx, models.RoleOwner, models.RoleScopeWorkflow)
	assert.True(t, persistence.IsRoleNotFound(err))

	_, err = fp.Users().GetByGlobalRole(ctx, globalOwner.ID)
	assert.True(t, persistence.IsUserNotFound(err))

	owner := &models.User{Email: "owner@example.com", GlobalRoleID: globalOwner.ID}
	require.NoError(t, fp.Users().Save(ctx, owner))

	got, err := fp.Users().GetByGlobalRole(ctx, globalOwner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ID)

	got, err = fp.Users().GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", got.Email)
}

func TestPersistence_TransactCommits(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	err := fp.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		err := repos.Workflows().Upsert(ctx, &models.Workflow{ID: "wf-1", Name: "one"})
		if err != nil {
			return err
		}

		// Reads inside the transaction see staged writes.
		got, err := repos.Workflows().GetByID(ctx, "wf-1")
		if err != nil {
			return err
		}

		assert.Equal(t, "one", got.Name)

		_, err = fp.Workflows().GetByID(ctx, "wf-1")
		assert.True(t, persistence.IsWorkflowNotFound(err))

		return repos.Tags().Save(ctx, &models.Tag{Name: "billing"})
	})
	require.NoError(t, err)

	got, err := fp.Workflows().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "one", got.Name)

	tags, err := fp.Tags().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "billing", tags[0].Name)
}

func TestPersistence_TransactRollsBack(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	require.NoError(t, fp.Workflows().Upsert(ctx, &models.Workflow{ID: "existing", Name: "before"}))

	boom := errors.New("boom")

	err := fp.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		require.NoError(t, repos.Workflows().Upsert(ctx, &models.Workflow{ID: "wf-1", Name: "one"}))
		require.NoError(t, repos.Workflows().Upsert(ctx, &models.Workflow{ID: "existing", Name: "after"}))
		require.NoError(t, repos.Workflows().Delete(ctx, "wf-1"))
		require.NoError(t, repos.Workflows().Upsert(ctx, &models.Workflow{ID: "wf-3", Name: "three"}))

		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := fp.Workflows().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "before", all[0].Name)
}

func TestStaged_ClosedAfterCommit(t *testing.T) {
	tx := newStaged(&disk{root: t.TempDir()})

	require.NoError(t, tx.write(workflowsKind, "wf-1", []byte(`{}`)))
	require.NoError(t, tx.commit())

	assert.ErrorIs(t, tx.write(workflowsKind, "wf-2", []byte(`{}`)), persistence.ErrTransactionClosed)
	assert.ErrorIs(t, tx.commit(), persistence.ErrTransactionClosed)
}

func TestPersistence_FailedCommitRestoresDisk(t *testing.T) {
	ctx := t.Context()
	root := t.TempDir()
	fp := NewPersistence(root)

	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-0", UserID: "u-1", RoleID: "owner"}))

	// A regular file where the tags directory belongs makes the tags flush fail
	// after the sharing records were already written.
	require.NoError(t, os.WriteFile(filepath.Join(root, tagsKind), []byte("x"), 0600))

	err := fp.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		require.NoError(t, repos.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-0", UserID: "u-1", RoleID: "editor"}))
		require.NoError(t, repos.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "wf-1", UserID: "u-1", RoleID: "owner"}))
		require.NoError(t, repos.Workflows().Upsert(ctx, &models.Workflow{ID: "wf-1", Name: "one"}))

		return repos.Tags().Save(ctx, &models.Tag{Name: "ops"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit tags")

	shares, err := fp.Sharing().GetByWorkflowID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, shares)

	shares, err = fp.Sharing().GetByWorkflowID(ctx, "wf-0")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "owner", shares[0].RoleID)

	_, err = fp.Workflows().GetByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestSharingRepository_IDsWithUnderscores(t *testing.T) {
	ctx := t.Context()
	fp := NewPersistence(t.TempDir())

	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "a_b", UserID: "c", RoleID: "owner"}))
	require.NoError(t, fp.Sharing().Upsert(ctx, &models.SharedWorkflow{WorkflowID: "a", UserID: "b_c", RoleID: "owner"}))

	shares, err := fp.Sharing().GetByWorkflowID(ctx, "a_b")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "c", shares[0].UserID)

	shares, err = fp.Sharing().GetByWorkflowID(ctx, "a")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "b_c", shares[0].UserID)
}
