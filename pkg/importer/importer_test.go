package importer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowport/pkg/events"
	"github.com/dukex/flowport/pkg/importer"
	"github.com/dukex/flowport/pkg/mocks"
	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/dukex/flowport/pkg/persistence/file"
	"github.com/dukex/flowport/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected upsert failure")

// failingPersistence fails the Nth workflow upsert made inside a transaction.
type failingPersistence struct {
	*file.Persistence

	failOnUpsert int
	credentials  persistence.CredentialRepository
}

func (f *failingPersistence) Credentials() persistence.CredentialRepository {
	if f.credentials != nil {
		return f.credentials
	}

	return f.Persistence.Credentials()
}

func (f *failingPersistence) Transact(ctx context.Context, fn persistence.TxFunc) error {
	return f.Persistence.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		return fn(ctx, &failingRepositories{
			Repositories: repos,
			workflows:    &failingWorkflows{WorkflowRepository: repos.Workflows(), failOn: f.failOnUpsert},
		})
	})
}

type failingRepositories struct {
	persistence.Repositories

	workflows *failingWorkflows
}

func (r *failingRepositories) Workflows() persistence.WorkflowRepository {
	return r.workflows
}

type failingWorkflows struct {
	persistence.WorkflowRepository

	calls  int
	failOn int
}

func (w *failingWorkflows) Upsert(ctx context.Context, workflow *models.Workflow) error {
	w.calls++
	if w.calls == w.failOn {
		return errInjected
	}

	return w.WorkflowRepository.Upsert(ctx, workflow)
}

type fixture struct {
	store  *file.Persistence
	owner  *testutil.Owner
	logs   *bytes.Buffer
	logger *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logs := &bytes.Buffer{}

	return &fixture{
		store:  store,
		owner:  testutil.SeedOwner(t.Context(), t, store),
		logs:   logs,
		logger: slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

func (f *fixture) saveCredential(t *testing.T, id, name, credentialType string) {
	t.Helper()

	require.NoError(t, f.store.Credentials().Save(t.Context(), &models.Credential{ID: id, Name: name, Type: credentialType}))
}

func sequentialIDs() func() string {
	next := 0

	return func() string {
		next++

		return fmt.Sprintf("generated-%d", next)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

func TestRun_LegacyCredentialScenario(t *testing.T) {
	f := newFixture(t)
	f.saveCredential(t, "c1", "My Cred", "fooApi")

	input := writeFile(t, t.TempDir(), "export.json",
		`[{"id":null,"name":"Legacy","nodes":[{"name":"Call","type":"fooNode","credentials":{"fooApi":"My Cred"}}],"connections":{},"active":true}]`)

	imp := importer.New(f.store, f.logger, importer.WithIDGenerator(sequentialIDs()))

	report, err := imp.Run(t.Context(), importer.Options{Input: input})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.WorkflowIDs, 1)
	assert.Equal(t, "generated-1", report.WorkflowIDs[0])
	assert.Equal(t, []string{"generated-1"}, report.Deactivated)
	assert.Empty(t, report.Unresolved)

	stored, err := f.store.Workflows().GetByID(t.Context(), "generated-1")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, "generated-2", stored.Nodes[0].ID)

	reference := stored.Nodes[0].Credentials["fooApi"]
	require.NotNil(t, reference)
	require.NotNil(t, reference.ID)
	assert.Equal(t, "c1", *reference.ID)
	assert.Equal(t, "My Cred", reference.Name)

	shares, err := f.store.Sharing().GetByWorkflowID(t.Context(), "generated-1")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, f.owner.User.ID, shares[0].UserID)
	assert.Equal(t, f.owner.WorkflowRole.ID, shares[0].RoleID)

	assert.Contains(t, f.logs.String(), "Deactivated workflow on import")
}

func TestImport_CredentialMatchCount(t *testing.T) {
	f := newFixture(t)
	f.saveCredential(t, "c1", "Unique", "fooApi")
	f.saveCredential(t, "c2", "Twice", "fooApi")
	f.saveCredential(t, "c3", "Twice", "fooApi")
	f.saveCredential(t, "c4", "Unique", "barApi")

	workflow := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(
			testutil.WithNodeName("A"),
			testutil.WithLegacyCredential("fooApi", "Unique"),
			testutil.WithLegacyCredential("barApi", "Unique"),
		),
		testutil.CreateTestNode(
			testutil.WithNodeName("B"),
			testutil.WithLegacyCredential("fooApi", "Twice"),
		),
		testutil.CreateTestNode(
			testutil.WithNodeName("C"),
			testutil.WithLegacyCredential("fooApi", "Missing"),
		),
	))

	report, err := importer.New(f.store, f.logger).Import(t.Context(), []*models.Workflow{workflow}, "")
	require.NoError(t, err)

	stored, err := f.store.Workflows().GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, "c1", *stored.NodeByName("A").Credentials["fooApi"].ID)
	assert.Equal(t, "c4", *stored.NodeByName("A").Credentials["barApi"].ID)
	assert.Nil(t, stored.NodeByName("B").Credentials["fooApi"].ID)
	assert.Equal(t, "Twice", stored.NodeByName("B").Credentials["fooApi"].Name)
	assert.Nil(t, stored.NodeByName("C").Credentials["fooApi"].ID)

	require.Len(t, report.Unresolved, 2)
	assert.Equal(t, "B", report.Unresolved[0].NodeName)
	assert.Equal(t, "Twice", report.Unresolved[0].Name)
	assert.Equal(t, "C", report.Unresolved[1].NodeName)
	assert.Equal(t, 0, report.RepairFailures)
}

func TestImport_RollsBackWholeBatch(t *testing.T) {
	f := newFixture(t)
	failing := &failingPersistence{Persistence: f.store, failOnUpsert: 2}

	workflows := []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("first"), testutil.WithTagNames("billing")),
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("second")),
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("third")),
	}

	publisher := &mocks.MockEventBus{}

	report, err := importer.New(failing, f.logger, importer.WithEventPublisher(publisher)).Import(t.Context(), workflows, "")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, errInjected)

	var importErr *importer.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, importer.StagePersist, importErr.Stage)
	assert.Equal(t, workflows[1].ID, importErr.Source)

	for _, workflow := range workflows {
		_, err := f.store.Workflows().GetByID(t.Context(), workflow.ID)
		assert.True(t, persistence.IsWorkflowNotFound(err), workflow.Name)

		shares, err := f.store.Sharing().GetByWorkflowID(t.Context(), workflow.ID)
		require.NoError(t, err)
		assert.Empty(t, shares)
	}

	tags, err := f.store.Tags().GetAll(t.Context())
	require.NoError(t, err)
	assert.Empty(t, tags)

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestImport_PublishesEventsAfterCommit(t *testing.T) {
	f := newFixture(t)

	workflows := []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithActive(true)),
		testutil.CreateTestWorkflow(),
	}

	publisher := &mocks.MockEventBus{}
	publisher.On("Publish", mock.Anything, workflows[0].ID, mock.MatchedBy(func(event events.WorkflowImported) bool {
		return event.WorkflowID == workflows[0].ID && event.Deactivated && event.UserID == f.owner.User.ID
	})).Return(nil).Once()
	publisher.On("Publish", mock.Anything, workflows[1].ID, mock.MatchedBy(func(event events.WorkflowImported) bool {
		return event.WorkflowID == workflows[1].ID && !event.Deactivated
	})).Return(errors.New("broker down")).Once()

	report, err := importer.New(f.store, f.logger, importer.WithEventPublisher(publisher)).Import(t.Context(), workflows, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)

	publisher.AssertExpectations(t)
	assert.Contains(t, f.logs.String(), "Failed to publish workflow imported event")
}

func TestImport_TagsAreCreatedOnceAndReused(t *testing.T) {
	f := newFixture(t)

	existing := &models.Tag{Name: "ops"}
	require.NoError(t, f.store.Tags().Save(t.Context(), existing))

	workflows := []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithTagNames("billing", "ops")),
		testutil.CreateTestWorkflow(testutil.WithTagNames("billing", "billing")),
		testutil.CreateTestWorkflow(func(w *models.Workflow) {
			w.Tags = []*models.Tag{{ID: existing.ID, Name: "renamed elsewhere"}}
		}),
	}

	report, err := importer.New(f.store, f.logger).Import(t.Context(), workflows, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.TagsCreated)

	tags, err := f.store.Tags().GetAll(t.Context())
	require.NoError(t, err)
	require.Len(t, tags, 2)

	first, err := f.store.Workflows().GetByID(t.Context(), workflows[0].ID)
	require.NoError(t, err)
	require.Len(t, first.Tags, 2)

	second, err := f.store.Workflows().GetByID(t.Context(), workflows[1].ID)
	require.NoError(t, err)
	require.Len(t, second.Tags, 1)
	assert.Equal(t, first.Tags[0].ID, second.Tags[0].ID)

	third, err := f.store.Workflows().GetByID(t.Context(), workflows[2].ID)
	require.NoError(t, err)
	require.Len(t, third.Tags, 1)
	assert.Equal(t, existing.ID, third.Tags[0].ID)
	assert.Equal(t, "ops", third.Tags[0].Name)
}

func TestImport_OwnershipErrors(t *testing.T) {
	t.Run("explicit user that does not exist", func(t *testing.T) {
		f := newFixture(t)

		_, err := importer.New(f.store, f.logger).Import(t.Context(), []*models.Workflow{testutil.CreateTestWorkflow()}, "nobody")
		require.Error(t, err)
		assert.True(t, importer.IsUserNotFound(err))
		assert.Contains(t, err.Error(), "user not found")
	})

	t.Run("explicit user", func(t *testing.T) {
		f := newFixture(t)

		other := &models.User{Email: "member@example.com", GlobalRoleID: "member"}
		require.NoError(t, f.store.Users().Save(t.Context(), other))

		workflow := testutil.CreateTestWorkflow()

		_, err := importer.New(f.store, f.logger).Import(t.Context(), []*models.Workflow{workflow}, other.ID)
		require.NoError(t, err)

		shares, err := f.store.Sharing().GetByWorkflowID(t.Context(), workflow.ID)
		require.NoError(t, err)
		require.Len(t, shares, 1)
		assert.Equal(t, other.ID, shares[0].UserID)
	})

	t.Run("missing workflow owner role", func(t *testing.T) {
		store := file.NewPersistence(t.TempDir())

		_, err := importer.New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Import(t.Context(), []*models.Workflow{testutil.CreateTestWorkflow()}, "")
		require.Error(t, err)
		assert.True(t, importer.IsOwnerRoleNotFound(err))
		assert.Contains(t, err.Error(), "owner workflow role not found")
	})

	t.Run("no instance owner", func(t *testing.T) {
		store := file.NewPersistence(t.TempDir())
		require.NoError(t, store.Roles().Save(t.Context(), &models.Role{Name: models.RoleOwner, Scope: models.RoleScopeWorkflow}))
		require.NoError(t, store.Roles().Save(t.Context(), &models.Role{Name: models.RoleOwner, Scope: models.RoleScopeGlobal}))

		workflow := testutil.CreateTestWorkflow()

		_, err := importer.New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Import(t.Context(), []*models.Workflow{workflow}, "")
		require.Error(t, err)
		assert.True(t, importer.IsUserNotFound(err))

		_, err = store.Workflows().GetByID(t.Context(), workflow.ID)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})
}

func TestRun_ValidationFailsBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not an array or object", content: `"workflow"`},
		{name: "missing connections", content: `[{"nodes":[]}]`},
		{name: "missing nodes in second element", content: `[{"nodes":[],"connections":{}},{"connections":{}}]`},
		{name: "element is not an object", content: `[{"nodes":[],"connections":{}}, 42]`},
		{name: "nodes is not an array", content: `[{"nodes":{},"connections":{}}]`},
		{name: "not json", content: `{nodes:`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			input := writeFile(t, t.TempDir(), "export.json", tt.content)

			_, err := importer.New(f.store, f.logger).Run(t.Context(), importer.Options{Input: input})
			require.Error(t, err)
			assert.True(t, importer.IsInvalidInput(err))

			all, err := f.store.Workflows().GetAll(t.Context())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestRun_SingleObjectIsWrapped(t *testing.T) {
	f := newFixture(t)
	input := writeFile(t, t.TempDir(), "one.json", `{"id":"wf-1","name":"One","nodes":[],"connections":{}}`)

	report, err := importer.New(f.store, f.logger).Run(t.Context(), importer.Options{Input: input})
	require.NoError(t, err)
	assert.Equal(t, []string{"wf-1"}, report.WorkflowIDs)
}

func TestRun_SeparateDirectory(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	writeFile(t, dir, "b.json", `{"id":"wf-b","name":"B","nodes":[{"name":"Start","type":"start"}],"connections":{}}`)
	writeFile(t, dir, "a.json", `{"name":"A","nodes":[],"connections":{},"active":true}`)
	writeFile(t, dir, "notes.txt", `not a workflow`)

	imp := importer.New(f.store, f.logger, importer.WithIDGenerator(sequentialIDs()))

	report, err := imp.Run(t.Context(), importer.Options{Input: dir, Separate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, []string{"generated-1", "wf-b"}, report.WorkflowIDs)
	assert.Equal(t, []string{"generated-1"}, report.Deactivated)

	stored, err := f.store.Workflows().GetByID(t.Context(), "wf-b")
	require.NoError(t, err)
	assert.Equal(t, "generated-2", stored.Nodes[0].ID)
}

func TestRun_SeparateRequiresDirectory(t *testing.T) {
	f := newFixture(t)
	input := writeFile(t, t.TempDir(), "export.json", `[]`)

	_, err := importer.New(f.store, f.logger).Run(t.Context(), importer.Options{Input: input, Separate: true})
	require.Error(t, err)
	assert.True(t, importer.IsNotADirectory(err))

	_, err = importer.New(f.store, f.logger).Run(t.Context(), importer.Options{Input: filepath.Join(t.TempDir(), "missing"), Separate: true})
	require.Error(t, err)
	assert.False(t, importer.IsNotADirectory(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_RequiresInput(t *testing.T) {
	f := newFixture(t)

	_, err := importer.New(f.store, f.logger).Run(t.Context(), importer.Options{})
	require.Error(t, err)

	var importErr *importer.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, importer.StageOptions, importErr.Stage)
}

func TestImport_RepairsStaleCredentialIDs(t *testing.T) {
	f := newFixture(t)
	f.saveCredential(t, "c-new", "My Cred", "fooApi")

	workflow := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(testutil.WithCredential("fooApi", "c-deleted", "My Cred")),
	))

	report, err := importer.New(f.store, f.logger).Import(t.Context(), []*models.Workflow{workflow}, "")
	require.NoError(t, err)

	stored, err := f.store.Workflows().GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "c-new", *stored.Nodes[0].Credentials["fooApi"].ID)
	assert.Empty(t, report.Unresolved)
	assert.Equal(t, 0, report.RepairFailures)
}

func TestImport_RepairFailuresDoNotAbort(t *testing.T) {
	f := newFixture(t)

	credentials := &mocks.MockCredentialRepository{}
	credentials.On("GetAll", mock.Anything).Return([]*models.Credential{}, nil)
	credentials.On("FindByNameAndType", mock.Anything, "Gone", "fooApi").Return(nil, errors.New("connection reset"))

	store := &failingPersistence{Persistence: f.store, credentials: credentials}

	workflow := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(testutil.WithLegacyCredential("fooApi", "Gone")),
	))

	report, err := importer.New(store, f.logger).Import(t.Context(), []*models.Workflow{workflow}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.RepairFailures)
	assert.Equal(t, 1, report.Imported)

	_, err = f.store.Workflows().GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), "Failed to repair credential reference")

	credentials.AssertExpectations(t)
}

func TestImportJSON_ExistingWorkflowIsReplaced(t *testing.T) {
	f := newFixture(t)
	imp := importer.New(f.store, f.logger)

	_, err := imp.ImportJSON(t.Context(), []byte(`[{"id":"wf-1","name":"Before","nodes":[],"connections":{}}]`), "")
	require.NoError(t, err)

	_, err = imp.ImportJSON(t.Context(), []byte(`[{"id":"wf-1","name":"After","nodes":[],"connections":{}}]`), "")
	require.NoError(t, err)

	all, err := f.store.Workflows().GetAll(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "After", all[0].Name)

	shares, err := f.store.Sharing().GetByWorkflowID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}
