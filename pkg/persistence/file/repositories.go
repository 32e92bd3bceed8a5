package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/google/uuid"
)

const (
	workflowsKind   = "workflows"
	credentialsKind = "credentials"
	tagsKind        = "tags"
	usersKind       = "users"
	rolesKind       = "roles"
	sharingKind     = "shared_workflows"
)

// get decodes the document kind/id. It returns nil when the document does not exist.
func get[T any](docs documents, kind, id string) (*T, error) {
	data, found, err := docs.read(kind, id)
	if err != nil || !found {
		return nil, err
	}

	var value T

	err = json.Unmarshal(data, &value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}

	return &value, nil
}

// all decodes every document of a kind ordered by id.
func all[T any](docs documents, kind string) ([]*T, error) {
	raw, err := docs.list(kind)
	if err != nil {
		return nil, err
	}

	values := make([]*T, 0, len(raw))

	for _, id := range sortedKeys(raw) {
		var value T

		err := json.Unmarshal(raw[id], &value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
		}

		values = append(values, &value)
	}

	return values, nil
}

func put(docs documents, kind, id string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	return docs.write(kind, id, data)
}

// repositories implements persistence.Repositories over a document store.
type repositories struct {
	docs documents
}

func (r *repositories) Workflows() persistence.WorkflowRepository {
	return &workflowRepository{docs: r.docs}
}

func (r *repositories) Credentials() persistence.CredentialRepository {
	return &credentialRepository{docs: r.docs}
}

func (r *repositories) Tags() persistence.TagRepository {
	return &tagRepository{docs: r.docs}
}

func (r *repositories) Users() persistence.UserRepository {
	return &userRepository{docs: r.docs}
}

func (r *repositories) Roles() persistence.RoleRepository {
	return &roleRepository{docs: r.docs}
}

func (r *repositories) Sharing() persistence.SharingRepository {
	return &sharingRepository{docs: r.docs}
}

type workflowRepository struct {
	docs documents
}

func (wr *workflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	workflows, err := all[models.Workflow](wr.docs, workflowsKind)
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "workflow", "", err)
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].Name < workflows[j].Name
	})

	return workflows, nil
}

func (wr *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	workflow, err := get[models.Workflow](wr.docs, workflowsKind, id)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "workflow", id, err)
	}

	if workflow == nil {
		return nil, persistence.NewEntityError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

func (wr *workflowRepository) Upsert(_ context.Context, workflow *models.Workflow) error {
	existing, err := get[models.Workflow](wr.docs, workflowsKind, workflow.ID)
	if err != nil {
		return persistence.NewEntityError("Upsert", "workflow", workflow.ID, err)
	}

	now := time.Now().UTC()
	workflow.UpdatedAt = now

	switch {
	case existing != nil:
		workflow.CreatedAt = existing.CreatedAt
	case workflow.CreatedAt.IsZero():
		workflow.CreatedAt = now
	}

	err = put(wr.docs, workflowsKind, workflow.ID, workflow)
	if err != nil {
		return persistence.NewEntityError("Upsert", "workflow", workflow.ID, err)
	}

	return nil
}

// Delete removes the workflow together with its sharing records.
func (wr *workflowRepository) Delete(_ context.Context, id string) error {
	existing, err := get[models.Workflow](wr.docs, workflowsKind, id)
	if err != nil {
		return persistence.NewEntityError("Delete", "workflow", id, err)
	}

	if existing == nil {
		return persistence.NewEntityError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	shares, err := all[models.SharedWorkflow](wr.docs, sharingKind)
	if err != nil {
		return persistence.NewEntityError("Delete", "workflow", id, err)
	}

	for _, share := range shares {
		if share.WorkflowID != id {
			continue
		}

		err := wr.docs.remove(sharingKind, sharingKey(share.WorkflowID, share.UserID))
		if err != nil {
			return persistence.NewEntityError("Delete", "workflow", id, err)
		}
	}

	err = wr.docs.remove(workflowsKind, id)
	if err != nil {
		return persistence.NewEntityError("Delete", "workflow", id, err)
	}

	return nil
}

type credentialRepository struct {
	docs documents
}

func (cr *credentialRepository) GetAll(_ context.Context) ([]*models.Credential, error) {
	credentials, err := all[models.Credential](cr.docs, credentialsKind)
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "credential", "", err)
	}

	return credentials, nil
}

func (cr *credentialRepository) GetByID(_ context.Context, id string) (*models.Credential, error) {
	credential, err := get[models.Credential](cr.docs, credentialsKind, id)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "credential", id, err)
	}

	if credential == nil {
		return nil, persistence.NewEntityError("GetByID", "credential", id, persistence.ErrCredentialNotFound)
	}

	return credential, nil
}

func (cr *credentialRepository) FindByNameAndType(ctx context.Context, name, credentialType string) ([]*models.Credential, error) {
	credentials, err := cr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Credential, 0, 1)

	for _, credential := range credentials {
		if credential.Name == name && credential.Type == credentialType {
			matches = append(matches, credential)
		}
	}

	return matches, nil
}

func (cr *credentialRepository) Save(_ context.Context, credential *models.Credential) error {
	stamp(&credential.ID, &credential.CreatedAt, &credential.UpdatedAt)

	err := put(cr.docs, credentialsKind, credential.ID, credential)
	if err != nil {
		return persistence.NewEntityError("Save", "credential", credential.ID, err)
	}

	return nil
}

type tagRepository struct {
	docs documents
}

func (tr *tagRepository) GetAll(_ context.Context) ([]*models.Tag, error) {
	tags, err := all[models.Tag](tr.docs, tagsKind)
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "tag", "", err)
	}

	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Name < tags[j].Name
	})

	return tags, nil
}

func (tr *tagRepository) Save(_ context.Context, tag *models.Tag) error {
	stamp(&tag.ID, &tag.CreatedAt, &tag.UpdatedAt)

	err := put(tr.docs, tagsKind, tag.ID, tag)
	if err != nil {
		return persistence.NewEntityError("Save", "tag", tag.ID, err)
	}

	return nil
}

type userRepository struct {
	docs documents
}

func (ur *userRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	user, err := get[models.User](ur.docs, usersKind, id)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "user", id, err)
	}

	if user == nil {
		return nil, persistence.NewEntityError("GetByID", "user", id, persistence.ErrUserNotFound)
	}

	return user, nil
}

func (ur *userRepository) GetByGlobalRole(_ context.Context, roleID string) (*models.User, error) {
	users, err := all[models.User](ur.docs, usersKind)
	if err != nil {
		return nil, persistence.NewEntityError("GetByGlobalRole", "user", "", err)
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	for _, user := range users {
		if user.GlobalRoleID == roleID {
			return user, nil
		}
	}

	return nil, persistence.NewEntityError("GetByGlobalRole", "user", "", persistence.ErrUserNotFound)
}

func (ur *userRepository) Save(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := put(ur.docs, usersKind, user.ID, user)
	if err != nil {
		return persistence.NewEntityError("Save", "user", user.ID, err)
	}

	return nil
}

type roleRepository struct {
	docs documents
}

func (rr *roleRepository) FindByNameAndScope(_ context.Context, name string, scope models.RoleScope) (*models.Role, error) {
	roles, err := all[models.Role](rr.docs, rolesKind)
	if err != nil {
		return nil, persistence.NewEntityError("FindByNameAndScope", "role", "", err)
	}

	for _, role := range roles {
		if role.Name == name && role.Scope == scope {
			return role, nil
		}
	}

	return nil, persistence.NewEntityError("FindByNameAndScope", "role", "", persistence.ErrRoleNotFound)
}

func (rr *roleRepository) Save(_ context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}

	err := put(rr.docs, rolesKind, role.ID, role)
	if err != nil {
		return persistence.NewEntityError("Save", "role", role.ID, err)
	}

	return nil
}

type sharingRepository struct {
	docs documents
}

// sharingKey encodes both ids so that no two (workflow, user) pairs share a file name.
// The encoding alphabet has no '.', which keeps the separator unambiguous.
func sharingKey(workflowID, userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(workflowID)) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func (sr *sharingRepository) Upsert(_ context.Context, share *models.SharedWorkflow) error {
	key := sharingKey(share.WorkflowID, share.UserID)

	existing, err := get[models.SharedWorkflow](sr.docs, sharingKind, key)
	if err != nil {
		return persistence.NewEntityError("Upsert", "shared workflow", key, err)
	}

	now := time.Now().UTC()
	share.UpdatedAt = now

	if existing != nil {
		share.CreatedAt = existing.CreatedAt
	} else if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}

	err = put(sr.docs, sharingKind, key, share)
	if err != nil {
		return persistence.NewEntityError("Upsert", "shared workflow", key, err)
	}

	return nil
}

func (sr *sharingRepository) GetByWorkflowID(_ context.Context, workflowID string) ([]*models.SharedWorkflow, error) {
	shares, err := all[models.SharedWorkflow](sr.docs, sharingKind)
	if err != nil {
		return nil, persistence.NewEntityError("GetByWorkflowID", "shared workflow", workflowID, err)
	}

	matches := make([]*models.SharedWorkflow, 0, 1)

	for _, share := range shares {
		if share.WorkflowID == workflowID {
			matches = append(matches, share)
		}
	}

	return matches, nil
}

// stamp assigns a fresh id when missing and maintains the timestamps.
func stamp(id *string, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()

	if *id == "" {
		*id = uuid.NewString()
	}

	if createdAt.IsZero() {
		*createdAt = now
	}

	*updatedAt = now
}
