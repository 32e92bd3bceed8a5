package importer

import (
	"context"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
)

type credentialKey struct {
	name           string
	credentialType string
}

// Snapshot holds the credentials and tags that existed when an import started.
// It is read-only once built.
type Snapshot struct {
	credentials map[credentialKey][]models.Credential
	ids         map[string]bool
	tags        []models.Tag
}

// LoadSnapshot reads all credentials and tags from repos.
func LoadSnapshot(ctx context.Context, repos persistence.Repositories) (*Snapshot, error) {
	credentials, err := repos.Credentials().GetAll(ctx)
	if err != nil {
		return nil, newImportError(StageSnapshot, "credentials", err)
	}

	tags, err := repos.Tags().GetAll(ctx)
	if err != nil {
		return nil, newImportError(StageSnapshot, "tags", err)
	}

	return NewSnapshot(credentials, tags), nil
}

// NewSnapshot copies the given entities so later changes to them are not observed.
func NewSnapshot(credentials []*models.Credential, tags []*models.Tag) *Snapshot {
	snapshot := &Snapshot{
		credentials: make(map[credentialKey][]models.Credential, len(credentials)),
		ids:         make(map[string]bool, len(credentials)),
		tags:        make([]models.Tag, 0, len(tags)),
	}

	for _, credential := range credentials {
		key := credentialKey{name: credential.Name, credentialType: credential.Type}
		snapshot.credentials[key] = append(snapshot.credentials[key], *credential)
		snapshot.ids[credential.ID] = true
	}

	for _, tag := range tags {
		snapshot.tags = append(snapshot.tags, *tag)
	}

	return snapshot
}

// CredentialIDs returns the ids of every credential named name with the given type.
func (s *Snapshot) CredentialIDs(name, credentialType string) []string {
	matches := s.credentials[credentialKey{name: name, credentialType: credentialType}]

	ids := make([]string, 0, len(matches))
	for _, credential := range matches {
		ids = append(ids, credential.ID)
	}

	return ids
}

// HasCredential reports whether a credential with id existed when the snapshot was taken.
func (s *Snapshot) HasCredential(id string) bool {
	return s.ids[id]
}

// Tags returns copies of the tags in the snapshot.
func (s *Snapshot) Tags() []*models.Tag {
	tags := make([]*models.Tag, 0, len(s.tags))

	for _, tag := range s.tags {
		tags = append(tags, &tag)
	}

	return tags
}
