package importer

import (
	"context"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
)

// tagResolver maps workflow tag references onto stored tags for one import batch.
// Tags it creates are remembered so later workflows of the batch reuse them.
type tagResolver struct {
	byID    map[string]*models.Tag
	byName  map[string]*models.Tag
	created int
}

func newTagResolver(snapshot *Snapshot) *tagResolver {
	resolver := &tagResolver{
		byID:   make(map[string]*models.Tag),
		byName: make(map[string]*models.Tag),
	}

	for _, tag := range snapshot.Tags() {
		resolver.remember(tag)
	}

	return resolver
}

func (r *tagResolver) remember(tag *models.Tag) {
	r.byID[tag.ID] = tag
	r.byName[tag.Name] = tag
}

// Resolve replaces the workflow's tags with stored ones, matching by id and then
// by name, and creates the tags that do not exist yet through repo.
func (r *tagResolver) Resolve(ctx context.Context, repo persistence.TagRepository, workflow *models.Workflow) error {
	if len(workflow.Tags) == 0 {
		return nil
	}

	resolved := make([]*models.Tag, 0, len(workflow.Tags))
	seen := make(map[string]bool, len(workflow.Tags))

	for _, reference := range workflow.Tags {
		if reference == nil {
			continue
		}

		tag, err := r.lookupOrCreate(ctx, repo, reference)
		if err != nil {
			return err
		}

		if tag == nil || seen[tag.ID] {
			continue
		}

		seen[tag.ID] = true

		resolved = append(resolved, tag)
	}

	workflow.Tags = resolved

	return nil
}

func (r *tagResolver) lookupOrCreate(ctx context.Context, repo persistence.TagRepository, reference *models.Tag) (*models.Tag, error) {
	if reference.ID != "" {
		if tag, ok := r.byID[reference.ID]; ok {
			return tag, nil
		}
	}

	if reference.Name == "" {
		return nil, nil
	}

	if tag, ok := r.byName[reference.Name]; ok {
		return tag, nil
	}

	tag := &models.Tag{Name: reference.Name}

	err := repo.Save(ctx, tag)
	if err != nil {
		return nil, err
	}

	r.remember(tag)
	r.created++

	return tag, nil
}
