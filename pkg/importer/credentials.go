package importer

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
)

// UnresolvedCredential is a node credential reference left without an id after import.
type UnresolvedCredential struct {
	WorkflowID string `json:"workflowId"`
	NodeID     string `json:"nodeId"`
	NodeName   string `json:"nodeName"`
	Type       string `json:"type"`
	Name       string `json:"name"`
}

// ResolveCredentials rewrites legacy name-only references into {id, name} pairs.
// The id is set only when exactly one snapshot credential has the same name and type.
// It reports whether any reference of the workflow is still without an id, or
// points at a credential the snapshot does not know.
func ResolveCredentials(workflow *models.Workflow, snapshot *Snapshot) bool {
	needsRepair := false

	for _, node := range workflow.Nodes {
		for credentialType, reference := range node.Credentials {
			if reference == nil {
				delete(node.Credentials, credentialType)

				continue
			}

			if reference.Legacy {
				reference.Legacy = false
				reference.ID = nil

				if ids := snapshot.CredentialIDs(reference.Name, credentialType); len(ids) == 1 {
					reference.ID = models.StringPtr(ids[0])
				}
			}

			if !reference.Resolved() || !snapshot.HasCredential(*reference.ID) {
				needsRepair = true
			}
		}
	}

	return needsRepair
}

// credentialRepairer looks up references that are still unresolved, or whose id
// points at a missing credential, directly in the store.
type credentialRepairer struct {
	credentials persistence.CredentialRepository
	logger      *slog.Logger
}

// Repair fixes what it can and returns the number of lookups that failed.
// Failures are logged and never abort the import.
func (r *credentialRepairer) Repair(ctx context.Context, workflow *models.Workflow) int {
	failures := 0

	for _, node := range workflow.Nodes {
		for _, credentialType := range sortedTypes(node.Credentials) {
			reference := node.Credentials[credentialType]

			err := r.repairReference(ctx, credentialType, reference)
			if err != nil {
				failures++

				r.logger.ErrorContext(ctx, "Failed to repair credential reference",
					"workflow_id", workflow.ID,
					"node", node.Name,
					"credential_type", credentialType,
					"credential", reference.Name,
					"error", err,
				)
			}
		}
	}

	return failures
}

func (r *credentialRepairer) repairReference(ctx context.Context, credentialType string, reference *models.NodeCredential) error {
	if reference.Resolved() {
		_, err := r.credentials.GetByID(ctx, *reference.ID)
		if err == nil {
			return nil
		}

		if !persistence.IsCredentialNotFound(err) {
			return err
		}

		reference.ID = nil
	}

	matches, err := r.credentials.FindByNameAndType(ctx, reference.Name, credentialType)
	if err != nil {
		return err
	}

	if len(matches) == 1 {
		reference.ID = models.StringPtr(matches[0].ID)
	}

	return nil
}

// unresolvedCredentials lists the references of workflow that have no id.
func unresolvedCredentials(workflow *models.Workflow) []UnresolvedCredential {
	var unresolved []UnresolvedCredential

	for _, node := range workflow.Nodes {
		for _, credentialType := range sortedTypes(node.Credentials) {
			reference := node.Credentials[credentialType]
			if reference.Resolved() {
				continue
			}

			unresolved = append(unresolved, UnresolvedCredential{
				WorkflowID: workflow.ID,
				NodeID:     node.ID,
				NodeName:   node.Name,
				Type:       credentialType,
				Name:       reference.Name,
			})
		}
	}

	return unresolved
}

func sortedTypes(credentials map[string]*models.NodeCredential) []string {
	types := make([]string, 0, len(credentials))

	for credentialType, reference := range credentials {
		if reference != nil {
			types = append(types, credentialType)
		}
	}

	sort.Strings(types)

	return types
}
