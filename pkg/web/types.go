// Package web provides HTTP request and response types for the flowport API.
package web

import (
	"encoding/json"
	"time"

	"github.com/dukex/flowport/pkg/models"
)

// ImportWorkflowsRequest carries a workflow export, one object or an array, to import.
type ImportWorkflowsRequest struct {
	Workflows json.RawMessage `json:"workflows" validate:"required"`
	UserID    string          `json:"userId"`
}

type CreateCredentialRequest struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"`
	Data string `json:"data"`
}

// CredentialResponse is a credential without its data.
type CredentialResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func TransformCredentialResponse(credential *models.Credential) CredentialResponse {
	return CredentialResponse{
		ID:        credential.ID,
		Name:      credential.Name,
		Type:      credential.Type,
		CreatedAt: credential.CreatedAt,
		UpdatedAt: credential.UpdatedAt,
	}
}

// WorkflowSummary is the list view of a workflow.
type WorkflowSummary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Active    bool          `json:"active"`
	NodeCount int           `json:"nodeCount"`
	Tags      []*models.Tag `json:"tags"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func TransformWorkflowSummary(workflow *models.Workflow) WorkflowSummary {
	tags := workflow.Tags
	if tags == nil {
		tags = []*models.Tag{}
	}

	return WorkflowSummary{
		ID:        workflow.ID,
		Name:      workflow.Name,
		Active:    workflow.Active,
		NodeCount: len(workflow.Nodes),
		Tags:      tags,
		UpdatedAt: workflow.UpdatedAt,
	}
}
