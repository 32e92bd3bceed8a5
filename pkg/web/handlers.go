// Package web provides HTTP handlers and REST API endpoints for workflows, credentials and imports.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/flowport/pkg/importer"
	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	persistence persistence.Persistence
	importer    *importer.Importer
	validator   *validator.Validate
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	importer *importer.Importer,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		importer:    importer,
		validator:   validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, workflow := range workflows {
		summaries = append(summaries, TransformWorkflowSummary(workflow))
	}

	return c.JSON(fiber.Map{
		"workflows":   summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		if persistence.IsInvalidID(err) {
			return badRequest(c, "Invalid workflow ID")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.persistence.Workflows().Delete(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ImportWorkflows runs the import pipeline on the request body and returns its report.
func (h *APIHandlers) ImportWorkflows(c fiber.Ctx) error {
	var req ImportWorkflowsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	report, err := h.importer.ImportJSON(c.Context(), req.Workflows, req.UserID)
	if err != nil {
		return handleImportError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *APIHandlers) GetCredentials(c fiber.Ctx) error {
	credentials, err := h.persistence.Credentials().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	response := make([]CredentialResponse, 0, len(credentials))
	for _, credential := range credentials {
		response = append(response, TransformCredentialResponse(credential))
	}

	return c.JSON(response)
}

func (h *APIHandlers) CreateCredential(c fiber.Ctx) error {
	var req CreateCredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	credential := &models.Credential{
		Name: req.Name,
		Type: req.Type,
		Data: req.Data,
	}

	err := h.persistence.Credentials().Save(c.Context(), credential)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformCredentialResponse(credential))
}

func (h *APIHandlers) GetTags(c fiber.Ctx) error {
	tags, err := h.persistence.Tags().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(tags)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "flowport API is healthy"
	httpStatus := http.StatusOK
	check := "ok"

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = "flowport API is unhealthy"
		httpStatus = http.StatusInternalServerError
		check = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence": check,
		},
		"timestamp": time.Now().UTC(),
	})
}
