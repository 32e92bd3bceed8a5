package web

import (
	"github.com/dukex/flowport/pkg/importer"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleImportError maps import pipeline failures onto problem responses.
func handleImportError(c fiber.Ctx, err error) error {
	switch {
	case importer.IsInvalidInput(err):
		return badRequest(c, err.Error())

	case importer.IsOwnerRoleNotFound(err), importer.IsUserNotFound(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("ownership_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case persistence.IsInvalidID(err):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
