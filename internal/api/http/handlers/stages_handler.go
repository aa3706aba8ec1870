package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/workflow"
)

// StagesHandler publishes the workflow definition.
type StagesHandler struct{}

// NewStagesHandler constructs handler.
func NewStagesHandler() *StagesHandler {
	return &StagesHandler{}
}

// ListStages GET /stages.
func (h *StagesHandler) ListStages(c *fiber.Ctx) error {
	defs := workflow.Stages()
	items := make([]dto.StageDefinitionResponse, 0, len(defs))
	for _, def := range defs {
		items = append(items, dto.StageDefinitionResponse{
			Stage:          def.Number,
			Name:           def.Name,
			RequiredFields: def.RequiredFields(),
			OptionalFields: def.OptionalFields(),
			ClosesWorkflow: def.Closes,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
