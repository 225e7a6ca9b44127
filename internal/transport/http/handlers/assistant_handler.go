package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/core/services"
	"github.com/whutos/backend/internal/infrastructure/logger"
	"github.com/whutos/backend/internal/transport/http/dto"
)

type AssistantHandler struct {
	service ports.AssistantService
	logger  *logger.Logger
}

func NewAssistantHandler(service ports.AssistantService, logger *logger.Logger) *AssistantHandler {
	return &AssistantHandler{service: service, logger: logger}
}

// HandleMessage routes one utterance through the pipeline: fast path scene
// or planned task.
func (h *AssistantHandler) HandleMessage(c *fiber.Ctx) error {
	var req dto.AssistantMessageRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("assistant_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.logger.Warnw("assistant_validation_failed", "details", errs)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	h.logger.Infow("assistant_message_request", "user_id", req.UserID)
	result, err := h.service.HandleMessage(c.Context(), ports.AssistantInput{
		UserID:         req.UserID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Integrations:   req.Integrations,
	})
	if err != nil {
		if errors.Is(err, services.ErrPlanningFailed) {
			h.logger.Warnw("assistant_planning_failed", "user_id", req.UserID)
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
				Error: "could not plan task",
			})
		}
		if errors.Is(err, services.ErrTooManyTasks) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		h.logger.Errorw("assistant_message_failed", "user_id", req.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(result)
}
