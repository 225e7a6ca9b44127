package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/core/services"
	"github.com/whutos/backend/internal/infrastructure/logger"
	"github.com/whutos/backend/internal/transport/http/dto"
)

// PolicyHandler exposes the tool catalog and the runtime-mutable approval
// policy to the dashboard.
type PolicyHandler struct {
	policy ports.ApprovalPolicy
	logger *logger.Logger
}

func NewPolicyHandler(policy ports.ApprovalPolicy, logger *logger.Logger) *PolicyHandler {
	return &PolicyHandler{policy: policy, logger: logger}
}

func (h *PolicyHandler) GetTools(c *fiber.Ctx) error {
	return c.JSON(services.ToolCatalog())
}

func (h *PolicyHandler) GetPolicy(c *fiber.Ctx) error {
	return c.JSON(h.policy.Snapshot())
}

func (h *PolicyHandler) UpdatePolicy(c *fiber.Ctx) error {
	var cfg ports.PolicyConfig
	if err := c.BodyParser(&cfg); err != nil {
		h.logger.Warnw("policy_update_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	h.policy.Update(cfg)
	h.logger.Infow("policy_update_success")
	return c.JSON(h.policy.Snapshot())
}
