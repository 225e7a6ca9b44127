package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/core/services"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
	"github.com/whutos/backend/internal/transport/http/dto"
)

type TaskHandler struct {
	tasks    ports.TaskService
	planner  ports.PlannerService
	executor *services.Executor
	repo     ports.TaskRepository // optional, history only
	logger   *logger.Logger
}

type TaskHandlerConfig struct {
	Tasks    ports.TaskService
	Planner  ports.PlannerService
	Executor *services.Executor
	Repo     ports.TaskRepository
	Logger   *logger.Logger
}

func NewTaskHandler(cfg TaskHandlerConfig) *TaskHandler {
	return &TaskHandler{
		tasks:    cfg.Tasks,
		planner:  cfg.Planner,
		executor: cfg.Executor,
		repo:     cfg.Repo,
		logger:   cfg.Logger,
	}
}

// CreateTask creates, plans and starts a task, bypassing the intent router.
func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("task_create_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.logger.Warnw("task_create_validation_failed", "details", errs)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	h.logger.Infow("task_create_request", "user_id", req.UserID, "intent", req.Intent)
	task, err := h.tasks.CreateTask(req.UserID, req.Intent, req.ConversationID)
	if err != nil {
		if errors.Is(err, services.ErrTooManyTasks) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Errorw("task_create_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	specs, err := h.planner.Plan(c.Context(), req.Intent, req.Integrations)
	if err != nil {
		h.logger.Warnw("task_planning_failed", "task_id", task.ID, "error", err)
		_, _ = h.tasks.FailTask(task.ID, "planning failed")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: "could not plan task",
		})
	}

	task, err = h.tasks.SetSteps(task.ID, specs)
	if err != nil {
		h.logger.Errorw("task_set_steps_failed", "task_id", task.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	h.executor.Start(task.ID)
	h.logger.Infow("task_create_success", "task_id", task.ID, "steps", len(task.Steps))
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *TaskHandler) GetTasks(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "user_id is required"})
	}
	return c.JSON(h.tasks.GetTasks(userID))
}

func (h *TaskHandler) GetActiveTasks(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "user_id is required"})
	}
	return c.JSON(h.tasks.GetActiveTasks(userID))
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	task, err := h.tasks.GetTask(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
	}
	return c.JSON(task)
}

// GetHistory lists terminal tasks from durable storage.
func (h *TaskHandler) GetHistory(c *fiber.Ctx) error {
	if h.repo == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: "task history requires a database",
		})
	}
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "user_id is required"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	records, err := h.repo.GetTerminalByUser(c.Context(), userID, limit)
	if err != nil {
		h.logger.Errorw("task_history_failed", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(records)
}

func (h *TaskHandler) ApproveStep(c *fiber.Ctx) error {
	return h.stepDecision(c, h.tasks.ApproveStep, "task_step_approve")
}

func (h *TaskHandler) RejectStep(c *fiber.Ctx) error {
	return h.stepDecision(c, h.tasks.RejectStep, "task_step_reject")
}

func (h *TaskHandler) stepDecision(c *fiber.Ctx, op func(string, int) (*domain.Task, error), event string) error {
	taskID := c.Params("id")
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid step index"})
	}

	h.logger.Infow(event+"_request", "task_id", taskID, "step_index", index)
	task, err := op(taskID, index)
	if err != nil {
		return h.transitionError(c, err)
	}
	return c.JSON(task)
}

func (h *TaskHandler) PauseTask(c *fiber.Ctx) error {
	return h.taskTransition(c, h.tasks.PauseTask, "task_pause")
}

func (h *TaskHandler) ResumeTask(c *fiber.Ctx) error {
	return h.taskTransition(c, h.tasks.ResumeTask, "task_resume")
}

func (h *TaskHandler) CancelTask(c *fiber.Ctx) error {
	return h.taskTransition(c, h.tasks.CancelTask, "task_cancel")
}

func (h *TaskHandler) taskTransition(c *fiber.Ctx, op func(string) (*domain.Task, error), event string) error {
	taskID := c.Params("id")
	h.logger.Infow(event+"_request", "task_id", taskID)
	task, err := op(taskID)
	if err != nil {
		return h.transitionError(c, err)
	}
	return c.JSON(task)
}

func (h *TaskHandler) transitionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrTaskNotFound), errors.Is(err, services.ErrStepNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrTaskTerminal):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		h.logger.Errorw("task_transition_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
}
