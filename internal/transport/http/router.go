package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/whutos/backend/internal/config"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/core/services"
	"github.com/whutos/backend/internal/infrastructure/db"
	"github.com/whutos/backend/internal/infrastructure/logger"
	"github.com/whutos/backend/internal/integrations"
	"github.com/whutos/backend/internal/transport/http/handlers"
	httpmw "github.com/whutos/backend/internal/transport/http/middleware"
	"gorm.io/gorm"
)

type RouterConfig struct {
	DB     *gorm.DB // nil runs in-memory only
	LLM    ports.LLMClient
	Logger *logger.Logger
	Config *config.Config
}

// SetupRoutes wires the orchestration core into the HTTP surface and
// returns the tool registry so the deployment can attach its integration
// clients.
func SetupRoutes(app *fiber.App, cfg RouterConfig) *integrations.Registry {
	var taskRepo ports.TaskRepository
	if cfg.DB != nil {
		taskRepo = db.NewTaskRepository(cfg.DB, cfg.Logger)
	}

	policy := services.NewApprovalPolicy(ports.PolicyConfig{
		AlwaysApprove:      cfg.Config.Orchestrator.AlwaysApprove,
		NeverApprove:       cfg.Config.Orchestrator.NeverApprove,
		MaxSteps:           cfg.Config.Orchestrator.MaxSteps,
		MaxConcurrentTasks: cfg.Config.Orchestrator.MaxConcurrentTasks,
	}, cfg.Logger)

	registry := integrations.NewRegistry(cfg.Logger)

	taskService := services.NewTaskService(services.TaskServiceConfig{
		Policy:     policy,
		Repository: taskRepo,
		Logger:     cfg.Logger,
	})

	planner := services.NewPlanner(cfg.LLM, cfg.Logger)

	executor := services.NewExecutor(services.ExecutorConfig{
		Tasks:           taskService,
		Tools:           registry,
		Logger:          cfg.Logger,
		ApprovalTimeout: cfg.Config.Orchestrator.ApprovalTimeout,
	})

	assistant := services.NewAssistant(services.AssistantConfig{
		Router:   services.NewIntentRouter(),
		Scenes:   services.NewSceneBuilder(),
		Planner:  planner,
		Tasks:    taskService,
		Tools:    registry,
		Executor: executor,
		Logger:   cfg.Logger,
	})

	assistantHandler := handlers.NewAssistantHandler(assistant, cfg.Logger)
	taskHandler := handlers.NewTaskHandler(handlers.TaskHandlerConfig{
		Tasks:    taskService,
		Planner:  planner,
		Executor: executor,
		Repo:     taskRepo,
		Logger:   cfg.Logger,
	})
	policyHandler := handlers.NewPolicyHandler(policy, cfg.Logger)
	eventsHandler := handlers.NewEventsHandler(taskService, cfg.Logger)

	// Live task updates
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/tasks", websocket.New(eventsHandler.Handle))

	// API v1 routes
	api := app.Group("/api/v1", httpmw.AdminAuth(cfg.Config))

	api.Post("/assistant/message", assistantHandler.HandleMessage)

	api.Get("/tools", policyHandler.GetTools)
	api.Get("/policy", policyHandler.GetPolicy)
	api.Put("/policy", policyHandler.UpdatePolicy)

	tasks := api.Group("/tasks")
	tasks.Post("/", taskHandler.CreateTask)
	tasks.Get("/", taskHandler.GetTasks)
	tasks.Get("/active", taskHandler.GetActiveTasks)
	tasks.Get("/history", taskHandler.GetHistory)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Post("/:id/steps/:index/approve", taskHandler.ApproveStep)
	tasks.Post("/:id/steps/:index/reject", taskHandler.RejectStep)
	tasks.Post("/:id/pause", taskHandler.PauseTask)
	tasks.Post("/:id/resume", taskHandler.ResumeTask)
	tasks.Post("/:id/cancel", taskHandler.CancelTask)

	return registry
}
