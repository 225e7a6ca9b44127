package services

import (
	"context"

	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

// Assistant is the entry point for a user utterance: recognized intents take
// the single-shot path (prefetch tools, assemble a scene, no model call);
// everything else is planned by the language model and executed as a task.
type Assistant struct {
	router   *IntentRouter
	scenes   *SceneBuilder
	planner  ports.PlannerService
	tasks    ports.TaskService
	tools    ports.ToolExecutor
	executor *Executor
	logger   *logger.Logger
}

type AssistantConfig struct {
	Router   *IntentRouter
	Scenes   *SceneBuilder
	Planner  ports.PlannerService
	Tasks    ports.TaskService
	Tools    ports.ToolExecutor
	Executor *Executor
	Logger   *logger.Logger
}

func NewAssistant(cfg AssistantConfig) *Assistant {
	return &Assistant{
		router:   cfg.Router,
		scenes:   cfg.Scenes,
		planner:  cfg.Planner,
		tasks:    cfg.Tasks,
		tools:    cfg.Tools,
		executor: cfg.Executor,
		logger:   cfg.Logger,
	}
}

func (a *Assistant) HandleMessage(ctx context.Context, input ports.AssistantInput) (*ports.AssistantResult, error) {
	if match := a.router.DetectIntent(input.Message); match != nil {
		a.logger.Infow("assistant_intent_matched", "user_id", input.UserID, "intent", match.Intent, "tools", match.Tools)
		if scene := a.singleShot(ctx, match); scene != nil {
			return &ports.AssistantResult{Scene: scene, Reply: scene.Spoken}, nil
		}
		a.logger.Infow("assistant_single_shot_fallback", "intent", match.Intent)
	}

	task, err := a.tasks.CreateTask(input.UserID, input.Message, input.ConversationID)
	if err != nil {
		return nil, err
	}

	specs, err := a.planner.Plan(ctx, input.Message, input.Integrations)
	if err != nil {
		// fail the task so it stops counting toward the user's concurrent
		// task limit; it never reaches running
		a.logger.Warnw("assistant_planning_failed", "task_id", task.ID, "error", err)
		_, _ = a.tasks.FailTask(task.ID, "planning failed")
		return nil, err
	}

	task, err = a.tasks.SetSteps(task.ID, specs)
	if err != nil {
		return nil, err
	}

	a.executor.Start(task.ID)
	return &ports.AssistantResult{Task: task, Reply: "Working on it."}, nil
}

// singleShot prefetches the matched intent's tools and assembles the scene.
// Any failed prefetch just omits that tool's result; the builder decides
// whether what remains is enough.
func (a *Assistant) singleShot(ctx context.Context, match *IntentMatch) *domain.Scene {
	if a.tools == nil {
		return nil
	}

	results := make(map[string]domain.JSONB, len(match.Tools))
	for _, tool := range match.Tools {
		result, err := a.tools.Execute(ctx, tool, nil, "")
		if err != nil {
			a.logger.Warnw("assistant_prefetch_failed", "tool", tool, "error", err)
			continue
		}
		results[tool] = result
	}

	return a.scenes.BuildScene(match.Intent, results)
}
