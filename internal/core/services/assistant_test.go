package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

func newTestAssistant(t *testing.T, llm ports.LLMClient, tools *fakeTools) (*Assistant, *TaskService) {
	t.Helper()
	svc := newTestTaskService(t)
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})
	assistant := NewAssistant(AssistantConfig{
		Router:   NewIntentRouter(),
		Scenes:   NewSceneBuilder(),
		Planner:  NewPlanner(llm, logger.NewNop()),
		Tasks:    svc,
		Tools:    tools,
		Executor: exec,
		Logger:   logger.NewNop(),
	})
	return assistant, svc
}

func TestHandleMessage_SingleShotScene(t *testing.T) {
	tools := newFakeTools()
	tools.results["fetch_emails"] = domain.JSONB{
		"emails": []domain.JSONB{{"subject": "Invoice", "unread": true}},
	}
	llm := &fakeLLM{err: errors.New("must not be called")}
	assistant, svc := newTestAssistant(t, llm, tools)

	result, err := assistant.HandleMessage(context.Background(), ports.AssistantInput{
		UserID:  "user-1",
		Message: "check my inbox",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Scene)
	assert.Nil(t, result.Task)
	assert.Equal(t, "check_email", result.Scene.Intent)
	assert.Equal(t, "You have 1 unread email.", result.Reply)
	assert.Empty(t, llm.user, "fast path must not consult the model")
	assert.Empty(t, svc.GetTasks("user-1"), "fast path creates no task")
}

func TestHandleMessage_EmptyPrefetchFallsBackToPlanner(t *testing.T) {
	tools := newFakeTools()
	tools.results["fetch_emails"] = domain.JSONB{"emails": []domain.JSONB{}}
	llm := &fakeLLM{response: `[{"description":"check a secondary inbox","tool_name":"fetch_emails"}]`}
	assistant, svc := newTestAssistant(t, llm, tools)

	result, err := assistant.HandleMessage(context.Background(), ports.AssistantInput{
		UserID:  "user-1",
		Message: "check my inbox",
	})
	require.NoError(t, err)

	assert.Nil(t, result.Scene)
	require.NotNil(t, result.Task)
	assert.Equal(t, "Working on it.", result.Reply)

	done := waitForStatus(t, svc, result.Task.ID, domain.TaskStatusCompleted)
	assert.Len(t, done.Steps, 1)
}

func TestHandleMessage_UnrecognizedGoesToPlanner(t *testing.T) {
	tools := newFakeTools()
	llm := &fakeLLM{response: `[{"description":"look up the forecast","tool_name":"fetch_files"}]`}
	assistant, svc := newTestAssistant(t, llm, tools)

	result, err := assistant.HandleMessage(context.Background(), ports.AssistantInput{
		UserID:       "user-1",
		Message:      "plan my week around the weather",
		Integrations: []string{"drive"},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Task)
	assert.Equal(t, "plan my week around the weather", result.Task.Intent)
	waitForStatus(t, svc, result.Task.ID, domain.TaskStatusCompleted)
}

func TestHandleMessage_PlanningFailureFailsTask(t *testing.T) {
	tools := newFakeTools()
	llm := &fakeLLM{response: "I cannot help with that."}
	assistant, svc := newTestAssistant(t, llm, tools)

	_, err := assistant.HandleMessage(context.Background(), ports.AssistantInput{
		UserID:  "user-1",
		Message: "do something unplannable",
	})
	assert.ErrorIs(t, err, ErrPlanningFailed)

	tasks := svc.GetTasks("user-1")
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStatusFailed, tasks[0].Status)
	assert.Equal(t, "planning failed", tasks[0].Error)
	assert.Empty(t, tasks[0].Steps)
	assert.Empty(t, svc.GetActiveTasks("user-1"), "a failed plan must not hold a concurrency slot")
}

func TestHandleMessage_RepeatedPlanningFailuresDoNotExhaustSlots(t *testing.T) {
	tools := newFakeTools()
	llm := &fakeLLM{response: "I cannot help with that."}
	assistant, svc := newTestAssistant(t, llm, tools)

	limit := svc.policy.MaxConcurrentTasks()
	for i := 0; i < limit+2; i++ {
		_, err := assistant.HandleMessage(context.Background(), ports.AssistantInput{
			UserID:  "user-1",
			Message: "do something unplannable",
		})
		assert.ErrorIs(t, err, ErrPlanningFailed, "attempt %d must reach the planner, not the task limit", i)
	}
}

func TestHandleMessage_CarriesConversationID(t *testing.T) {
	tools := newFakeTools()
	llm := &fakeLLM{response: `[{"description":"look up the forecast","tool_name":"fetch_files"}]`}
	assistant, svc := newTestAssistant(t, llm, tools)

	result, err := assistant.HandleMessage(context.Background(), ports.AssistantInput{
		UserID:         "user-1",
		Message:        "plan my week around the weather",
		ConversationID: "conv-42",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Task)
	assert.Equal(t, "conv-42", result.Task.ConversationID)
	waitForStatus(t, svc, result.Task.ID, domain.TaskStatusCompleted)
}

func TestHandleMessage_PrefetchFailureOmitsResult(t *testing.T) {
	tools := newFakeTools()
	tools.errs["fetch_emails"] = errors.New("gmail unreachable")
	tools.results["fetch_calendar"] = domain.JSONB{
		"events": []domain.JSONB{{"title": "Standup"}},
	}
	llm := &fakeLLM{err: errors.New("must not be called")}
	assistant, _ := newTestAssistant(t, llm, tools)

	result, err := assistant.HandleMessage(context.Background(), ports.AssistantInput{
		UserID:  "user-1",
		Message: "good morning",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Scene, "briefing renders from the half that loaded")
	require.Len(t, result.Scene.Elements, 1)
	assert.Equal(t, domain.SceneElementTimeline, result.Scene.Elements[0].Type)
}
