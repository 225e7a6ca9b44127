package ports

import (
	"context"

	"github.com/whutos/backend/internal/domain"
)

// StepSpec is a planner-produced step before it is bound to a task. Ids,
// indexes and approval flags are assigned by the task service in SetSteps.
type StepSpec struct {
	Description   string       `json:"description"`
	ToolName      string       `json:"tool_name,omitempty"`
	ToolParams    domain.JSONB `json:"tool_params,omitempty"`
	IntegrationID string       `json:"integration_id,omitempty"`
}

// StepPatch carries the fields UpdateStep merges into a step. Nil pointers
// leave the field untouched.
type StepPatch struct {
	Status *domain.StepStatus
	Result domain.JSONB
	Error  *string
}

// TaskListener receives a snapshot of the task after every transition.
// Delivery is best-effort and in-process.
type TaskListener func(task *domain.Task)

// TaskService owns the canonical task/step lifecycle. Every transition is
// atomic with respect to other transitions on the same task, bumps the
// task's UpdatedAt and notifies per-task then global subscribers.
type TaskService interface {
	CreateTask(userID, intent, conversationID string) (*domain.Task, error)
	SetSteps(taskID string, specs []StepSpec) (*domain.Task, error)
	UpdateStep(taskID string, index int, patch StepPatch) (*domain.Task, error)
	AdvanceStep(taskID string) (*domain.Task, error)
	RequestApproval(taskID string, index int, preview string) (*domain.Task, error)
	ApproveStep(taskID string, index int) (*domain.Task, error)
	RejectStep(taskID string, index int) (*domain.Task, error)
	PauseTask(taskID string) (*domain.Task, error)
	ResumeTask(taskID string) (*domain.Task, error)
	CancelTask(taskID string) (*domain.Task, error)
	FailTask(taskID string, errMsg string) (*domain.Task, error)
	GetTask(taskID string) (*domain.Task, error)
	GetTasks(userID string) []*domain.Task
	GetActiveTasks(userID string) []*domain.Task
	Subscribe(taskID string, fn TaskListener) (unsubscribe func())
	SubscribeAll(fn TaskListener) (unsubscribe func())
}

// PlannerService decomposes a free-text intent into an ordered step list.
type PlannerService interface {
	Plan(ctx context.Context, intent string, connectedIntegrations []string) ([]StepSpec, error)
}

// LLMClient is any chat-completion provider. The planner only requires text
// that may contain a JSON array.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// ToolExecutor invokes a tool against the integration layer and returns its
// normalized result.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, params domain.JSONB, integrationID string) (domain.JSONB, error)
}

// PolicyConfig is the runtime-mutable approval tuning. Not persisted.
type PolicyConfig struct {
	AlwaysApprove      []string `json:"always_approve"`
	NeverApprove       []string `json:"never_approve"`
	MaxSteps           int      `json:"max_steps"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
}

// ApprovalPolicy decides which steps require human confirmation.
type ApprovalPolicy interface {
	NeedsApproval(toolName string) bool
	Snapshot() PolicyConfig
	Update(cfg PolicyConfig)
}

// AssistantInput is one user utterance entering the orchestration pipeline.
type AssistantInput struct {
	UserID         string
	Message        string
	ConversationID string
	Integrations   []string
}

// AssistantResult is either a ready-to-render scene (fast path) or a task
// handed to the executor (planner path).
type AssistantResult struct {
	Scene *domain.Scene `json:"scene,omitempty"`
	Task  *domain.Task  `json:"task,omitempty"`
	Reply string        `json:"reply,omitempty"`
}

type AssistantService interface {
	HandleMessage(ctx context.Context, input AssistantInput) (*AssistantResult, error)
}
