package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

// TaskService owns the canonical task/step lifecycle. All tasks live in a
// mutex-guarded in-process map; a single lock serializes transitions so there
// is exactly one in-flight mutation per task. Tasks are mirrored best-effort
// to the repository when one is configured.
type TaskService struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task

	subMu     sync.RWMutex
	listeners map[string]map[int]ports.TaskListener
	global    map[int]ports.TaskListener
	nextSub   int

	policy *ApprovalPolicy
	repo   ports.TaskRepository
	logger *logger.Logger
}

type TaskServiceConfig struct {
	Policy     *ApprovalPolicy
	Repository ports.TaskRepository // optional
	Logger     *logger.Logger
}

func NewTaskService(cfg TaskServiceConfig) *TaskService {
	return &TaskService{
		tasks:     make(map[string]*domain.Task),
		listeners: make(map[string]map[int]ports.TaskListener),
		global:    make(map[int]ports.TaskListener),
		policy:    cfg.Policy,
		repo:      cfg.Repository,
		logger:    cfg.Logger,
	}
}

// ==================== Transitions ====================

// CreateTask registers a new task in planning status with no steps. It
// enforces the per-user concurrent task bound.
func (s *TaskService) CreateTask(userID, intent, conversationID string) (*domain.Task, error) {
	s.mu.Lock()

	limit := s.policy.MaxConcurrentTasks()
	active := 0
	for _, t := range s.tasks {
		if t.UserID == userID && !t.Status.Terminal() {
			active++
		}
	}
	if active >= limit {
		s.mu.Unlock()
		s.logger.Warnw("task_create_limit_reached", "user_id", userID, "active", active, "limit", limit)
		return nil, ErrTooManyTasks
	}

	now := time.Now()
	task := &domain.Task{
		ID:             uuid.New().String(),
		UserID:         userID,
		Intent:         intent,
		Status:         domain.TaskStatusPlanning,
		Steps:          []domain.Step{},
		Context:        domain.JSONB{},
		ConversationID: conversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.tasks[task.ID] = task
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Infow("task_created", "task_id", task.ID, "user_id", userID, "intent", intent)
	s.notify(snapshot)
	return snapshot, nil
}

// SetSteps binds the planner's output to the task exactly once: ids, indexes
// and approval flags are assigned here, and the task starts running with the
// cursor at zero.
func (s *TaskService) SetSteps(taskID string, specs []ports.StepSpec) (*domain.Task, error) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if task.Status.Terminal() {
		s.mu.Unlock()
		return nil, ErrTaskTerminal
	}
	if len(task.Steps) > 0 {
		s.mu.Unlock()
		return nil, ErrStepsAlreadySet
	}
	if len(specs) > s.policy.MaxSteps() {
		s.mu.Unlock()
		return nil, ErrTooManySteps
	}

	steps := make([]domain.Step, len(specs))
	for i, spec := range specs {
		needsApproval := false
		if spec.ToolName != "" {
			needsApproval = s.policy.NeedsApproval(spec.ToolName)
		}
		steps[i] = domain.Step{
			ID:               uuid.New().String(),
			Index:            i,
			Description:      spec.Description,
			ToolName:         spec.ToolName,
			ToolParams:       spec.ToolParams,
			IntegrationID:    spec.IntegrationID,
			Status:           domain.StepStatusPending,
			RequiresApproval: needsApproval,
		}
	}

	task.Steps = steps
	task.Status = domain.TaskStatusRunning
	task.CurrentStepIndex = 0
	task.UpdatedAt = time.Now()
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Infow("task_steps_set", "task_id", taskID, "steps", len(steps))
	s.notify(snapshot)
	return snapshot, nil
}

// UpdateStep merges the patch into the step. Completed results are also
// accumulated into the task context, keyed by tool name, for later steps'
// parameter resolution.
func (s *TaskService) UpdateStep(taskID string, index int, patch ports.StepPatch) (*domain.Task, error) {
	s.mu.Lock()
	task, step, err := s.stepLocked(taskID, index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := time.Now()
	if patch.Status != nil {
		step.Status = *patch.Status
		switch *patch.Status {
		case domain.StepStatusRunning:
			if step.StartedAt == nil {
				step.StartedAt = &now
			}
		case domain.StepStatusCompleted, domain.StepStatusFailed, domain.StepStatusSkipped:
			step.CompletedAt = &now
		}
	}
	if patch.Result != nil {
		step.Result = patch.Result
		if step.ToolName != "" {
			task.Context[step.ToolName] = map[string]interface{}(patch.Result)
		}
	}
	if patch.Error != nil {
		step.Error = *patch.Error
	}
	task.UpdatedAt = now
	snapshot := task.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot, nil
}

// AdvanceStep moves the cursor forward; running past the last step completes
// the task.
func (s *TaskService) AdvanceStep(taskID string) (*domain.Task, error) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if task.Status.Terminal() {
		s.mu.Unlock()
		return nil, ErrTaskTerminal
	}
	if len(task.Steps) == 0 {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	s.advanceLocked(task)
	snapshot := task.Clone()
	s.mu.Unlock()

	if snapshot.Status == domain.TaskStatusCompleted {
		s.logger.Infow("task_completed", "task_id", taskID)
	}
	s.notify(snapshot)
	return snapshot, nil
}

func (s *TaskService) advanceLocked(task *domain.Task) {
	task.CurrentStepIndex++
	now := time.Now()
	task.UpdatedAt = now
	if task.CurrentStepIndex >= len(task.Steps) {
		task.CurrentStepIndex = len(task.Steps)
		task.Status = domain.TaskStatusCompleted
		task.CompletedAt = &now
	}
}

// RequestApproval parks the task and step in waiting_approval with a
// human-readable preview of what approval would execute.
func (s *TaskService) RequestApproval(taskID string, index int, preview string) (*domain.Task, error) {
	s.mu.Lock()
	task, step, err := s.stepLocked(taskID, index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	task.Status = domain.TaskStatusWaitingApproval
	step.Status = domain.StepStatusWaitingApproval
	step.ApprovalPreview = preview
	task.UpdatedAt = time.Now()
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Infow("task_approval_requested", "task_id", taskID, "step_index", index)
	s.notify(snapshot)
	return snapshot, nil
}

// ApproveStep resumes execution of a step parked in waiting_approval.
func (s *TaskService) ApproveStep(taskID string, index int) (*domain.Task, error) {
	s.mu.Lock()
	task, step, err := s.stepLocked(taskID, index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if step.Status != domain.StepStatusWaitingApproval {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	task.Status = domain.TaskStatusRunning
	step.Status = domain.StepStatusRunning
	step.ApprovalPreview = ""
	if step.StartedAt == nil {
		step.StartedAt = &now
	}
	task.UpdatedAt = now
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Infow("task_step_approved", "task_id", taskID, "step_index", index)
	s.notify(snapshot)
	return snapshot, nil
}

// RejectStep skips a step parked in waiting_approval and advances to the
// next one. The rejected step is silently skipped rather than aborting the
// task. A second reject on the same step is an invalid transition, never a
// double advance.
func (s *TaskService) RejectStep(taskID string, index int) (*domain.Task, error) {
	s.mu.Lock()
	task, step, err := s.stepLocked(taskID, index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if step.Status != domain.StepStatusWaitingApproval {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	step.Status = domain.StepStatusSkipped
	step.ApprovalPreview = ""
	step.CompletedAt = &now
	task.Status = domain.TaskStatusRunning
	s.advanceLocked(task)
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Infow("task_step_rejected", "task_id", taskID, "step_index", index)
	s.notify(snapshot)
	return snapshot, nil
}

func (s *TaskService) PauseTask(taskID string) (*domain.Task, error) {
	return s.setStatus(taskID, domain.TaskStatusPaused, "task_paused")
}

func (s *TaskService) ResumeTask(taskID string) (*domain.Task, error) {
	return s.setStatus(taskID, domain.TaskStatusRunning, "task_resumed")
}

// CancelTask is terminal. It does not interrupt an in-flight tool call; the
// executor checks status around each invocation and aborts cooperatively.
func (s *TaskService) CancelTask(taskID string) (*domain.Task, error) {
	return s.setStatus(taskID, domain.TaskStatusCancelled, "task_cancelled")
}

func (s *TaskService) setStatus(taskID string, status domain.TaskStatus, event string) (*domain.Task, error) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if task.Status.Terminal() {
		s.mu.Unlock()
		return nil, ErrTaskTerminal
	}

	task.Status = status
	task.UpdatedAt = time.Now()
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Infow(event, "task_id", taskID)
	s.notify(snapshot)
	return snapshot, nil
}

// FailTask is terminal and records the failure message on the task. A task
// already terminal keeps its original outcome; a late failure (an approval
// timeout racing a cancel) cannot rewrite it.
func (s *TaskService) FailTask(taskID string, errMsg string) (*domain.Task, error) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if task.Status.Terminal() {
		s.mu.Unlock()
		return nil, ErrTaskTerminal
	}

	task.Status = domain.TaskStatusFailed
	task.Error = errMsg
	task.UpdatedAt = time.Now()
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Warnw("task_failed", "task_id", taskID, "error", errMsg)
	s.notify(snapshot)
	return snapshot, nil
}

// ==================== Queries ====================

func (s *TaskService) GetTask(taskID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (s *TaskService) GetTasks(userID string) []*domain.Task {
	return s.collect(func(t *domain.Task) bool { return t.UserID == userID })
}

func (s *TaskService) GetActiveTasks(userID string) []*domain.Task {
	return s.collect(func(t *domain.Task) bool {
		return t.UserID == userID && !t.Status.Terminal()
	})
}

func (s *TaskService) collect(keep func(*domain.Task) bool) []*domain.Task {
	s.mu.Lock()
	var out []*domain.Task
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *TaskService) stepLocked(taskID string, index int) (*domain.Task, *domain.Step, error) {
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return nil, nil, ErrTaskTerminal
	}
	if index < 0 || index >= len(task.Steps) {
		return nil, nil, ErrStepNotFound
	}
	return task, &task.Steps[index], nil
}

// ==================== Subscriptions ====================

// Subscribe registers a listener for one task id. The returned function
// removes it.
func (s *TaskService) Subscribe(taskID string, fn ports.TaskListener) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.listeners[taskID] == nil {
		s.listeners[taskID] = make(map[int]ports.TaskListener)
	}
	s.listeners[taskID][id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.listeners[taskID], id)
		if len(s.listeners[taskID]) == 0 {
			delete(s.listeners, taskID)
		}
		s.subMu.Unlock()
	}
}

// SubscribeAll registers a listener for every task.
func (s *TaskService) SubscribeAll(fn ports.TaskListener) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.global[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.global, id)
		s.subMu.Unlock()
	}
}

// notify fans the snapshot out to per-task listeners first, then global
// ones, then mirrors the task to the repository.
func (s *TaskService) notify(task *domain.Task) {
	s.subMu.RLock()
	perTask := make([]ports.TaskListener, 0, len(s.listeners[task.ID]))
	for _, fn := range s.listeners[task.ID] {
		perTask = append(perTask, fn)
	}
	global := make([]ports.TaskListener, 0, len(s.global))
	for _, fn := range s.global {
		global = append(global, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range perTask {
		fn(task)
	}
	for _, fn := range global {
		fn(task)
	}

	s.mirror(task)
}

// mirror persists the snapshot for history. Repo failures are logged, never
// surfaced: the in-memory store stays the source of truth.
func (s *TaskService) mirror(task *domain.Task) {
	if s.repo == nil {
		return
	}
	record, err := domain.NewTaskRecord(task)
	if err != nil {
		s.logger.Errorw("task_mirror_encode_failed", "task_id", task.ID, "error", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.Save(ctx, record); err != nil {
			s.logger.Errorw("task_mirror_save_failed", "task_id", task.ID, "error", err)
		}
	}()
}
