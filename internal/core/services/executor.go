package services

import (
	"context"
	"fmt"
	"time"

	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

// Executor drives a task's steps strictly in order: it gates on approval,
// invokes tools through the integration layer and converts tool failures
// into step/task state instead of propagating them. Step execution is
// deliberately outside the state machine itself.
type Executor struct {
	tasks  ports.TaskService
	tools  ports.ToolExecutor
	logger *logger.Logger

	// approvalTimeout bounds the waiting_approval state; zero waits forever.
	approvalTimeout time.Duration
}

type ExecutorConfig struct {
	Tasks           ports.TaskService
	Tools           ports.ToolExecutor
	Logger          *logger.Logger
	ApprovalTimeout time.Duration
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	return &Executor{
		tasks:           cfg.Tasks,
		tools:           cfg.Tools,
		logger:          cfg.Logger,
		approvalTimeout: cfg.ApprovalTimeout,
	}
}

// Start runs the task in the background.
func (e *Executor) Start(taskID string) {
	go func() {
		if err := e.Run(context.Background(), taskID); err != nil {
			e.logger.Warnw("executor_run_ended", "task_id", taskID, "error", err)
		}
	}()
}

// Run executes the task until it reaches a terminal status or the context is
// cancelled. Safe to call once per task.
func (e *Executor) Run(ctx context.Context, taskID string) error {
	if e.tools == nil {
		_, _ = e.tasks.FailTask(taskID, ErrNoExecutor.Error())
		return ErrNoExecutor
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, err := e.tasks.GetTask(taskID)
		if err != nil {
			return err
		}

		switch {
		case task.Status.Terminal():
			return nil

		case task.Status == domain.TaskStatusPaused:
			task, err = e.waitWhile(ctx, taskID, domain.TaskStatusPaused, 0)
			if err != nil {
				return err
			}
			continue

		case task.Status == domain.TaskStatusWaitingApproval:
			task, err = e.waitWhile(ctx, taskID, domain.TaskStatusWaitingApproval, e.approvalTimeout)
			if err == ErrApprovalTimeout {
				step := task.CurrentStep()
				idx := -1
				if step != nil {
					idx = step.Index
				}
				e.logger.Warnw("executor_approval_timeout", "task_id", taskID, "step_index", idx)
				_, _ = e.tasks.FailTask(taskID, "approval timed out")
				return nil
			}
			if err != nil {
				return err
			}
			continue
		}

		step := task.CurrentStep()
		if step == nil {
			// cursor past the end; AdvanceStep already completed the task
			return nil
		}

		switch step.Status {
		case domain.StepStatusPending:
			if step.RequiresApproval {
				if _, err := e.tasks.RequestApproval(taskID, step.Index, renderPreview(step)); err != nil {
					return err
				}
				continue
			}
			e.executeStep(ctx, taskID, step)

		case domain.StepStatusRunning:
			// approved, or resumed mid-flight
			e.executeStep(ctx, taskID, step)

		case domain.StepStatusWaitingApproval:
			// the task was paused and resumed while the decision was still
			// pending; restore the wait so the loop parks again instead of
			// exiting with the step undecided
			if _, err := e.tasks.RequestApproval(taskID, step.Index, renderPreview(step)); err != nil {
				return nil
			}

		case domain.StepStatusCompleted, domain.StepStatusSkipped, domain.StepStatusFailed:
			// stale cursor; move on
			if _, err := e.tasks.AdvanceStep(taskID); err != nil {
				return nil
			}

		default:
			return nil
		}
	}
}

// executeStep invokes the step's tool and records the outcome. Failures
// become step state; whether they fail the whole task depends on the step's
// best_effort flag.
func (e *Executor) executeStep(ctx context.Context, taskID string, step *domain.Step) {
	if step.ToolName == "" {
		// pure-reasoning step, nothing to invoke
		completed := domain.StepStatusCompleted
		_, _ = e.tasks.UpdateStep(taskID, step.Index, ports.StepPatch{Status: &completed})
		_, _ = e.tasks.AdvanceStep(taskID)
		return
	}

	if step.Status == domain.StepStatusPending {
		running := domain.StepStatusRunning
		if _, err := e.tasks.UpdateStep(taskID, step.Index, ports.StepPatch{Status: &running}); err != nil {
			return
		}
	}

	e.logger.Infow("executor_step_start", "task_id", taskID, "step_index", step.Index, "tool", step.ToolName)
	result, err := e.tools.Execute(ctx, step.ToolName, step.ToolParams, step.IntegrationID)

	// the user may have cancelled while the tool was in flight
	task, getErr := e.tasks.GetTask(taskID)
	if getErr != nil || task.Status.Terminal() {
		return
	}

	if err != nil {
		e.logger.Warnw("executor_step_failed", "task_id", taskID, "step_index", step.Index, "tool", step.ToolName, "error", err)
		failed := domain.StepStatusFailed
		errMsg := err.Error()
		_, _ = e.tasks.UpdateStep(taskID, step.Index, ports.StepPatch{Status: &failed, Error: &errMsg})
		if isBestEffort(step) {
			_, _ = e.tasks.AdvanceStep(taskID)
			return
		}
		_, _ = e.tasks.FailTask(taskID, fmt.Sprintf("step %d (%s) failed: %s", step.Index, step.ToolName, errMsg))
		return
	}

	completed := domain.StepStatusCompleted
	_, _ = e.tasks.UpdateStep(taskID, step.Index, ports.StepPatch{Status: &completed, Result: result})
	_, _ = e.tasks.AdvanceStep(taskID)
	e.logger.Infow("executor_step_done", "task_id", taskID, "step_index", step.Index, "tool", step.ToolName)
}

// waitWhile blocks until the task leaves the given status. It is the only
// genuine suspension point in the pipeline: waiting_approval is exited
// asynchronously by a separate approve/reject call, possibly never.
func (e *Executor) waitWhile(ctx context.Context, taskID string, status domain.TaskStatus, timeout time.Duration) (*domain.Task, error) {
	wake := make(chan struct{}, 1)
	unsubscribe := e.tasks.Subscribe(taskID, func(*domain.Task) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		// re-read after subscribing so a transition between the GetTask in
		// the run loop and the Subscribe above is not missed
		task, err := e.tasks.GetTask(taskID)
		if err != nil {
			return nil, err
		}
		if task.Status != status {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-expired:
			return task, ErrApprovalTimeout
		case <-wake:
		}
	}
}

func renderPreview(step *domain.Step) string {
	preview := fmt.Sprintf("Will run %s", step.ToolName)
	if step.Description != "" {
		preview = step.Description
	}
	if len(step.ToolParams) > 0 {
		preview += fmt.Sprintf(" (%s: %v)", step.ToolName, map[string]interface{}(step.ToolParams))
	}
	return preview
}

func isBestEffort(step *domain.Step) bool {
	v, ok := step.ToolParams["best_effort"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
