package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

type fakeTools struct {
	mu      sync.Mutex
	calls   []string
	results map[string]domain.JSONB
	errs    map[string]error
}

func newFakeTools() *fakeTools {
	return &fakeTools{
		results: make(map[string]domain.JSONB),
		errs:    make(map[string]error),
	}
}

func (f *fakeTools) Execute(_ context.Context, toolName string, _ domain.JSONB, _ string) (domain.JSONB, error) {
	f.mu.Lock()
	f.calls = append(f.calls, toolName)
	f.mu.Unlock()
	if err := f.errs[toolName]; err != nil {
		return nil, err
	}
	if res, ok := f.results[toolName]; ok {
		return res, nil
	}
	return domain.JSONB{"ok": true}, nil
}

func (f *fakeTools) callCount(toolName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == toolName {
			n++
		}
	}
	return n
}

func newRunningTask(t *testing.T, svc *TaskService, specs []ports.StepSpec) *domain.Task {
	t.Helper()
	task, err := svc.CreateTask("user-1", "triage my inbox", "")
	require.NoError(t, err)
	task, err = svc.SetSteps(task.ID, specs)
	require.NoError(t, err)
	return task
}

func waitForStatus(t *testing.T, svc *TaskService, taskID string, want domain.TaskStatus) *domain.Task {
	t.Helper()
	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		task, err := svc.GetTask(taskID)
		require.NoError(t, err)
		if task.Status == want {
			return task
		}
		select {
		case <-deadline:
			t.Fatalf("task %s never reached %s, last status %s", taskID, want, task.Status)
		case <-tick.C:
		}
	}
}

func TestExecutor_RunsUnattendedStepsToCompletion(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	tools.results["fetch_emails"] = domain.JSONB{"emails": []interface{}{}}
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "fetch unread emails", ToolName: "fetch_emails"},
		{Description: "summarize the findings"},
	})

	require.NoError(t, exec.Run(context.Background(), task.ID))

	done, _ := svc.GetTask(task.ID)
	assert.Equal(t, domain.TaskStatusCompleted, done.Status)
	assert.Equal(t, domain.StepStatusCompleted, done.Steps[0].Status)
	assert.Equal(t, domain.StepStatusCompleted, done.Steps[1].Status, "steps without a tool complete without invoking anything")
	assert.Equal(t, 1, tools.callCount("fetch_emails"))
	assert.Contains(t, done.Context, "fetch_emails")
}

func TestExecutor_ApprovalGateThenApprove(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "fetch unread emails", ToolName: "fetch_emails"},
		{Description: "send the reply", ToolName: "send_email", ToolParams: domain.JSONB{"to": "bob@example.com"}},
	})

	exec.Start(task.ID)

	waiting := waitForStatus(t, svc, task.ID, domain.TaskStatusWaitingApproval)
	require.Equal(t, 1, waiting.CurrentStepIndex)
	assert.Equal(t, domain.StepStatusWaitingApproval, waiting.Steps[1].Status)
	assert.NotEmpty(t, waiting.Steps[1].ApprovalPreview)
	assert.Equal(t, 0, tools.callCount("send_email"), "gated tool must not run before approval")

	_, err := svc.ApproveStep(task.ID, 1)
	require.NoError(t, err)

	done := waitForStatus(t, svc, task.ID, domain.TaskStatusCompleted)
	assert.Equal(t, domain.StepStatusCompleted, done.Steps[1].Status)
	assert.Equal(t, 1, tools.callCount("send_email"))
}

func TestExecutor_ApprovalGateThenReject(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "send the reply", ToolName: "send_email"},
		{Description: "fetch the calendar", ToolName: "fetch_calendar"},
	})

	exec.Start(task.ID)
	waitForStatus(t, svc, task.ID, domain.TaskStatusWaitingApproval)

	_, err := svc.RejectStep(task.ID, 0)
	require.NoError(t, err)

	done := waitForStatus(t, svc, task.ID, domain.TaskStatusCompleted)
	assert.Equal(t, domain.StepStatusSkipped, done.Steps[0].Status)
	assert.Equal(t, domain.StepStatusCompleted, done.Steps[1].Status, "rejection skips one step, the rest still run")
	assert.Equal(t, 0, tools.callCount("send_email"))
	assert.Equal(t, 1, tools.callCount("fetch_calendar"))
}

func TestExecutor_ApprovalTimeoutFailsTask(t *testing.T) {
	svc := newTestTaskService(t)
	exec := NewExecutor(ExecutorConfig{
		Tasks:           svc,
		Tools:           newFakeTools(),
		Logger:          logger.NewNop(),
		ApprovalTimeout: 20 * time.Millisecond,
	})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "send the reply", ToolName: "send_email"},
	})

	require.NoError(t, exec.Run(context.Background(), task.ID))

	done, _ := svc.GetTask(task.ID)
	assert.Equal(t, domain.TaskStatusFailed, done.Status)
	assert.Equal(t, "approval timed out", done.Error)
}

func TestExecutor_ToolFailureFailsTask(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	tools.errs["fetch_emails"] = errors.New("gmail unreachable")
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "fetch unread emails", ToolName: "fetch_emails"},
		{Description: "summarize the findings"},
	})

	require.NoError(t, exec.Run(context.Background(), task.ID))

	done, _ := svc.GetTask(task.ID)
	assert.Equal(t, domain.TaskStatusFailed, done.Status)
	assert.Equal(t, domain.StepStatusFailed, done.Steps[0].Status)
	assert.Equal(t, "gmail unreachable", done.Steps[0].Error)
	assert.Contains(t, done.Error, "fetch_emails")
	assert.Equal(t, domain.StepStatusPending, done.Steps[1].Status, "later steps never run")
}

func TestExecutor_BestEffortFailureAdvances(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	tools.errs["fetch_emails"] = errors.New("gmail unreachable")
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "fetch unread emails", ToolName: "fetch_emails", ToolParams: domain.JSONB{"best_effort": true}},
		{Description: "fetch the calendar", ToolName: "fetch_calendar"},
	})

	require.NoError(t, exec.Run(context.Background(), task.ID))

	done, _ := svc.GetTask(task.ID)
	assert.Equal(t, domain.TaskStatusCompleted, done.Status)
	assert.Equal(t, domain.StepStatusFailed, done.Steps[0].Status)
	assert.Equal(t, domain.StepStatusCompleted, done.Steps[1].Status)
}

func TestExecutor_PauseSuspendsResumeContinues(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "send the reply", ToolName: "send_email"},
		{Description: "fetch the calendar", ToolName: "fetch_calendar"},
	})

	exec.Start(task.ID)
	waitForStatus(t, svc, task.ID, domain.TaskStatusWaitingApproval)

	_, err := svc.PauseTask(task.ID)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, tools.callCount("fetch_calendar"), "nothing runs while paused")

	// resume leaves the step approved-and-running so the executor picks it up
	_, err = svc.ApproveStep(task.ID, 0)
	require.NoError(t, err)

	done := waitForStatus(t, svc, task.ID, domain.TaskStatusCompleted)
	assert.Equal(t, 1, tools.callCount("send_email"))
	assert.Equal(t, 1, tools.callCount("fetch_calendar"))
	assert.Equal(t, len(done.Steps), done.CurrentStepIndex)
}

func TestExecutor_PauseDuringApprovalThenResume(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "send the reply", ToolName: "send_email"},
	})

	exec.Start(task.ID)
	waitForStatus(t, svc, task.ID, domain.TaskStatusWaitingApproval)

	_, err := svc.PauseTask(task.ID)
	require.NoError(t, err)
	_, err = svc.ResumeTask(task.ID)
	require.NoError(t, err)

	// the executor must park on the still-undecided step again, not exit
	reparked := waitForStatus(t, svc, task.ID, domain.TaskStatusWaitingApproval)
	assert.Equal(t, domain.StepStatusWaitingApproval, reparked.Steps[0].Status)
	assert.Equal(t, 0, tools.callCount("send_email"))

	_, err = svc.ApproveStep(task.ID, 0)
	require.NoError(t, err)

	done := waitForStatus(t, svc, task.ID, domain.TaskStatusCompleted)
	assert.Equal(t, domain.StepStatusCompleted, done.Steps[0].Status)
	assert.Equal(t, 1, tools.callCount("send_email"))
}

func TestExecutor_CancelWhileWaitingApproval(t *testing.T) {
	svc := newTestTaskService(t)
	tools := newFakeTools()
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Tools: tools, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "send the reply", ToolName: "send_email"},
	})

	runDone := make(chan error, 1)
	go func() { runDone <- exec.Run(context.Background(), task.ID) }()
	waitForStatus(t, svc, task.ID, domain.TaskStatusWaitingApproval)

	_, err := svc.CancelTask(task.ID)
	require.NoError(t, err)

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not stop after cancel")
	}
	assert.Equal(t, 0, tools.callCount("send_email"))
}

func TestExecutor_NoToolsConfigured(t *testing.T) {
	svc := newTestTaskService(t)
	exec := NewExecutor(ExecutorConfig{Tasks: svc, Logger: logger.NewNop()})

	task := newRunningTask(t, svc, []ports.StepSpec{
		{Description: "fetch unread emails", ToolName: "fetch_emails"},
	})

	err := exec.Run(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrNoExecutor)

	done, _ := svc.GetTask(task.ID)
	assert.Equal(t, domain.TaskStatusFailed, done.Status)
}
