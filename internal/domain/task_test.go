package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusTerminal(t *testing.T) {
	terminal := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), string(s))
	}

	live := []TaskStatus{TaskStatusPending, TaskStatusPlanning, TaskStatusRunning, TaskStatusWaitingApproval, TaskStatusPaused}
	for _, s := range live {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestCurrentStep(t *testing.T) {
	task := &Task{}
	assert.Nil(t, task.CurrentStep(), "no steps yet")

	task.Steps = []Step{{Index: 0}, {Index: 1}}
	task.CurrentStepIndex = 1
	require.NotNil(t, task.CurrentStep())
	assert.Equal(t, 1, task.CurrentStep().Index)

	task.CurrentStepIndex = 2
	assert.Nil(t, task.CurrentStep(), "cursor past the end means completed")
}

func TestTaskClone_IsIndependent(t *testing.T) {
	task := &Task{
		ID:      "t-1",
		Status:  TaskStatusRunning,
		Steps:   []Step{{Index: 0, Status: StepStatusPending}},
		Context: JSONB{"fetch_emails": "original"},
	}

	cp := task.Clone()
	cp.Steps[0].Status = StepStatusFailed
	cp.Context["fetch_emails"] = "mutated"
	cp.Status = TaskStatusFailed

	assert.Equal(t, StepStatusPending, task.Steps[0].Status)
	assert.Equal(t, "original", task.Context["fetch_emails"])
	assert.Equal(t, TaskStatusRunning, task.Status)
}

func TestTaskRecordRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	task := &Task{
		ID:               "t-1",
		UserID:           "user-1",
		Intent:           "triage my inbox",
		Status:           TaskStatusCompleted,
		CurrentStepIndex: 1,
		Steps: []Step{{
			ID:       "s-1",
			ToolName: "fetch_emails",
			Status:   StepStatusCompleted,
			Result:   JSONB{"emails": []interface{}{}},
		}},
		Context:     JSONB{"fetch_emails": map[string]interface{}{"emails": []interface{}{}}},
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}

	record, err := NewTaskRecord(task)
	require.NoError(t, err)
	assert.Equal(t, "tasks", record.TableName())
	assert.Equal(t, string(TaskStatusCompleted), record.Status)

	restored, err := record.Decode()
	require.NoError(t, err)
	assert.Equal(t, task.ID, restored.ID)
	assert.Equal(t, task.Status, restored.Status)
	assert.Equal(t, task.CurrentStepIndex, restored.CurrentStepIndex)
	require.Len(t, restored.Steps, 1)
	assert.Equal(t, "fetch_emails", restored.Steps[0].ToolName)
}
