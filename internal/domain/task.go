package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ==================== ENUMS ====================

type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "pending"
	TaskStatusPlanning        TaskStatus = "planning"
	TaskStatusRunning         TaskStatus = "running"
	TaskStatusWaitingApproval TaskStatus = "waiting_approval"
	TaskStatusPaused          TaskStatus = "paused"
	TaskStatusCompleted       TaskStatus = "completed"
	TaskStatusFailed          TaskStatus = "failed"
	TaskStatusCancelled       TaskStatus = "cancelled"
)

// Terminal reports whether the status accepts no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

type StepStatus string

const (
	StepStatusPending         StepStatus = "pending"
	StepStatusRunning         StepStatus = "running"
	StepStatusCompleted       StepStatus = "completed"
	StepStatusFailed          StepStatus = "failed"
	StepStatusSkipped         StepStatus = "skipped"
	StepStatusWaitingApproval StepStatus = "waiting_approval"
)

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONB: invalid type")
	}
	return json.Unmarshal(bytes, j)
}

// ==================== TASK / STEP ====================

// Step is one tool invocation within a task. Steps are owned by their task
// and execute strictly in index order.
type Step struct {
	ID               string     `json:"id"`
	Index            int        `json:"index"`
	Description      string     `json:"description"`
	ToolName         string     `json:"tool_name,omitempty"` // empty for pure-reasoning steps
	ToolParams       JSONB      `json:"tool_params,omitempty"`
	IntegrationID    string     `json:"integration_id,omitempty"`
	Status           StepStatus `json:"status"`
	Result           JSONB      `json:"result,omitempty"`
	Error            string     `json:"error,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RequiresApproval bool       `json:"requires_approval"`
	ApprovalPreview  string     `json:"approval_preview,omitempty"`
}

// Task is one end-to-end user intent being executed as a sequence of steps.
//
// CurrentStepIndex is always in [0, len(Steps)] and equals len(Steps) only
// when the task completed.
type Task struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Intent           string     `json:"intent"`
	Status           TaskStatus `json:"status"`
	Steps            []Step     `json:"steps"`
	CurrentStepIndex int        `json:"current_step_index"`
	Context          JSONB      `json:"context,omitempty"`
	ConversationID   string     `json:"conversation_id,omitempty"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// CurrentStep returns the step the cursor points at, or nil when the task
// has no steps yet or the cursor ran past the end.
func (t *Task) CurrentStep() *Step {
	if t.CurrentStepIndex < 0 || t.CurrentStepIndex >= len(t.Steps) {
		return nil
	}
	return &t.Steps[t.CurrentStepIndex]
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Steps = make([]Step, len(t.Steps))
	copy(cp.Steps, t.Steps)
	if t.Context != nil {
		cp.Context = make(JSONB, len(t.Context))
		for k, v := range t.Context {
			cp.Context[k] = v
		}
	}
	return &cp
}

// ==================== PERSISTENCE MODEL ====================

// TaskRecord mirrors a task to durable storage for history. The full task is
// serialized into Data; the indexed columns exist for listing queries only.
type TaskRecord struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID         string     `gorm:"type:varchar(64);index" json:"user_id"`
	Intent         string     `gorm:"type:text" json:"intent"`
	Status         string     `gorm:"type:varchar(32);index" json:"status"`
	ConversationID string     `gorm:"type:varchar(64)" json:"conversation_id,omitempty"`
	Data           []byte     `gorm:"type:jsonb;not null" json:"-"`
	Error          string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `gorm:"index" json:"completed_at,omitempty"`
}

func (TaskRecord) TableName() string {
	return "tasks"
}

// NewTaskRecord serializes a task into its storage form.
func NewTaskRecord(t *Task) (*TaskRecord, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return &TaskRecord{
		ID:             t.ID,
		UserID:         t.UserID,
		Intent:         t.Intent,
		Status:         string(t.Status),
		ConversationID: t.ConversationID,
		Data:           data,
		Error:          t.Error,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		CompletedAt:    t.CompletedAt,
	}, nil
}

// Decode restores the full task from its storage form.
func (r *TaskRecord) Decode() (*Task, error) {
	var t Task
	if err := json.Unmarshal(r.Data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
