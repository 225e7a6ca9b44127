package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateTaskRequestValidate(t *testing.T) {
	req := &CreateTaskRequest{UserID: "user-1", Intent: "triage my inbox"}
	assert.Empty(t, req.Validate())

	req = &CreateTaskRequest{}
	errs := req.Validate()
	assert.Contains(t, errs, "user_id is required")
	assert.Contains(t, errs, "intent is required")
}

func TestAssistantMessageRequestValidate(t *testing.T) {
	req := &AssistantMessageRequest{UserID: "user-1", Message: "good morning"}
	assert.Empty(t, req.Validate())

	req = &AssistantMessageRequest{UserID: "user-1"}
	assert.Equal(t, []string{"message is required"}, req.Validate())
}
