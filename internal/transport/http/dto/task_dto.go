package dto

type CreateTaskRequest struct {
	UserID         string   `json:"user_id" validate:"required"`
	Intent         string   `json:"intent" validate:"required"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Integrations   []string `json:"integrations,omitempty"`
}

func (r *CreateTaskRequest) Validate() []string {
	var errors []string
	if r.UserID == "" {
		errors = append(errors, "user_id is required")
	}
	if r.Intent == "" {
		errors = append(errors, "intent is required")
	}
	return errors
}

type AssistantMessageRequest struct {
	UserID         string   `json:"user_id" validate:"required"`
	Message        string   `json:"message" validate:"required"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Integrations   []string `json:"integrations,omitempty"`
}

func (r *AssistantMessageRequest) Validate() []string {
	var errors []string
	if r.UserID == "" {
		errors = append(errors, "user_id is required")
	}
	if r.Message == "" {
		errors = append(errors, "message is required")
	}
	return errors
}
