// internal/models/dispatch.go
package models

// GroupContext is an opaque multi-tenancy token forwarded to downstream
// services. The dispatcher never interprets it.
type GroupContext struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId,omitempty"`
}

// DispatchRequest is the immutable input of a dispatch call.
type DispatchRequest struct {
	Message string   `json:"message"`
	Model   string   `json:"model,omitempty"`
	Tools   []string `json:"tools,omitempty"`
}

// AgentGenerationRequest is the input of the agent generation service.
type AgentGenerationRequest struct {
	Prompt string   `json:"prompt"`
	Model  string   `json:"model"`
	Tools  []string `json:"tools,omitempty"`
}

// TaskGenerationRequest is the input of the task generation service.
type TaskGenerationRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// CrewGenerationRequest is the input of the crew generation service.
type CrewGenerationRequest struct {
	Prompt string   `json:"prompt"`
	Model  string   `json:"model"`
	Tools  []string `json:"tools,omitempty"`
}
