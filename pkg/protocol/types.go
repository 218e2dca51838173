// Package protocol defines the wire types of the agent streaming API and
// the dispatcher that turns raw event frames into typed stream events.
package protocol

import "fmt"

// Message roles as they appear on the wire.
const (
	RoleHuman  = "human"
	RoleAI     = "ai"
	RoleTool   = "tool"
	RoleCustom = "custom"
)

// ChatRequest describes one chat turn. It is immutable once sent.
type ChatRequest struct {
	Message      string `json:"message"`
	ThreadID     string `json:"thread_id"`
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	StreamTokens bool   `json:"stream_tokens"`
}

// Validate checks that all fields a stream open requires are present.
// Identifier defaulting happens in the facade, so an empty identifier here
// is a caller error.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("message is required")
	}
	if r.ThreadID == "" {
		return fmt.Errorf("thread_id is required")
	}
	if r.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// ToolCall is a tool invocation requested by the agent.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
	ID   string         `json:"id,omitempty"`
	Type string         `json:"type,omitempty"`
}

// ChatMessage is a complete structured message within a conversation.
type ChatMessage struct {
	Type             string         `json:"type"`
	Content          string         `json:"content"`
	ToolCalls        []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty"`
	RunID            string         `json:"run_id,omitempty"`
	ThreadID         string         `json:"thread_id,omitempty"`
	SessionID        string         `json:"session_id,omitempty"`
	ResponseMetadata map[string]any `json:"response_metadata,omitempty"`
	CustomData       map[string]any `json:"custom_data,omitempty"`
}

// HealthStatus is the body of the service health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// HistoryResponse wraps the messages of one conversation thread.
type HistoryResponse struct {
	Messages []ChatMessage `json:"messages"`
}

// FeedbackRequest scores a single agent run.
type FeedbackRequest struct {
	RunID  string         `json:"run_id"`
	Key    string         `json:"key"`
	Score  float64        `json:"score"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// Validate checks the fields the feedback endpoint requires.
func (r *FeedbackRequest) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if r.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}
