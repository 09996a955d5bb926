// Package llm provides the provider-neutral interface and message types for
// language model interactions.
package llm

import (
	"context"

	"nestwise/pkg/tools"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
	// RoleTool indicates the textual result of a tool execution.
	RoleTool CompletionRole = "tool"
)

// ResponseFormat constrains the shape of a completion response.
type ResponseFormat string

const (
	// FormatText requests free-form text output.
	FormatText ResponseFormat = "text"
	// FormatJSON requests a single JSON object as output.
	FormatJSON ResponseFormat = "json"
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// ToolCall represents a tool call made by the LLM.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages       []CompletionMessage
	Tools          []tools.ToolDefinition
	ResponseFormat ResponseFormat
	MaxTokens      int
	Temperature    float32
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	ToolCalls []ToolCall
	Content   string
}

// Client defines the interface for language model interactions.
// Implementations make exactly one blocking provider call per Complete.
type Client interface {
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
	GetModelName() string
}

// DefaultMaxTokens is the reply budget used when a request does not set one.
const DefaultMaxTokens = 4096

// NewCompletionRequest creates a completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:       messages,
		MaxTokens:      DefaultMaxTokens,
		ResponseFormat: FormatText,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}
