// Package anthropicc provides the Anthropic implementation of the llm.Client
// interface.
//
// The Messages API differs from the chat-completions shape in two ways this
// package has to absorb: system prompts travel as a top-level parameter, and
// the messages array must strictly alternate user and assistant roles.
package anthropicc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"nestwise/pkg/llm"
	"nestwise/pkg/llm/llmerrors"
	"nestwise/pkg/tools"
)

const jsonInstruction = "Respond with a single valid JSON object and nothing else."

// Client wraps the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates an Anthropic client for the given model.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// GetModelName returns the model this client talks to.
func (c *Client) GetModelName() string {
	return string(c.model)
}

// ensureAlternation prepares messages for the Messages API: system messages
// are pulled out into the returned prompt, and runs of consecutive
// non-assistant messages (user and tool alike) are merged into single user
// turns so the sequence alternates.
func ensureAlternation(messages []llm.CompletionMessage) (systemPrompt string, alternating []llm.CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []llm.CompletionMessage
	for i := range messages {
		msg := &messages[i]
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, *msg)
		}
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	var merged []llm.CompletionMessage
	var userParts []string
	flush := func() {
		if len(userParts) > 0 {
			merged = append(merged, llm.NewUserMessage(strings.Join(userParts, "\n\n")))
			userParts = nil
		}
	}
	for i := range rest {
		msg := &rest[i]
		if msg.Role == llm.RoleAssistant {
			flush()
			merged = append(merged, *msg)
		} else {
			userParts = append(userParts, msg.Content)
		}
	}
	flush()

	// The Messages API requires a user turn first. A conversation that opens
	// with the assistant greeting gets a synthetic user turn prepended.
	if merged[0].Role == llm.RoleAssistant {
		merged = append([]llm.CompletionMessage{llm.NewUserMessage("(session started)")}, merged...)
	}
	if merged[len(merged)-1].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got %s", merged[len(merged)-1].Role)
	}
	return systemPrompt, merged, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, alternating, err := ensureAlternation(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.New(llmerrors.ErrorTypeMalformedResponse,
			fmt.Errorf("message alternation: %w", err))
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		msg := &alternating[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	maxTokens := int64(in.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if in.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(in.Temperature))
	}

	// The Messages API has no native JSON response mode. The instruction
	// rides on the system prompt instead.
	if in.ResponseFormat == llm.FormatJSON {
		if systemPrompt != "" {
			systemPrompt += "\n\n"
		}
		systemPrompt += jsonInstruction
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	if len(in.Tools) > 0 {
		params.Tools = convertTools(in.Tools)
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.New(llmerrors.ErrorTypeUnavailable,
			fmt.Errorf("anthropic message failed: %w", err))
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.Newf(llmerrors.ErrorTypeEmptyResponse,
			"empty response from anthropic model %s", c.model)
	}

	var result llm.CompletionResponse
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			result.Content += block.AsText().Text
		case "tool_use":
			toolUse := block.AsToolUse()
			callParams := make(map[string]any)
			if err := json.Unmarshal(toolUse.Input, &callParams); err != nil {
				return llm.CompletionResponse{}, llmerrors.New(llmerrors.ErrorTypeMalformedResponse,
					fmt.Errorf("tool input not valid JSON: %w", err))
			}
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				ID:         toolUse.ID,
				Name:       toolUse.Name,
				Parameters: callParams,
			})
		}
	}
	return result, nil
}

func convertTools(defs []tools.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for i := range defs {
		td := &defs[i]
		properties := make(map[string]any, len(td.InputSchema.Properties))
		for name := range td.InputSchema.Properties {
			prop := td.InputSchema.Properties[name]
			properties[name] = convertProperty(&prop)
		}
		schema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: properties,
			Required:   td.InputSchema.Required,
		}
		out = append(out, anthropic.ToolUnionParamOfTool(schema, td.Name))
	}
	return out
}

func convertProperty(prop *tools.Property) map[string]any {
	schema := map[string]any{"type": prop.Type}
	if prop.Description != "" {
		schema["description"] = prop.Description
	}
	if len(prop.Enum) > 0 {
		schema["enum"] = prop.Enum
	}
	if prop.Items != nil {
		schema["items"] = convertProperty(prop.Items)
	}
	return schema
}
