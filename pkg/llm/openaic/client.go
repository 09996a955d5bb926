// Package openaic provides the OpenAI implementation of the llm.Client
// interface using the official openai-go SDK.
package openaic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"nestwise/pkg/llm"
	"nestwise/pkg/llm/llmerrors"
	"nestwise/pkg/tools"
)

// Client wraps the OpenAI chat completions API.
type Client struct {
	client openai.Client
	model  string
}

// New creates an OpenAI client for the given model.
func New(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// GetModelName returns the model this client talks to.
func (c *Client) GetModelName() string {
	return c.model
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case llm.RoleTool:
			// Tool results are folded into the user turn; the bounded
			// retrieval loop never needs provider-level tool threading.
			messages = append(messages, openai.UserMessage("Tool result:\n"+msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if in.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(in.MaxTokens))
	}
	if in.Temperature > 0 {
		params.Temperature = openai.Float(float64(in.Temperature))
	}
	if in.ResponseFormat == llm.FormatJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	if len(in.Tools) > 0 {
		params.Tools = convertTools(in.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.New(llmerrors.ErrorTypeUnavailable,
			fmt.Errorf("openai chat completion failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.Newf(llmerrors.ErrorTypeEmptyResponse,
			"empty response from openai model %s", c.model)
	}

	choice := resp.Choices[0]
	result := llm.CompletionResponse{Content: choice.Message.Content}

	for i := range choice.Message.ToolCalls {
		call := &choice.Message.ToolCalls[i]
		params := make(map[string]any)
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &params); err != nil {
				return llm.CompletionResponse{}, llmerrors.New(llmerrors.ErrorTypeMalformedResponse,
					fmt.Errorf("tool call arguments not valid JSON: %w", err))
			}
		}
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:         call.ID,
			Name:       call.Function.Name,
			Parameters: params,
		})
	}

	return result, nil
}

func convertTools(defs []tools.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(defs))
	for i := range defs {
		td := &defs[i]
		properties := make(map[string]any, len(td.InputSchema.Properties))
		for name := range td.InputSchema.Properties {
			prop := td.InputSchema.Properties[name]
			properties[name] = convertProperty(&prop)
		}
		out[i] = openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        td.Name,
			Description: openai.String(td.Description),
			Parameters: shared.FunctionParameters{
				"type":       td.InputSchema.Type,
				"properties": properties,
				"required":   td.InputSchema.Required,
			},
		})
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
	if prop.Properties != nil {
		nested := make(map[string]any, len(prop.Properties))
		for name, child := range prop.Properties {
			if child != nil {
				nested[name] = convertProperty(child)
			}
		}
		schema["properties"] = nested
	}
	return schema
}
