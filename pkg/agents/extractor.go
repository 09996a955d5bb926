package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nestwise/pkg/llm"
	"nestwise/pkg/logx"
	"nestwise/pkg/profile"
)

const extractorSystemPrompt = `You extract retirement-planning facts from a conversation exchange.
Return a JSON object whose keys are taken ONLY from the allowed field list.
Include a field only when the user's message clearly states its value.
Values are short strings. Return {} when nothing new was stated.`

const titleSystemPrompt = `You name conversations. Given a user's retirement goal, reply with a short title of 3 to 8 words. No quotes, no punctuation at the end.`

// Extractor parses the latest exchange into profile-field updates.
type Extractor struct {
	client llm.Client
	logger *logx.Logger
}

// NewExtractor creates an extractor backed by client.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client, logger: logx.NewLogger("extractor")}
}

// ExtractResult reports what one extraction pass changed.
type ExtractResult struct {
	// Updated lists the fields newly marked collected, in no fixed order.
	Updated []string
	// AllCollected is true when every tracked field is now collected.
	AllCollected bool
}

// Extract runs one structured-extraction pass over the latest exchange,
// marking returned fields collected and merging their values. An unparseable
// model response is treated as no new information; only an infrastructure
// failure is returned as an error.
func (a *Extractor) Extract(ctx context.Context, completion *profile.CompletionMap, values profile.Values, userMessage, assistantMessage string) (ExtractResult, error) {
	result := ExtractResult{AllCollected: completion.AllCollected()}

	var pending []string
	for _, field := range completion.Fields() {
		if entry, _ := completion.Entry(field); !entry.Collected {
			pending = append(pending, field)
		}
	}
	if len(pending) == 0 || strings.TrimSpace(userMessage) == "" {
		return result, nil
	}

	var task strings.Builder
	task.WriteString("Allowed fields: ")
	task.WriteString(strings.Join(pending, ", "))
	task.WriteString("\n")
	if assistantMessage != "" {
		task.WriteString("Assistant asked: ")
		task.WriteString(assistantMessage)
		task.WriteString("\n")
	}
	task.WriteString("User said: ")
	task.WriteString(userMessage)

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(extractorSystemPrompt),
		llm.NewUserMessage(task.String()),
	})
	req.ResponseFormat = llm.FormatJSON

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return result, fmt.Errorf("extractor completion: %w", err)
	}

	extracted := map[string]any{}
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &extracted); err != nil {
		a.logger.Debug("extractor response not parseable, treating as no update: %v", err)
		return result, nil
	}

	for field, raw := range extracted {
		if !completion.Has(field) {
			a.logger.Debug("ignoring extracted field %q outside tracked schema", field)
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(raw))
		if value == "" || raw == nil {
			continue
		}
		completion.MarkCollected(field)
		values[field] = value
		result.Updated = append(result.Updated, field)
	}

	result.AllCollected = completion.AllCollected()
	return result, nil
}

// GenerateTitle derives a short conversation title from the stated goal. The
// caller guards that this runs at most once per session.
func (a *Extractor) GenerateTitle(ctx context.Context, goal string) (string, error) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(titleSystemPrompt),
		llm.NewUserMessage(goal),
	})
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("title completion: %w", err)
	}
	return strings.Trim(strings.TrimSpace(resp.Content), `"`), nil
}

// stripFences removes a markdown code fence wrapper if the model added one
// despite JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
