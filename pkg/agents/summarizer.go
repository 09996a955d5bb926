package agents

import (
	"context"
	"fmt"
	"strings"

	"nestwise/pkg/contextmgr"
	"nestwise/pkg/llm"
	"nestwise/pkg/logx"
)

const summarizerSystemPrompt = `You compress retirement planning interviews. Given the prior running summary
and the conversation transcript, write a new running summary that preserves
every fact the user stated (goals, numbers, preferences) and the current
direction of the conversation. Be concise; plain prose; no preamble.`

// NoSummary is the sentinel used before the first compaction.
const NoSummary = "None"

// Summarizer compacts a long interviewer history into a running summary.
type Summarizer struct {
	client llm.Client
	logger *logx.Logger
}

// NewSummarizer creates a summarizer backed by client.
func NewSummarizer(client llm.Client) *Summarizer {
	return &Summarizer{client: client, logger: logx.NewLogger("summarizer")}
}

// Compact produces a new running summary from the prior one plus cm's full
// transcript, then resets cm to persona + summary + the most recent assistant
// message. Returns the new summary.
func (s *Summarizer) Compact(ctx context.Context, prior string, cm *contextmgr.ContextManager) (string, error) {
	if strings.TrimSpace(prior) == "" {
		prior = NoSummary
	}

	task := fmt.Sprintf("Prior summary:\n%s\n\nTranscript:\n%s", prior, cm.Transcript())
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(summarizerSystemPrompt),
		llm.NewUserMessage(task),
	})

	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarizer completion: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)

	rebuilt := []contextmgr.Message{
		{Role: string(llm.RoleSystem), Content: InterviewerPersona},
		{Role: string(llm.RoleSystem), Content: "Conversation so far, summarized: " + summary},
	}
	if last, ok := cm.LastAssistantMessage(); ok {
		rebuilt = append(rebuilt, last)
	}
	before := cm.GetMessageCount()
	cm.Reset(rebuilt)
	s.logger.Info("compacted %d messages to %d", before, cm.GetMessageCount())

	return summary, nil
}
