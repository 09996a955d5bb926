// Package agents contains the specialist agents the orchestrator routes
// between: interviewer, extractor, template matcher, planner and summarizer.
// Each agent owns its prompt construction and response validation; none of
// them makes more than a bounded number of model calls per invocation.
package agents

import (
	"context"
	"fmt"
	"strings"

	"nestwise/pkg/contextmgr"
	"nestwise/pkg/llm"
	"nestwise/pkg/logx"
	"nestwise/pkg/profile"
)

// InterviewerPersona is the persistent system instruction framing the
// interviewer's role and topic boundary. Installed once per session.
const InterviewerPersona = `You are NestWise, a warm and knowledgeable retirement planning assistant.
You help the user articulate their retirement goals by asking one clear, conversational question at a time.
Stay strictly on the topic of retirement planning and personal finances.
Never ask about more than one field in a single question, and never claim the interview is complete.`

// taskPrefix marks the per-turn status message so stale copies can be
// filtered before the next turn's status is appended.
const taskPrefix = "Interview status:"

// Interviewer produces the next question to ask given the completion state.
type Interviewer struct {
	client llm.Client
	logger *logx.Logger
}

// NewInterviewer creates an interviewer backed by client.
func NewInterviewer(client llm.Client) *Interviewer {
	return &Interviewer{client: client, logger: logx.NewLogger("interviewer")}
}

// Ask appends the user's message and one assistant reply to cm, asking about
// the most important uncollected field. The completion map is read-only here.
func (a *Interviewer) Ask(ctx context.Context, cm *contextmgr.ContextManager, completion *profile.CompletionMap, userMessage string) (string, error) {
	cm.EnsureSystemPrompt(InterviewerPersona)
	if userMessage != "" {
		cm.AddMessage(string(llm.RoleUser), userMessage)
	}

	missing := completion.Missing()

	// The status message is rebuilt every turn; old copies are dropped so the
	// context carries exactly one.
	cm.RemoveWhere(func(m contextmgr.Message) bool {
		return m.Role == string(llm.RoleSystem) && strings.HasPrefix(m.Content, taskPrefix)
	})
	cm.AddMessage(string(llm.RoleSystem), a.statusMessage(completion, missing))

	req := llm.NewCompletionRequest(cm.CompletionMessages())
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("interviewer completion: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if len(missing) > 0 && claimsCompletion(reply) {
		a.logger.Warn("model claimed completion with %d fields missing, substituting fallback question", len(missing))
		reply = FallbackQuestion(missing[0].Name)
	}

	cm.AddMessage(string(llm.RoleAssistant), reply)
	return reply, nil
}

func (a *Interviewer) statusMessage(completion *profile.CompletionMap, missing []profile.MissingField) string {
	var b strings.Builder
	b.WriteString(taskPrefix)
	b.WriteString(" ")
	b.WriteString(completion.String())
	b.WriteString("\n")
	if len(missing) == 0 {
		b.WriteString("All fields are collected. Acknowledge the user's last message briefly.")
		return b.String()
	}
	b.WriteString("Still missing, most important first: ")
	for i, mf := range missing {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (importance %d)", mf.Name, mf.Importance)
	}
	b.WriteString(".\nAsk one question about the first missing field only.")
	return b.String()
}

// FallbackQuestion is the deterministic substitute used when the model claims
// completion prematurely.
func FallbackQuestion(field string) string {
	return fmt.Sprintf("Could you please tell me your %s?", strings.ReplaceAll(field, "_", " "))
}

// claimsCompletion reports whether a reply reads as "interview finished"
// rather than a question.
func claimsCompletion(reply string) bool {
	if reply == "" {
		return true
	}
	lower := strings.ToLower(reply)
	for _, marker := range []string{
		"all the information i need",
		"everything i need",
		"we're all set",
		"we are all set",
		"interview is complete",
		"ready to build your plan",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return !strings.Contains(reply, "?")
}
