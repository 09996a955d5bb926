// Package contextmgr manages one sub-agent's conversation context: an ordered,
// append-only sequence of role-tagged messages with token accounting.
package contextmgr

import (
	"strings"

	"nestwise/pkg/llm"
)

// Message is a single role-tagged entry in a conversation.
type Message struct {
	Role    string
	Content string
}

// ContextManager owns the message sequence for one sub-agent. Messages are
// never reordered; they are only appended, filtered (duplicate system prompt
// suppression), or truncated by summarization reset.
type ContextManager struct {
	messages []Message
	counter  *TokenCounter
}

// NewContextManager creates an empty context manager.
func NewContextManager() *ContextManager {
	return &ContextManager{messages: make([]Message, 0)}
}

// NewContextManagerWithCounter creates a context manager that counts tokens
// with the given counter instead of the character heuristic.
func NewContextManagerWithCounter(counter *TokenCounter) *ContextManager {
	return &ContextManager{messages: make([]Message, 0), counter: counter}
}

// Clone returns an independent copy of the context. The token counter is
// shared; it is stateless after construction.
func (cm *ContextManager) Clone() *ContextManager {
	out := &ContextManager{
		messages: make([]Message, len(cm.messages)),
		counter:  cm.counter,
	}
	copy(out.messages, cm.messages)
	return out
}

// AddMessage appends a role/content pair to the context.
func (cm *ContextManager) AddMessage(role, content string) {
	cm.messages = append(cm.messages, Message{Role: role, Content: content})
}

// EnsureSystemPrompt installs prompt as the first message exactly once.
// Repeated calls with a prompt already present are no-ops, so the persona
// instruction is never duplicated across turns.
func (cm *ContextManager) EnsureSystemPrompt(prompt string) {
	if len(cm.messages) > 0 && cm.messages[0].Role == string(llm.RoleSystem) &&
		cm.messages[0].Content == prompt {
		return
	}
	cm.messages = append([]Message{{Role: string(llm.RoleSystem), Content: prompt}}, cm.messages...)
}

// RemoveWhere drops every message for which keep returns false, preserving
// order. Used to filter stale per-turn task messages before rebuilding them.
func (cm *ContextManager) RemoveWhere(drop func(Message) bool) {
	kept := cm.messages[:0]
	for _, m := range cm.messages {
		if !drop(m) {
			kept = append(kept, m)
		}
	}
	cm.messages = kept
}

// GetMessages returns a copy of all messages in the context.
func (cm *ContextManager) GetMessages() []Message {
	out := make([]Message, len(cm.messages))
	copy(out, cm.messages)
	return out
}

// GetMessageCount returns the number of messages in the context.
func (cm *ContextManager) GetMessageCount() int {
	return len(cm.messages)
}

// LastAssistantMessage returns the most recent assistant message, if any.
func (cm *ContextManager) LastAssistantMessage() (Message, bool) {
	for i := len(cm.messages) - 1; i >= 0; i-- {
		if cm.messages[i].Role == string(llm.RoleAssistant) {
			return cm.messages[i], true
		}
	}
	return Message{}, false
}

// Reset replaces the whole context with the given messages. The summarizer
// uses this to collapse history to persona + summary + latest assistant turn.
func (cm *ContextManager) Reset(messages []Message) {
	cm.messages = make([]Message, len(messages))
	copy(cm.messages, messages)
}

// CountTokens returns the token count of the whole context. With no counter
// configured it falls back to a character-based estimate.
func (cm *ContextManager) CountTokens() int {
	total := 0
	for i := range cm.messages {
		m := &cm.messages[i]
		if cm.counter != nil {
			total += cm.counter.CountTokens(m.Content)
		} else {
			total += estimateTokens(m.Content)
		}
	}
	return total
}

// CompletionMessages converts the context to the llm request message type.
func (cm *ContextManager) CompletionMessages() []llm.CompletionMessage {
	out := make([]llm.CompletionMessage, 0, len(cm.messages))
	for i := range cm.messages {
		m := &cm.messages[i]
		out = append(out, llm.CompletionMessage{
			Role:    llm.CompletionRole(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// Transcript renders the conversation as plain text, one "role: content"
// line per message. Used by the summarizer.
func (cm *ContextManager) Transcript() string {
	var b strings.Builder
	for i := range cm.messages {
		m := &cm.messages[i]
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// estimateTokens approximates token counts at 4 characters per token.
func estimateTokens(text string) int {
	return len(text) / 4
}
