package contextmgr

import (
	"strings"
	"testing"
)

func TestNewContextManager(t *testing.T) {
	cm := NewContextManager()
	if cm.GetMessageCount() != 0 {
		t.Errorf("expected 0 messages, got %d", cm.GetMessageCount())
	}
	if cm.CountTokens() != 0 {
		t.Errorf("expected 0 tokens, got %d", cm.CountTokens())
	}
}

func TestAddMessageOrder(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("user", "hello")
	cm.AddMessage("assistant", "hi, how can I help?")

	messages := cm.GetMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Errorf("message order not preserved: %+v", messages)
	}
}

func TestEnsureSystemPromptInstallsOnce(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("user", "hello")

	cm.EnsureSystemPrompt("persona")
	cm.EnsureSystemPrompt("persona")
	cm.EnsureSystemPrompt("persona")

	messages := cm.GetMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after repeated installs, got %d", len(messages))
	}
	if messages[0].Role != "system" || messages[0].Content != "persona" {
		t.Errorf("system prompt not first: %+v", messages[0])
	}
}

func TestRemoveWhere(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("system", "persona")
	cm.AddMessage("user", "profile status: stale")
	cm.AddMessage("user", "my age is 40")

	cm.RemoveWhere(func(m Message) bool {
		return strings.HasPrefix(m.Content, "profile status:")
	})

	messages := cm.GetMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after filter, got %d", len(messages))
	}
	if messages[1].Content != "my age is 40" {
		t.Errorf("wrong message dropped: %+v", messages)
	}
}

func TestLastAssistantMessage(t *testing.T) {
	cm := NewContextManager()
	if _, ok := cm.LastAssistantMessage(); ok {
		t.Error("expected no assistant message in empty context")
	}

	cm.AddMessage("assistant", "first")
	cm.AddMessage("user", "reply")
	cm.AddMessage("assistant", "second")

	msg, ok := cm.LastAssistantMessage()
	if !ok || msg.Content != "second" {
		t.Errorf("expected latest assistant message, got %+v ok=%t", msg, ok)
	}
}

func TestReset(t *testing.T) {
	cm := NewContextManager()
	for i := 0; i < 25; i++ {
		cm.AddMessage("user", "filler")
	}

	cm.Reset([]Message{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "Summary: user wants to retire at 60"},
		{Role: "assistant", Content: "What is your monthly budget?"},
	})

	if cm.GetMessageCount() != 3 {
		t.Fatalf("expected 3 messages after reset, got %d", cm.GetMessageCount())
	}
}

func TestCountTokensEstimate(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("user", strings.Repeat("a", 40))
	if got := cm.CountTokens(); got != 10 {
		t.Errorf("expected 10 estimated tokens, got %d", got)
	}
}

func TestTokenCounter(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("NewTokenCounter: %v", err)
	}
	n := counter.CountTokens("Hello, retirement planning world!")
	if n <= 0 {
		t.Errorf("expected positive token count, got %d", n)
	}
}

func TestCloneIsIndependentAndKeepsCounter(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("NewTokenCounter: %v", err)
	}
	cm := NewContextManagerWithCounter(counter)
	cm.AddMessage("user", "I want to retire at sixty")

	clone := cm.Clone()
	if got, want := clone.CountTokens(), cm.CountTokens(); got != want {
		t.Errorf("clone counts %d tokens, original %d", got, want)
	}

	clone.AddMessage("assistant", "Tell me more")
	if cm.GetMessageCount() != 1 {
		t.Errorf("append to clone leaked into original: %d messages", cm.GetMessageCount())
	}
}

func TestCompletionMessages(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("system", "persona")
	cm.AddMessage("user", "hi")

	msgs := cm.CompletionMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 completion messages, got %d", len(msgs))
	}
	if string(msgs[0].Role) != "system" {
		t.Errorf("role not converted: %+v", msgs[0])
	}
}

func TestTranscript(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("user", "hello")
	cm.AddMessage("assistant", "hi")

	got := cm.Transcript()
	want := "user: hello\nassistant: hi\n"
	if got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}
}
