package logx

import "testing"

func TestNewLogger(t *testing.T) {
	logger := NewLogger("interviewer")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if logger.GetAgentID() != "interviewer" {
		t.Errorf("expected agent ID 'interviewer', got %q", logger.GetAgentID())
	}
}

func TestWithAgentID(t *testing.T) {
	logger := NewLogger("planner")
	rescoped := logger.WithAgentID("extractor")

	if rescoped.GetAgentID() != "extractor" {
		t.Errorf("expected rescoped agent ID 'extractor', got %q", rescoped.GetAgentID())
	}
	if logger.GetAgentID() != "planner" {
		t.Errorf("original logger mutated, got %q", logger.GetAgentID())
	}
}

func TestDebugToggle(t *testing.T) {
	SetDebug(false)
	if IsDebugEnabled() {
		t.Error("expected debug disabled by default")
	}

	SetDebug(true)
	if !IsDebugEnabled() {
		t.Error("expected debug enabled after SetDebug(true)")
	}
	SetDebug(false)
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("expected nil from wrapping nil error, got %v", err)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf("model %s failed", "gpt-4o")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "model gpt-4o failed" {
		t.Errorf("unexpected error text: %q", err.Error())
	}
}
