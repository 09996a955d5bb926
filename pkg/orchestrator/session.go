package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"nestwise/pkg/contextmgr"
	"nestwise/pkg/llm"
	"nestwise/pkg/profile"
)

// Greeting opens every new session.
const Greeting = "Hello there, I'm NestWise! I'm here to help you plan the retirement you want. To get started, what are you hoping your retirement will look like?"

// Session is the unit of isolation for one user interaction. All mutation
// happens inside an orchestrator turn while the session lock is held; no two
// turns of the same session ever interleave.
type Session struct {
	ID        string
	CreatedAt time.Time

	Completion   *profile.CompletionMap
	Values       profile.Values
	TemplateName string
	Summary      string
	Title        string
	State        State

	// Interviewer owns the user-visible conversation context.
	Interviewer *contextmgr.ContextManager

	// PlanJSON and PlannerFinal record the planner's final answer so repeated
	// turns re-display the raw plan instead of re-planning.
	PlanJSON     string
	PlannerFinal bool

	mu sync.Mutex
}

// newSession builds a session with the default goal-discovery schema and the
// greeting already in the conversation. A nil counter falls back to the
// character-based token estimate.
func newSession(counter *contextmgr.TokenCounter) *Session {
	cm := contextmgr.NewContextManager()
	if counter != nil {
		cm = contextmgr.NewContextManagerWithCounter(counter)
	}
	s := &Session{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Completion:  profile.DefaultDiscoveryMap(),
		Values:      profile.Values{},
		State:       StateAwaitingTemplate,
		Interviewer: cm,
	}
	s.Interviewer.AddMessage(string(llm.RoleAssistant), Greeting)
	return s
}

// clone deep-copies the mutable session state into a working copy. A failed
// turn discards the copy, leaving the session exactly as it was.
func (s *Session) clone() *Session {
	work := &Session{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		Completion:   s.Completion.Clone(),
		Values:       s.Values.Clone(),
		TemplateName: s.TemplateName,
		Summary:      s.Summary,
		Title:        s.Title,
		State:        s.State,
		Interviewer:  s.Interviewer.Clone(),
		PlanJSON:     s.PlanJSON,
		PlannerFinal: s.PlannerFinal,
	}
	return work
}

// commit adopts the working copy's state. Called only after every agent in
// the turn succeeded.
func (s *Session) commit(work *Session) {
	s.Completion = work.Completion
	s.Values = work.Values
	s.TemplateName = work.TemplateName
	s.Summary = work.Summary
	s.Title = work.Title
	s.State = work.State
	s.Interviewer = work.Interviewer
	s.PlanJSON = work.PlanJSON
	s.PlannerFinal = work.PlannerFinal
}

// ProfileSnapshot renders every tracked field with its extracted value, using
// false as the sentinel for "not yet collected".
func (s *Session) ProfileSnapshot() map[string]any {
	snapshot := make(map[string]any, s.Completion.Len())
	for _, field := range s.Completion.Fields() {
		if value, ok := s.Values[field]; ok {
			snapshot[field] = value
		} else {
			snapshot[field] = false
		}
	}
	return snapshot
}

// Manager owns all live sessions. Sessions are fully independent; the
// per-session lock in Advance is the only cross-turn coordination.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	counter  *contextmgr.TokenCounter
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// NewManagerWithCounter creates a manager whose session contexts count tokens
// with the given counter. A nil counter behaves like NewManager.
func NewManagerWithCounter(counter *contextmgr.TokenCounter) *Manager {
	return &Manager{sessions: make(map[string]*Session), counter: counter}
}

// Create initializes a new session and returns it. The greeting is already
// part of the conversation.
func (m *Manager) Create() *Session {
	s := newSession(m.counter)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	return s, nil
}

// Remove drops a session. Expiry policy belongs to the caller.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
