package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"nestwise/pkg/agents"
	"nestwise/pkg/contextmgr"
	"nestwise/pkg/llm"
	"nestwise/pkg/logx"
	"nestwise/pkg/profile"
	"nestwise/pkg/state"
)

// TurnResult is what one orchestrator turn returns to the caller.
type TurnResult struct {
	// Response is the user-visible assistant text.
	Response string

	// Profile maps every tracked field to its extracted value, or false when
	// the value is not yet known.
	Profile map[string]any

	// Title is the conversation title, empty until the goal is known.
	Title string

	// PlanJSON is the raw structured plan for the downstream formatter, set
	// only when PlannerFinal is true.
	PlanJSON string

	// PlannerFinal tags turns whose answer is the planner's final output, so
	// callers re-render the plan instead of comparing response text.
	PlannerFinal bool
}

// Orchestrator routes each turn through extraction, the completeness-driven
// router, and one of the matcher, interviewer or planner, with summarization
// when the conversation grows long. Agent invocations within a turn are
// strictly sequential.
type Orchestrator struct {
	interviewer *agents.Interviewer
	extractor   *agents.Extractor
	matcher     *agents.Matcher
	planner     *agents.Planner
	summarizer  *agents.Summarizer

	sessions  *Manager
	snapshots *state.Store // optional

	completenessThreshold float64
	summarizeThreshold    int
	summarizeTokenBudget  int

	logger *logx.Logger
}

// New wires the orchestrator. snapshots may be nil to disable persistence;
// a zero summarizeTokenBudget disables the token-based compaction trigger.
func New(interviewer *agents.Interviewer, extractor *agents.Extractor, matcher *agents.Matcher,
	planner *agents.Planner, summarizer *agents.Summarizer, sessions *Manager,
	snapshots *state.Store, completenessThreshold float64, summarizeThreshold, summarizeTokenBudget int) *Orchestrator {
	return &Orchestrator{
		interviewer:           interviewer,
		extractor:             extractor,
		matcher:               matcher,
		planner:               planner,
		summarizer:            summarizer,
		sessions:              sessions,
		snapshots:             snapshots,
		completenessThreshold: completenessThreshold,
		summarizeThreshold:    summarizeThreshold,
		summarizeTokenBudget:  summarizeTokenBudget,
		logger:                logx.NewLogger("orchestrator"),
	}
}

// CreateSession starts a new session and returns its id and greeting.
func (o *Orchestrator) CreateSession() (string, string) {
	s := o.sessions.Create()
	o.logger.Info("session %s created", s.ID)
	return s.ID, Greeting
}

// Advance runs exactly one turn for the session. On any infrastructure
// failure the session is left untouched and the error is returned; partial
// state is never committed. The session lock guarantees no two turns of the
// same session interleave.
func (o *Orchestrator) Advance(ctx context.Context, sessionID, userMessage string) (TurnResult, error) {
	session, err := o.sessions.Get(sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	// The planner already produced the final answer: re-display it verbatim
	// for the downstream formatter instead of re-planning.
	if session.PlannerFinal {
		return TurnResult{
			Response:     session.PlanJSON,
			Profile:      session.ProfileSnapshot(),
			Title:        session.Title,
			PlanJSON:     session.PlanJSON,
			PlannerFinal: true,
		}, nil
	}

	// All mutation happens on a working copy, committed only on success.
	work := session.clone()

	result, err := o.runTurn(ctx, work, userMessage)
	if err != nil {
		o.logger.Error("turn failed for session %s, state preserved: %v", sessionID, err)
		return TurnResult{}, err
	}

	session.commit(work)
	o.snapshot(session)
	return result, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, work *Session, userMessage string) (TurnResult, error) {
	lastAssistant := ""
	if msg, ok := work.Interviewer.LastAssistantMessage(); ok {
		lastAssistant = msg.Content
	}

	if _, err := o.extractor.Extract(ctx, work.Completion, work.Values, userMessage, lastAssistant); err != nil {
		return TurnResult{}, err
	}

	// Title generation runs exactly once, after the goal is first populated.
	if goal, known := work.Values[profile.GoalField]; known && work.Title == "" {
		title, err := o.extractor.GenerateTitle(ctx, goal)
		if err != nil {
			return TurnResult{}, err
		}
		work.Title = title
	}

	readiness := profile.Evaluate(work.Completion, o.completenessThreshold)
	hasTemplate := work.TemplateName != ""
	route := Decide(hasTemplate, readiness.Ready)
	o.logger.Debug("session %s: ratio=%.2f critical=%t route=%s",
		work.ID, readiness.Ratio, readiness.NeedsCritical, route)

	var result TurnResult
	switch route {
	case RouteMatcher:
		if err := o.matchTemplate(ctx, work); err != nil {
			return TurnResult{}, err
		}
		// The matcher never answers the user; the interviewer always follows.
		response, err := o.interviewer.Ask(ctx, work.Interviewer, work.Completion, userMessage)
		if err != nil {
			return TurnResult{}, err
		}
		result.Response = response

	case RoutePlanner:
		_, raw, err := o.planner.Plan(ctx, work.Values)
		if err != nil {
			return TurnResult{}, err
		}
		work.Interviewer.AddMessage(string(llm.RoleUser), userMessage)
		work.Interviewer.AddMessage(string(llm.RoleAssistant), raw)
		work.PlanJSON = raw
		work.PlannerFinal = true
		result.Response = raw
		result.PlanJSON = raw
		result.PlannerFinal = true

	case RouteInterviewer:
		response, err := o.interviewer.Ask(ctx, work.Interviewer, work.Completion, userMessage)
		if err != nil {
			return TurnResult{}, err
		}
		result.Response = response
	}

	// An interviewer reply that grew the context past either boundary triggers
	// compaction before the turn yields. Both boundaries are inclusive.
	if route != RoutePlanner && o.shouldCompact(work.Interviewer) {
		o.logger.Debug("session %s: compacting at %d messages, %d tokens",
			work.ID, work.Interviewer.GetMessageCount(), work.Interviewer.CountTokens())
		summary, err := o.summarizer.Compact(ctx, work.Summary, work.Interviewer)
		if err != nil {
			return TurnResult{}, err
		}
		work.Summary = summary
	}

	next := Next(work.TemplateName != "", profile.Evaluate(work.Completion, o.completenessThreshold).Ready)
	if !IsValidTransition(work.State, next) {
		return TurnResult{}, fmt.Errorf("illegal state transition %s -> %s for session %s", work.State, next, work.ID)
	}
	work.State = next

	result.Profile = work.ProfileSnapshot()
	result.Title = work.Title
	return result, nil
}

// shouldCompact reports whether the interviewer context crossed the message
// count threshold or, when a token budget is configured, the token boundary.
func (o *Orchestrator) shouldCompact(cm *contextmgr.ContextManager) bool {
	if cm.GetMessageCount() >= o.summarizeThreshold {
		return true
	}
	return o.summarizeTokenBudget > 0 && cm.CountTokens() >= o.summarizeTokenBudget
}

// matchTemplate classifies the goal and switches the tracked schema,
// reconciling fields already answered during discovery.
func (o *Orchestrator) matchTemplate(ctx context.Context, work *Session) error {
	goal := work.Values[profile.GoalField]
	if goal == "" {
		// Goal not stated yet; stay in discovery and let the interviewer ask.
		return nil
	}

	tmpl, err := o.matcher.Match(ctx, goal)
	if err != nil {
		return err
	}
	work.Completion = profile.SwitchTemplate(tmpl, work.Values)
	work.TemplateName = tmpl.Name
	o.logger.Info("session %s: goal classified as %q, tracking %d fields",
		work.ID, tmpl.Name, work.Completion.Len())
	return nil
}

// snapshot persists the committed session state. Snapshot failures are logged
// and never fail the turn.
func (o *Orchestrator) snapshot(session *Session) {
	if o.snapshots == nil {
		return
	}
	snap := &state.Snapshot{
		SessionID:    session.ID,
		State:        string(session.State),
		TemplateName: session.TemplateName,
		Title:        session.Title,
		Summary:      session.Summary,
		Values:       session.Values.Clone(),
	}
	if session.PlanJSON != "" {
		snap.PlanJSON = json.RawMessage(session.PlanJSON)
	}
	if err := o.snapshots.Save(snap); err != nil {
		o.logger.Warn("snapshot for session %s failed: %v", session.ID, err)
	}
}
