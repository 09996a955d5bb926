// Package orchestrator drives one dialogue turn through the specialist
// agents: extract, route, interview or plan, and optionally summarize. It
// owns the per-session state and the completeness-driven routing decisions.
package orchestrator

import "fmt"

// State is the routing state of a session, derived from the profile after
// every extraction pass.
type State string

const (
	// StateAwaitingTemplate means no template has been selected yet; the goal
	// is still being discovered.
	StateAwaitingTemplate State = "AWAITING_TEMPLATE"
	// StateCollecting means a template is selected but the profile is not yet
	// complete enough to plan.
	StateCollecting State = "COLLECTING"
	// StateReady means the profile meets the readiness predicate; the planner
	// produces the final answer.
	StateReady State = "READY"
)

// Route identifies which agent handles the current turn after extraction.
type Route string

const (
	// RouteMatcher classifies the goal and switches the schema, then hands off
	// to the interviewer.
	RouteMatcher Route = "matcher"
	// RouteInterviewer asks the next question.
	RouteInterviewer Route = "interviewer"
	// RoutePlanner synthesizes the final plan.
	RoutePlanner Route = "planner"
)

// validTransitions enumerates the legal state changes. A session never
// regresses: once a template is chosen it stays chosen, and once ready it
// stays ready.
var validTransitions = map[State][]State{
	StateAwaitingTemplate: {StateAwaitingTemplate, StateCollecting, StateReady},
	StateCollecting:       {StateCollecting, StateReady},
	StateReady:            {StateReady},
}

// IsValidTransition reports whether moving from one state to another is legal.
func IsValidTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Next computes the state implied by the routing predicates.
func Next(hasTemplate, ready bool) State {
	switch {
	case !hasTemplate:
		return StateAwaitingTemplate
	case ready:
		return StateReady
	default:
		return StateCollecting
	}
}

// Decide returns the route for the current predicates:
//   - no template selected: the matcher runs (then the interviewer,
//     unconditionally);
//   - template selected and profile ready: the planner runs and the turn
//     terminates;
//   - otherwise the interviewer asks the next question. A missing critical
//     field keeps readiness false regardless of the completeness ratio.
func Decide(hasTemplate, ready bool) Route {
	switch {
	case !hasTemplate:
		return RouteMatcher
	case ready:
		return RoutePlanner
	default:
		return RouteInterviewer
	}
}

// ValidateState checks that s is one of the declared states.
func ValidateState(s State) error {
	switch s {
	case StateAwaitingTemplate, StateCollecting, StateReady:
		return nil
	default:
		return fmt.Errorf("unknown orchestrator state %q", s)
	}
}
