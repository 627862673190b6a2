// Package graph implements the dialog state machine: conversation state,
// routing decisions, agent nodes and the step driver that wires them into
// a directed graph with conditional edges.
package graph

import (
	"github.com/dmoura/tripgraph/types"
)

// Route identifies the next node to execute. The set is closed; routing
// functions never produce values outside it.
type Route string

const (
	RouteSupervisor      Route = "supervisor"
	RouteFlightSearcher  Route = "flight_searcher"
	RouteTourismSearcher Route = "tourism_searcher"
	RouteExecuteTools    Route = "execute_tools"
	RouteAwaitInput      Route = "await_input"
)

// Specialist identifies a delegated agent on the dialog stack.
type Specialist string

const (
	SpecialistFlight  Specialist = "flight_searcher"
	SpecialistTourism Specialist = "tourism_searcher"
)

// SpecialistRoute maps a specialist to its node route.
func SpecialistRoute(s Specialist) Route {
	if s == SpecialistTourism {
		return RouteTourismSearcher
	}
	return RouteFlightSearcher
}

// State is the conversation record threaded through every step. It is
// owned by the driver and handed to exactly one node at a time.
type State struct {
	ThreadID string          `json:"thread_id"`
	Messages []types.Message `json:"messages"`
	Route    Route           `json:"route"`
	// DialogStack records nested specialist hand-offs; the top entry is
	// the currently active specialist.
	DialogStack []Specialist `json:"dialog_stack,omitempty"`
	Step        int          `json:"step"`
}

// NewState creates a fresh conversation awaiting its first input.
func NewState(threadID string) *State {
	return &State{ThreadID: threadID, Route: RouteAwaitInput}
}

// StackTop returns the active specialist, or "" when the stack is empty.
func (s *State) StackTop() Specialist {
	if len(s.DialogStack) == 0 {
		return ""
	}
	return s.DialogStack[len(s.DialogStack)-1]
}

// LastMessage returns the newest message, or a zero Message when empty.
func (s *State) LastMessage() types.Message {
	if len(s.Messages) == 0 {
		return types.Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// StackOp is a dialog-stack mutation carried by a Patch.
type StackOp int

const (
	StackNone StackOp = iota
	StackPush
	StackPop
)

// Patch is the partial state a node returns. Each field has its own
// reducer: Messages append, Route overwrites when set, Stack pushes or
// pops. Nothing else about the state is writable from a node.
type Patch struct {
	Messages []types.Message
	Route    Route // "" means keep current
	Stack    StackOp
	Push     Specialist // consulted only when Stack == StackPush
}

// Apply merges a patch into the state. Existing messages are never
// reordered or dropped.
func (s *State) Apply(p Patch) {
	s.Messages = append(s.Messages, p.Messages...)
	if p.Route != "" {
		s.Route = p.Route
	}
	switch p.Stack {
	case StackPush:
		s.DialogStack = append(s.DialogStack, p.Push)
	case StackPop:
		if n := len(s.DialogStack); n > 0 {
			s.DialogStack = s.DialogStack[:n-1]
		}
	}
}
