package graph

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/dmoura/tripgraph/tools"
	"github.com/dmoura/tripgraph/types"
)

// jsonFence matches a ```json ... ``` block in a model reply.
var jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

type supervisorDecision struct {
	Route string `json:"route"`
}

// ParseSupervisorRoute extracts the routing decision from the supervisor
// reply. The reply must contain a JSON object with a "route" field, either
// fenced or bare. A label outside the closed specialist set is a hard
// ROUTING failure, never a silent default.
func ParseSupervisorRoute(content string) (Specialist, error) {
	raw := content
	if m := jsonFence.FindStringSubmatch(content); m != nil {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)

	var decision supervisorDecision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return "", types.NewError(types.ErrRouting,
			"supervisor reply is not a routing decision: "+truncate(content, 200)).
			WithCause(err)
	}

	switch Specialist(decision.Route) {
	case SpecialistFlight:
		return SpecialistFlight, nil
	case SpecialistTourism:
		return SpecialistTourism, nil
	default:
		return "", types.NewError(types.ErrRouting,
			"unrecognized route label: "+decision.Route)
	}
}

// RouteToolsCondition inspects the last message: tool calls pending means
// tool execution, otherwise the turn is over and we await user input.
func RouteToolsCondition(s *State) Route {
	if s.LastMessage().HasToolCalls() {
		return RouteExecuteTools
	}
	return RouteAwaitInput
}

// HasEscalation reports whether any tool call in the message targets the
// hand-back pseudo-tool.
func HasEscalation(m types.Message) bool {
	for _, tc := range m.ToolCalls {
		if tc.Name == tools.CompleteOrEscalate {
			return true
		}
	}
	return false
}

// RouteReentry picks the node for fresh user input: the specialist at the
// top of the dialog stack when one is active, otherwise the supervisor.
func RouteReentry(s *State) Route {
	if top := s.StackTop(); top != "" {
		return SpecialistRoute(top)
	}
	return RouteSupervisor
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
