package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmoura/tripgraph/tools"
	"github.com/dmoura/tripgraph/types"
)

func TestParseSupervisorRoute(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    Specialist
		wantErr bool
	}{
		{"bare json", `{"route": "flight_searcher"}`, SpecialistFlight, false},
		{"fenced json", "Routing now.\n```json\n{\"route\": \"tourism_searcher\"}\n```", SpecialistTourism, false},
		{"fenced with noise around", "thinking...\n```json\n{\"route\":\"flight_searcher\"}\n```\ndone", SpecialistFlight, false},
		{"unknown label", `{"route": "hotel_booker"}`, "", true},
		{"empty label", `{"route": ""}`, "", true},
		{"prose reply", `I think you want flights to GRU.`, "", true},
		{"malformed json", "```json\n{route: flight}\n```", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSupervisorRoute(tc.content)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrRouting, types.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRouteToolsCondition(t *testing.T) {
	st := NewState("t1")
	st.Apply(Patch{Messages: []types.Message{
		types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{
			{ID: "c1", Name: "search_flights", Arguments: json.RawMessage(`{}`)},
		}),
	}})
	assert.Equal(t, RouteExecuteTools, RouteToolsCondition(st))

	st.Apply(Patch{Messages: []types.Message{
		types.NewAssistantMessage("here are your flights"),
	}})
	assert.Equal(t, RouteAwaitInput, RouteToolsCondition(st))
}

func TestHasEscalation(t *testing.T) {
	plain := types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{
		{ID: "c1", Name: "search_flights", Arguments: json.RawMessage(`{}`)},
	})
	assert.False(t, HasEscalation(plain))

	mixed := types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{
		{ID: "c1", Name: "search_flights", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: tools.CompleteOrEscalate, Arguments: json.RawMessage(`{"cancel":true}`)},
	})
	assert.True(t, HasEscalation(mixed))

	assert.False(t, HasEscalation(types.NewAssistantMessage("text only")))
}

func TestRouteReentry(t *testing.T) {
	st := NewState("t1")
	assert.Equal(t, RouteSupervisor, RouteReentry(st))

	st.Apply(Patch{Stack: StackPush, Push: SpecialistFlight})
	assert.Equal(t, RouteFlightSearcher, RouteReentry(st))

	st.Apply(Patch{Stack: StackPush, Push: SpecialistTourism})
	assert.Equal(t, RouteTourismSearcher, RouteReentry(st))

	st.Apply(Patch{Stack: StackPop})
	st.Apply(Patch{Stack: StackPop})
	assert.Equal(t, RouteSupervisor, RouteReentry(st))
}
