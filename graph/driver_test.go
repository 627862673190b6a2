package graph

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmoura/tripgraph/checkpoint"
	"github.com/dmoura/tripgraph/llm"
	"github.com/dmoura/tripgraph/tools"
	"github.com/dmoura/tripgraph/types"
)

// scriptedProvider replays a fixed sequence of assistant messages and
// records every request it sees.
type scriptedProvider struct {
	replies  []types.Message
	requests []*llm.ChatRequest
	calls    int
}

func (p *scriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.calls >= len(p.replies) {
		return nil, types.NewError(types.ErrAPI, "script exhausted")
	}
	msg := p.replies[p.calls]
	p.calls++
	return &llm.ChatResponse{Model: "scripted", Message: msg}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func assistantWithCall(name, id, args string) types.Message {
	return types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{
		{ID: id, Name: name, Arguments: json.RawMessage(args)},
	})
}

func fakeOffersTool(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"meta":{"count":1},"data":[{"id":"1",
		"price":{"currency":"BRL","total":"512.30"}}]}`), nil
}

func newTestDriver(t *testing.T, provider llm.Provider) (*Driver, *checkpoint.MemoryStore) {
	t.Helper()
	reg := tools.NewRegistry(zap.NewNop())
	require.NoError(t, reg.Register("search_flights", fakeOffersTool, tools.Metadata{}))
	exec := tools.NewExecutor(reg, zap.NewNop())
	nodes := NewNodes(provider, reg, exec, zap.NewNop())
	store := checkpoint.NewMemoryStore()
	return NewDriver(nodes, store, zap.NewNop()), store
}

func TestHandleUserInput_FlightSearchScenario(t *testing.T) {
	provider := &scriptedProvider{replies: []types.Message{
		types.NewAssistantMessage(`{"route": "flight_searcher"}`),
		assistantWithCall("search_flights", "call_1",
			`{"origin":"VIX","destination":"GRU","departure_date":"2024-08-05"}`),
		types.NewAssistantMessage("Found LA 3311 departing 08:35, total BRL 512.30."),
	}}
	d, store := newTestDriver(t, provider)

	reply, err := d.HandleUserInput(context.Background(),
		"t1", "search flights VIX to GRU on 2024-08-05")
	require.NoError(t, err)
	assert.Contains(t, reply, "LA 3311")

	st, err := d.Load(context.Background(), "t1")
	require.NoError(t, err)

	// Specialist remains active, paused for the next input.
	assert.Equal(t, SpecialistFlight, st.StackTop())
	assert.Equal(t, RouteAwaitInput, st.Route)

	// user, delegation, hand-off, tool call, tool result, answer.
	require.Len(t, st.Messages, 6)
	assert.Equal(t, types.RoleUser, st.Messages[0].Role)
	assert.True(t, st.Messages[1].HasToolCalls())
	assert.Equal(t, types.RoleTool, st.Messages[2].Role)
	// The hand-off answers the delegation call id.
	assert.Equal(t, st.Messages[1].ToolCalls[0].ID, st.Messages[2].ToolCallID)
	assert.Equal(t, "call_1", st.Messages[4].ToolCallID)
	assert.Contains(t, st.Messages[4].Content, "512.30")

	// A checkpoint exists for every executed step.
	cps, err := store.List(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.Len(t, cps, st.Step)

	// The specialist turn was bound to tools plus the hand-back tool.
	specialistReq := provider.requests[1]
	names := map[string]bool{}
	for _, s := range specialistReq.Tools {
		names[s.Name] = true
	}
	assert.True(t, names["search_flights"])
	assert.True(t, names[tools.CompleteOrEscalate])
	assert.True(t, specialistReq.ParallelToolCalls)
}

func TestHandleUserInput_ReentrySkipsSupervisor(t *testing.T) {
	provider := &scriptedProvider{replies: []types.Message{
		types.NewAssistantMessage(`{"route": "flight_searcher"}`),
		types.NewAssistantMessage("Where are you flying from?"),
		types.NewAssistantMessage("And on what date?"),
	}}
	d, _ := newTestDriver(t, provider)
	ctx := context.Background()

	_, err := d.HandleUserInput(ctx, "t2", "I need a flight")
	require.NoError(t, err)

	reply, err := d.HandleUserInput(ctx, "t2", "from VIX")
	require.NoError(t, err)
	assert.Contains(t, reply, "date")

	// The second turn went straight to the specialist: its first request
	// carries the flight prompt, not the routing prompt.
	secondTurnReq := provider.requests[2]
	require.NotEmpty(t, secondTurnReq.Messages)
	assert.Equal(t, types.RoleSystem, secondTurnReq.Messages[0].Role)
	assert.Contains(t, secondTurnReq.Messages[0].Content, "flight search specialist")
}

func TestHandleUserInput_EscalationReturnsToSupervisor(t *testing.T) {
	provider := &scriptedProvider{replies: []types.Message{
		types.NewAssistantMessage(`{"route": "flight_searcher"}`),
		types.NewAssistantMessage("Anything else about flights?"),
		assistantWithCall(tools.CompleteOrEscalate, "call_esc", `{"cancel":false}`),
		types.NewAssistantMessage(`{"route": "tourism_searcher"}`),
		types.NewAssistantMessage("Sao Paulo has a great food scene around Pinheiros."),
	}}
	d, _ := newTestDriver(t, provider)
	ctx := context.Background()

	_, err := d.HandleUserInput(ctx, "t3", "I need a flight")
	require.NoError(t, err)

	reply, err := d.HandleUserInput(ctx, "t3", "actually, what should I eat in Sao Paulo?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Pinheiros")

	st, err := d.Load(ctx, "t3")
	require.NoError(t, err)
	// Flight specialist popped, tourism specialist now active.
	assert.Equal(t, SpecialistTourism, st.StackTop())
	assert.Len(t, st.DialogStack, 1)

	// The escalation call got its resume tool result.
	var sawResume bool
	for _, m := range st.Messages {
		if m.ToolCallID == "call_esc" {
			sawResume = true
			assert.Equal(t, types.RoleTool, m.Role)
		}
	}
	assert.True(t, sawResume)
}

func TestHandleUserInput_RoutingErrorSurfaces(t *testing.T) {
	provider := &scriptedProvider{replies: []types.Message{
		types.NewAssistantMessage("you should take a bus"),
	}}
	d, _ := newTestDriver(t, provider)

	_, err := d.HandleUserInput(context.Background(), "t4", "hi")
	require.Error(t, err)
	assert.Equal(t, types.ErrRouting, types.GetErrorCode(err))
}

func TestComplete_EmptyReplyRetriedThenFails(t *testing.T) {
	provider := &scriptedProvider{replies: []types.Message{
		{Role: types.RoleAssistant}, // empty
		{Role: types.RoleAssistant}, // empty
		{Role: types.RoleAssistant}, // empty
	}}
	d, _ := newTestDriver(t, provider)

	_, err := d.HandleUserInput(context.Background(), "t5", "hi")
	require.Error(t, err)
	assert.Equal(t, types.ErrEmptyResponse, types.GetErrorCode(err))
	assert.Equal(t, 3, provider.calls)
}

func TestComplete_EmptyReplyRecovered(t *testing.T) {
	provider := &scriptedProvider{replies: []types.Message{
		{Role: types.RoleAssistant}, // empty, retried
		types.NewAssistantMessage(`{"route": "tourism_searcher"}`),
		types.NewAssistantMessage("Try the coastal towns of Espirito Santo."),
	}}
	d, _ := newTestDriver(t, provider)

	reply, err := d.HandleUserInput(context.Background(), "t6", "where should I go?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Espirito Santo")
}

func TestHandleUserInput_ResumesAcrossDriverInstances(t *testing.T) {
	provider := &scriptedProvider{replies: []types.Message{
		types.NewAssistantMessage(`{"route": "flight_searcher"}`),
		types.NewAssistantMessage("Where to?"),
	}}
	d1, store := newTestDriver(t, provider)
	ctx := context.Background()

	_, err := d1.HandleUserInput(ctx, "t7", "flight please")
	require.NoError(t, err)

	// A fresh driver over the same store picks the thread up where it
	// paused.
	provider2 := &scriptedProvider{replies: []types.Message{
		types.NewAssistantMessage("Got it, GRU. What date?"),
	}}
	reg := tools.NewRegistry(zap.NewNop())
	exec := tools.NewExecutor(reg, zap.NewNop())
	d2 := NewDriver(NewNodes(provider2, reg, exec, zap.NewNop()), store, zap.NewNop())

	reply, err := d2.HandleUserInput(ctx, "t7", "to GRU")
	require.NoError(t, err)
	assert.Contains(t, reply, "date")

	st, err := d2.Load(ctx, "t7")
	require.NoError(t, err)
	// History from the first driver instance is intact.
	assert.True(t, strings.Contains(st.Messages[0].Content, "flight please"))
}
