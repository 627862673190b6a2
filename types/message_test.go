package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolMessage_TiedToCallID(t *testing.T) {
	t.Parallel()

	msg := NewToolMessage("call_1", "search_flights", `{"meta":{"count":2}}`)
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "call_1", msg.ToolCallID)
	assert.Equal(t, "search_flights", msg.Name)
	assert.False(t, msg.IsEmpty())
}

func TestMessage_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Message{Role: RoleAssistant}.IsEmpty())
	assert.False(t, NewAssistantMessage("hi").IsEmpty())

	withCalls := Message{Role: RoleAssistant}.WithToolCalls([]ToolCall{
		{ID: "call_1", Name: "search_flights", Arguments: json.RawMessage(`{}`)},
	})
	assert.False(t, withCalls.IsEmpty())
	assert.True(t, withCalls.HasToolCalls())
}

func TestToolResult_ToMessage(t *testing.T) {
	t.Parallel()

	ok := ToolResult{
		ToolCallID: "call_7",
		Name:       "flight_price_metrics",
		Result:     json.RawMessage(`{"quartiles":[]}`),
	}
	msg := ok.ToMessage()
	require.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "call_7", msg.ToolCallID)
	assert.Equal(t, `{"quartiles":[]}`, msg.Content)

	failed := ToolResult{ToolCallID: "call_8", Name: "search_flights", Error: "status 400"}
	assert.True(t, failed.IsError())
	assert.Equal(t, "Error: status 400", failed.ToMessage().Content)
}
