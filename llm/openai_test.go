package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmoura/tripgraph/types"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	}, zap.NewNop())
}

func TestCompletion_TextReply(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Nil(t, req.ParallelToolCalls) // no tools, no flag

		w.Write([]byte(`{"id":"cmpl-1","model":"gpt-4o-mini","choices":[
			{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Ola!"}}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	})

	resp, err := p.Completion(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("oi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ola!", resp.Message.Content)
	assert.Equal(t, types.RoleAssistant, resp.Message.Role)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.False(t, resp.Message.HasToolCalls())
}

func TestCompletion_ToolCallsAndParallelFlag(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "search_flights", req.Tools[0].Function.Name)
		require.NotNil(t, req.ParallelToolCalls)
		assert.True(t, *req.ParallelToolCalls)

		w.Write([]byte(`{"id":"cmpl-2","model":"gpt-4o-mini","choices":[
			{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"search_flights",
				"arguments":"{\"origin\":\"VIX\",\"destination\":\"GRU\"}"}}]}}]}`))
	})

	resp, err := p.Completion(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("voos VIX GRU")},
		Tools: []types.ToolSchema{{
			Name:       "search_flights",
			Parameters: json.RawMessage(`{"type":"object"}`),
		}},
		ParallelToolCalls: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.Message.ToolCalls[0].ID)
	assert.JSONEq(t, `{"origin":"VIX","destination":"GRU"}`,
		string(resp.Message.ToolCalls[0].Arguments))
}

func TestCompletion_ToolResultRoundTrip(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// The tool-result message must carry its originating call id.
		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, "tool", last.Role)
		assert.Equal(t, "call_1", last.ToolCallID)

		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[
			{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Achei 2 voos."}}]}`))
	})

	_, err := p.Completion(context.Background(), &ChatRequest{
		Messages: []types.Message{
			types.NewUserMessage("voos VIX GRU"),
			types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{
				{ID: "call_1", Name: "search_flights", Arguments: json.RawMessage(`{}`)},
			}),
			types.NewToolMessage("call_1", "search_flights", `{"meta":{"count":2}}`),
		},
	})
	require.NoError(t, err)
}

func TestCompletion_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrAuth, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusBadGateway, types.ErrUpstreamError, true},
		{http.StatusBadRequest, types.ErrAPI, false},
	}
	for _, tc := range cases {
		p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
		})
		_, err := p.Completion(context.Background(), &ChatRequest{
			Messages: []types.Message{types.NewUserMessage("oi")},
		})
		require.Error(t, err)
		assert.Equal(t, tc.wantCode, types.GetErrorCode(err), "status %d", tc.status)
		assert.Equal(t, tc.retryable, types.IsRetryable(err), "status %d", tc.status)
	}
}

func TestCompletion_EmptyRequestRejected(t *testing.T) {
	t.Parallel()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: "http://unused"}, zap.NewNop())
	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestCompletion_NoChoicesIsSchemaError(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[]}`))
	})
	_, err := p.Completion(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("oi")},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrSchema, types.GetErrorCode(err))
}
