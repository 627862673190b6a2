package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmoura/tripgraph/internal/metrics"
	"github.com/dmoura/tripgraph/llm"
	"github.com/dmoura/tripgraph/tools"
	"github.com/dmoura/tripgraph/types"
)

// maxEmptyRetries bounds the retry loop around degenerate completions
// that carry neither content nor tool calls.
const maxEmptyRetries = 3

// Nodes holds the dependencies shared by all agent nodes. Everything is
// injected; there is no package-level client.
type Nodes struct {
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	trimmer  *llm.HistoryTrimmer
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NodesOption configures a Nodes set.
type NodesOption func(*Nodes)

// WithTrimmer attaches a history trimmer applied before every completion.
func WithTrimmer(t *llm.HistoryTrimmer) NodesOption {
	return func(n *Nodes) { n.trimmer = t }
}

// WithNodeMetrics attaches a metrics collector.
func WithNodeMetrics(m *metrics.Collector) NodesOption {
	return func(n *Nodes) { n.metrics = m }
}

// NewNodes creates the agent node set.
func NewNodes(provider llm.Provider, registry *tools.Registry, executor *tools.Executor, logger *zap.Logger, opts ...NodesOption) *Nodes {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Nodes{
		provider: provider,
		registry: registry,
		executor: executor,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Supervisor classifies the user's request and delegates to a specialist.
// The delegation is recorded as an assistant tool call so the hand-off
// tool result appended by the entry step answers a real call id.
func (n *Nodes) Supervisor(ctx context.Context, st *State) (Patch, error) {
	reply, err := n.complete(ctx, &llm.ChatRequest{
		Messages: n.withPrompt(supervisorPrompt, st.Messages),
	})
	if err != nil {
		return Patch{}, err
	}

	specialist, err := ParseSupervisorRoute(reply.Content)
	if err != nil {
		return Patch{}, err
	}
	n.logger.Info("supervisor routed",
		zap.String("thread_id", st.ThreadID),
		zap.String("specialist", string(specialist)))

	delegation := types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{{
		ID:        uuid.New().String(),
		Name:      string(specialist),
		Arguments: []byte("{}"),
	}})
	return Patch{
		Messages: []types.Message{delegation},
		Route:    SpecialistRoute(specialist),
	}, nil
}

// EnterSpecialist synthesizes the hand-off tool result, tagged with the
// delegation call id, and pushes the specialist onto the dialog stack.
func (n *Nodes) EnterSpecialist(ctx context.Context, st *State, specialist Specialist) (Patch, error) {
	last := st.LastMessage()
	if !last.HasToolCalls() {
		return Patch{}, types.NewError(types.ErrRouting,
			"specialist entry without a delegation call")
	}
	call := last.ToolCalls[len(last.ToolCalls)-1]

	handoff := types.NewToolMessage(call.ID, call.Name,
		fmt.Sprintf(handoffContent, displayName(specialist)))
	return Patch{
		Messages: []types.Message{handoff},
		Route:    SpecialistRoute(specialist),
		Stack:    StackPush,
		Push:     specialist,
	}, nil
}

// FlightSearcher runs the flight specialist: full tool set plus the
// hand-back pseudo-tool, parallel calls permitted.
func (n *Nodes) FlightSearcher(ctx context.Context, st *State) (Patch, error) {
	reply, err := n.complete(ctx, &llm.ChatRequest{
		Messages:          n.withPrompt(flightPrompt, st.Messages),
		Tools:             append(n.registry.Schemas(), escalateTool()),
		ParallelToolCalls: true,
	})
	if err != nil {
		return Patch{}, err
	}
	return Patch{Messages: []types.Message{reply}}, nil
}

// TourismSearcher runs the tourism specialist: no external tools, only
// the hand-back pseudo-tool.
func (n *Nodes) TourismSearcher(ctx context.Context, st *State) (Patch, error) {
	reply, err := n.complete(ctx, &llm.ChatRequest{
		Messages: n.withPrompt(tourismPrompt, st.Messages),
		Tools:    []types.ToolSchema{escalateTool()},
	})
	if err != nil {
		return Patch{}, err
	}
	return Patch{Messages: []types.Message{reply}}, nil
}

// ExecuteTools runs every tool call of the last assistant message and
// appends one result message per call, in call order.
func (n *Nodes) ExecuteTools(ctx context.Context, st *State) (Patch, error) {
	last := st.LastMessage()
	if !last.HasToolCalls() {
		return Patch{}, types.NewError(types.ErrRouting,
			"tool execution requested without pending tool calls")
	}

	results := n.executor.Execute(ctx, last.ToolCalls)
	msgs := make([]types.Message, len(results))
	for i, res := range results {
		msgs[i] = res.ToMessage()
	}
	return Patch{
		Messages: msgs,
		Route:    SpecialistRoute(st.StackTop()),
	}, nil
}

// Leave hands control back to the supervisor: it answers the escalation
// call with the resume tool result and pops the dialog stack.
func (n *Nodes) Leave(ctx context.Context, st *State) (Patch, error) {
	last := st.LastMessage()
	var callID string
	for _, tc := range last.ToolCalls {
		if tc.Name == tools.CompleteOrEscalate {
			callID = tc.ID
			break
		}
	}
	if callID == "" {
		return Patch{}, types.NewError(types.ErrRouting,
			"leave requested without an escalation call")
	}

	n.logger.Info("specialist handed control back",
		zap.String("thread_id", st.ThreadID),
		zap.String("specialist", string(st.StackTop())))
	resume := types.NewToolMessage(callID, tools.CompleteOrEscalate, resumeContent)
	return Patch{
		Messages: []types.Message{resume},
		Route:    RouteSupervisor,
		Stack:    StackPop,
	}, nil
}

// complete calls the provider, retrying while the reply carries neither
// content nor tool calls, bounded by maxEmptyRetries.
func (n *Nodes) complete(ctx context.Context, req *llm.ChatRequest) (types.Message, error) {
	for attempt := 0; attempt < maxEmptyRetries; attempt++ {
		resp, err := n.provider.Completion(ctx, req)
		if err != nil {
			n.observeLLM("error")
			return types.Message{}, err
		}
		if !resp.Message.IsEmpty() {
			n.observeLLM("ok")
			return resp.Message, nil
		}

		n.observeLLM("empty")
		if n.metrics != nil {
			n.metrics.ObserveEmptyRetry()
		}
		n.logger.Warn("empty completion, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("provider", n.provider.Name()))
	}
	return types.Message{}, types.NewError(types.ErrEmptyResponse,
		fmt.Sprintf("no usable completion after %d attempts", maxEmptyRetries))
}

func (n *Nodes) withPrompt(prompt string, history []types.Message) []types.Message {
	if n.trimmer != nil {
		history = n.trimmer.Trim(history)
	}
	out := make([]types.Message, 0, len(history)+1)
	out = append(out, types.NewSystemMessage(prompt))
	out = append(out, history...)
	return out
}

func (n *Nodes) observeLLM(outcome string) {
	if n.metrics != nil {
		n.metrics.ObserveLLMRequest(outcome)
	}
}

func displayName(s Specialist) string {
	if s == SpecialistTourism {
		return "tourism specialist"
	}
	return "flight search specialist"
}
