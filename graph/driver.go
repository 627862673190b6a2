package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmoura/tripgraph/checkpoint"
	"github.com/dmoura/tripgraph/internal/metrics"
	"github.com/dmoura/tripgraph/types"
)

// maxStepsPerTurn bounds one turn's step loop so a routing cycle cannot
// spin forever.
const maxStepsPerTurn = 32

// Driver owns the conversation state for the duration of a turn: it
// selects the active node by route, merges the returned patch, persists a
// checkpoint after every step and pauses when user input is needed.
type Driver struct {
	nodes   *Nodes
	store   checkpoint.Store
	backend string
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDriverMetrics attaches a metrics collector.
func WithDriverMetrics(m *metrics.Collector) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// WithCheckpointBackend names the backend for checkpoint metrics labels.
func WithCheckpointBackend(name string) DriverOption {
	return func(d *Driver) { d.backend = name }
}

// NewDriver creates a driver over the node set and checkpoint store.
func NewDriver(nodes *Nodes, store checkpoint.Store, logger *zap.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		nodes:   nodes,
		store:   store,
		backend: "memory",
		logger:  logger,
		tracer:  otel.Tracer("tripgraph/graph"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load restores the latest state of a thread, or starts a fresh one.
func (d *Driver) Load(ctx context.Context, threadID string) (*State, error) {
	cp, err := d.store.LoadLatest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return NewState(threadID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}

	var st State
	if err := json.Unmarshal(cp.State, &st); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", cp.ID, err)
	}
	return &st, nil
}

// HandleUserInput appends one user message and drives the graph until it
// pauses for the next input, returning the assistant's reply text.
func (d *Driver) HandleUserInput(ctx context.Context, threadID, text string) (string, error) {
	st, err := d.Load(ctx, threadID)
	if err != nil {
		return "", err
	}

	st.Messages = append(st.Messages, types.NewUserMessage(text))
	// An active specialist resumes directly; no reclassification.
	st.Route = RouteReentry(st)

	for steps := 0; st.Route != RouteAwaitInput; steps++ {
		if steps >= maxStepsPerTurn {
			return "", types.NewError(types.ErrRouting,
				fmt.Sprintf("turn exceeded %d steps without yielding", maxStepsPerTurn))
		}
		if err := d.step(ctx, st); err != nil {
			return "", err
		}
	}
	return lastAssistantText(st), nil
}

// step executes one node and persists the result.
func (d *Driver) step(ctx context.Context, st *State) error {
	node := d.selectNode(st)
	ctx, span := d.tracer.Start(ctx, "graph.step",
		trace.WithAttributes(
			attribute.String("node", node.name),
			attribute.String("thread_id", st.ThreadID),
			attribute.Int("step", st.Step),
		))
	defer span.End()

	start := time.Now()
	patch, err := node.run(ctx, st)
	if err != nil {
		span.RecordError(err)
		d.logger.Error("node failed",
			zap.String("node", node.name),
			zap.String("thread_id", st.ThreadID),
			zap.Error(err))
		return err
	}

	st.Apply(patch)
	// Specialist replies choose their own continuation.
	if node.postRoute {
		st.Route = RouteToolsCondition(st)
	}
	st.Step++

	if d.metrics != nil {
		d.metrics.ObserveStep(node.name, time.Since(start))
	}
	d.logger.Debug("step executed",
		zap.String("node", node.name),
		zap.String("thread_id", st.ThreadID),
		zap.Int("step", st.Step),
		zap.String("next_route", string(st.Route)))

	return d.save(ctx, st)
}

// boundNode pairs a node function with its dispatch behavior.
type boundNode struct {
	name string
	run  func(context.Context, *State) (Patch, error)
	// postRoute: recompute the route from the tools condition after the
	// node runs (specialist reply nodes only).
	postRoute bool
}

// selectNode evaluates the conditional edges for the current route.
func (d *Driver) selectNode(st *State) boundNode {
	switch st.Route {
	case RouteSupervisor:
		return boundNode{name: "supervisor", run: d.nodes.Supervisor}

	case RouteFlightSearcher:
		if st.StackTop() != SpecialistFlight {
			return boundNode{name: "enter_flight_searcher", run: func(ctx context.Context, st *State) (Patch, error) {
				return d.nodes.EnterSpecialist(ctx, st, SpecialistFlight)
			}}
		}
		return boundNode{name: "flight_searcher", run: d.nodes.FlightSearcher, postRoute: true}

	case RouteTourismSearcher:
		if st.StackTop() != SpecialistTourism {
			return boundNode{name: "enter_tourism_searcher", run: func(ctx context.Context, st *State) (Patch, error) {
				return d.nodes.EnterSpecialist(ctx, st, SpecialistTourism)
			}}
		}
		return boundNode{name: "tourism_searcher", run: d.nodes.TourismSearcher, postRoute: true}

	case RouteExecuteTools:
		if HasEscalation(st.LastMessage()) {
			return boundNode{name: "leave_specialist", run: d.nodes.Leave}
		}
		return boundNode{name: "execute_tools", run: d.nodes.ExecuteTools}

	default:
		return boundNode{name: "unknown", run: func(context.Context, *State) (Patch, error) {
			return Patch{}, types.NewError(types.ErrRouting,
				"no node for route: "+string(st.Route))
		}}
	}
}

func (d *Driver) save(ctx context.Context, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	err = d.store.Save(ctx, &checkpoint.Checkpoint{
		ThreadID: st.ThreadID,
		Step:     st.Step,
		State:    raw,
	})
	if d.metrics != nil {
		d.metrics.ObserveCheckpointSave(d.backend, err)
	}
	if err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

func lastAssistantText(st *State) string {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		m := st.Messages[i]
		if m.Role == types.RoleAssistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}
