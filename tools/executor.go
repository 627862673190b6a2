package tools

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmoura/tripgraph/internal/metrics"
	"github.com/dmoura/tripgraph/types"
)

// Executor runs tool calls against a Registry. Failures never surface as
// Go errors: every call yields exactly one ToolResult, with the failure
// carried in its Error field so the model can see and react to it.
type Executor struct {
	registry *Registry
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs all calls concurrently and returns results in call order,
// one result per call.
func (e *Executor) Execute(ctx context.Context, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(gctx, call)
			return nil
		})
	}
	g.Wait() // workers never return errors

	return results
}

// ExecuteOne runs a single call with the tool's timeout applied.
func (e *Executor) ExecuteOne(ctx context.Context, call types.ToolCall) types.ToolResult {
	start := time.Now()
	result := types.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}
	outcome := "ok"
	defer func() {
		result.Duration = time.Since(start)
		e.observe(call.Name, outcome, result.Duration)
	}()

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = err.Error()
		outcome = "not_found"
		e.logger.Error("tool not found", zap.String("name", call.Name))
		return result
	}

	if len(call.Arguments) > 0 {
		var probe any
		if err := json.Unmarshal(call.Arguments, &probe); err != nil {
			result.Error = "invalid arguments: " + err.Error()
			outcome = "bad_args"
			e.logger.Error("invalid tool arguments",
				zap.String("name", call.Name), zap.Error(err))
			return result
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	type outFrame struct {
		res json.RawMessage
		err error
	}
	// Buffered so the worker can exit even if the timeout fires first.
	done := make(chan outFrame, 1)
	go func() {
		res, err := fn(execCtx, call.Arguments)
		done <- outFrame{res, err}
	}()

	select {
	case frame := <-done:
		if frame.err != nil {
			result.Error = frame.err.Error()
			outcome = "error"
			e.logger.Error("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(frame.err),
				zap.Duration("duration", time.Since(start)))
			return result
		}
		result.Result = frame.res
		e.logger.Debug("tool executed",
			zap.String("name", call.Name),
			zap.Duration("duration", time.Since(start)))
		return result

	case <-execCtx.Done():
		result.Error = "execution timeout after " + meta.Timeout.String()
		outcome = "timeout"
		e.logger.Error("tool execution timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", meta.Timeout))
		return result
	}
}

func (e *Executor) observe(tool, outcome string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveTool(tool, outcome, d)
	}
}
