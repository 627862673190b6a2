// Package tools provides the tool registry and executor that bridge
// assistant tool-call requests to Go functions, plus the flight-domain
// bindings over the Amadeus client.
package tools

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmoura/tripgraph/types"
)

// CompleteOrEscalate is the hand-back pseudo-tool. Specialists call it to
// return control to the supervisor; it is routed by the graph and must
// never be registered for execution.
const CompleteOrEscalate = "complete_or_escalate"

// Func is the tool function signature. Arguments arrive as the raw JSON
// the model produced; the result is raw JSON handed back to the model.
type Func func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Metadata describes a registered tool.
type Metadata struct {
	Schema  types.ToolSchema
	Timeout time.Duration // per-call execution timeout, default 30s
}

// Registry holds the executable tools. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Func
	metadata map[string]Metadata
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]Func),
		metadata: make(map[string]Metadata),
		logger:   logger,
	}
}

// Register adds a tool. The hand-back pseudo-tool name is rejected, as
// are duplicates and schema/name mismatches.
func (r *Registry) Register(name string, fn Func, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == CompleteOrEscalate {
		return types.NewError(types.ErrInvalidRequest,
			"\""+CompleteOrEscalate+"\" is reserved for dialog hand-back")
	}
	if _, exists := r.tools[name]; exists {
		return types.NewError(types.ErrInvalidRequest, "tool already registered: "+name)
	}
	if meta.Schema.Name == "" {
		meta.Schema.Name = name
	}
	if meta.Schema.Name != name {
		return types.NewError(types.ErrInvalidRequest,
			"tool name mismatch: schema says "+meta.Schema.Name+", registered as "+name)
	}
	if meta.Timeout == 0 {
		meta.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = meta
	r.logger.Info("tool registered",
		zap.String("name", name),
		zap.Duration("timeout", meta.Timeout))
	return nil
}

// Get returns the tool function and metadata, or TOOL_NOT_FOUND.
func (r *Registry) Get(name string) (Func, Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, Metadata{}, types.NewError(types.ErrToolNotFound, "tool not found: "+name)
	}
	return fn, r.metadata[name], nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Schemas returns the schemas of all registered tools, for binding to a
// chat request. Order is not stable.
func (r *Registry) Schemas() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ToolSchema, 0, len(r.metadata))
	for _, meta := range r.metadata {
		out = append(out, meta.Schema)
	}
	return out
}
