package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowcraft/workflow-core/pkg/types"
)

// Registry manages node executor registration and lookup.
// It provides thread-safe registration and execution of node executors.
type Registry struct {
	executors map[string]NodeExecutor
	mu        sync.RWMutex
}

// NewRegistry creates a new executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]NodeExecutor),
	}
}

// Register adds an executor to the registry.
// Returns error if an executor for this kind already exists.
func (r *Registry) Register(exec NodeExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := exec.Kind()
	if _, exists := r.executors[kind]; exists {
		return fmt.Errorf("executor already registered for kind: %s", kind)
	}

	r.executors[kind] = exec
	return nil
}

// MustRegister registers an executor and panics on error.
// Useful for initialization where executor registration must succeed.
func (r *Registry) MustRegister(exec NodeExecutor) {
	if err := r.Register(exec); err != nil {
		panic(err)
	}
}

// Execute dispatches execution to the appropriate executor for the node
// kind. An unregistered kind is reported as a NodeResult validation
// failure, not a Go error, so callers can treat every NodeExecutor call
// uniformly.
func (r *Registry) Execute(ctx context.Context, ec ExecutionContext, node types.Node) types.NodeResult {
	r.mu.RLock()
	exec, exists := r.executors[node.Kind]
	r.mu.RUnlock()

	if !exists {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("no executor registered for kind: %s", node.Kind), nil)
	}

	return exec.Execute(ctx, ec, node)
}

// Validate validates a node using its registered executor.
func (r *Registry) Validate(node types.Node) error {
	r.mu.RLock()
	exec, exists := r.executors[node.Kind]
	r.mu.RUnlock()

	if !exists {
		return types.ErrUnknownNodeKind(node.Kind)
	}

	return exec.Validate(node)
}

// GetExecutor returns the executor for a given node kind, or nil if none
// is registered.
func (r *Registry) GetExecutor(kind string) NodeExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.executors[kind]
}

// ListRegisteredKinds returns all registered node kinds.
func (r *Registry) ListRegisteredKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Definitions returns the NodeDefinition for every registered kind, used
// by introspection/authoring surfaces.
func (r *Registry) Definitions() []NodeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]NodeDefinition, 0, len(r.executors))
	for _, exec := range r.executors {
		defs = append(defs, exec.Definition())
	}
	return defs
}
