// Package executor provides the Strategy Pattern implementation for node
// execution (C2 Node Runtime): a NodeExecutor per node kind, registered
// into a Registry the scheduler dispatches through. This replaces a large
// switch statement with pluggable strategies, the way the teacher's
// calculator-node runtime does it — generalized here to the workflow
// automation domain's parameter-map node model (§4.2).
package executor

import (
	"context"
	"time"

	"github.com/flowcraft/workflow-core/pkg/types"
)

// ExecutionContext provides a node executor access to workflow state and
// shared services without creating a dependency on the scheduler that
// drives it.
type ExecutionContext interface {
	// NodeResult returns a previously executed node's result, if any.
	NodeResult(nodeID string) (types.NodeResult, bool)
	// AllNodeResults returns every node result produced so far, keyed by
	// node ID — the "node" namespace exposed to expressions (§4.3).
	AllNodeResults() map[string]types.NodeResult

	// Inputs returns the results of nodeID's direct predecessors in graph
	// order, live or pruned — used by Merge to combine inbound branches
	// without depending on the scheduler's graph type directly.
	Inputs(nodeID string) []types.NodeResult

	// Variable retrieval/assignment against workflow-scoped variables
	// (§3 WorkflowDefinition.Variables, mutable during execution via Set).
	// GetVariable("trigger") returns the execution's trigger payload when
	// no workflow variable of that name exists.
	GetVariable(name string) (interface{}, bool)
	SetVariable(name string, value interface{})
	Variables() map[string]interface{}

	// Credential resolves a node's named credential reference through the
	// CredentialProvider (§6 external interfaces).
	Credential(ref string) (map[string]string, error)

	// ResolveParameter expands {{ }} splices within a single parameter
	// value (string, or nested map/slice of strings) against the current
	// node/variable/context environment (§4.3).
	ResolveParameter(value interface{}) (interface{}, error)

	// EvaluateWithBindings evaluates a bare expression (no {{ }} wrapper)
	// with extra named values layered over the usual node/variable/context
	// environment — used by nodes that iterate (Function's $item/$index/
	// $accumulator) to scope per-element state without mutating workflow
	// variables.
	EvaluateWithBindings(expression string, bindings map[string]interface{}) (interface{}, error)

	// HTTPClient returns a pre-configured named client (teacher's
	// pkg/httpclient registry), or false if name is unset/unknown.
	HTTPClient(name string) (interface{}, bool)

	// Config exposes the shared resource/security limits.
	Config() types.Config
}

// NodeExecutor defines the interface for node execution strategies. Each
// node kind has its own implementation. Execution never panics or returns
// a bare Go error across this boundary — failures are reported through
// the NodeResult sum type (§9), so the scheduler can apply retry/timeout
// policy uniformly regardless of why a node failed.
type NodeExecutor interface {
	// Execute runs the node to completion or until ctx is canceled.
	Execute(ctx context.Context, ec ExecutionContext, node types.Node) types.NodeResult

	// Kind returns the node kind string this executor handles.
	Kind() string

	// Validate checks a node's parameters against this kind's schema
	// before the node ever reaches Execute (§4.2).
	Validate(node types.Node) error

	// Definition describes this kind's parameter/output schema and
	// capabilities for introspection (authoring tools, docs, the journal
	// API) — it is metadata, never consulted by Execute itself.
	Definition() NodeDefinition
}

// defaultTimeout matches config.Default's MaxNodeExecutionTime. Nothing
// reads it: the scheduler bounds a node that carries no explicit
// Node.Timeout by Config.MaxNodeExecutionTime.
const defaultTimeout = 30 * time.Second
