package scheduler

import (
	"fmt"
	"os"
	"sync"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/expression"
	"github.com/flowcraft/workflow-core/pkg/graph"
	"github.com/flowcraft/workflow-core/pkg/httpclient"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// runContext is the concrete executor.ExecutionContext backing one
// workflow execution. It generalizes the nodes package's test fake
// (fakeExecutionContext) into the real thing. Node results are written by
// the scheduler as each node completes; variables are also written by node
// executors while they run (the Set node calls SetVariable). Both are
// guarded by a mutex because in parallel mode node goroutines read and
// write them concurrently.
type runContext struct {
	mu sync.RWMutex

	workflowID   string
	workflowName string

	graph       *graph.Graph
	nodeResults map[string]types.NodeResult
	variables   map[string]interface{}
	contextVars map[string]interface{}
	envValues   map[string]interface{} // $env.NAME -> resolved value, fixed for the run

	credentials  map[string]string // node credential name -> ref
	credProvider CredentialProvider
	envProvider  EnvironmentProvider
	httpClients  *httpclient.Registry
	cfg          types.Config
}

func (r *runContext) NodeResult(nodeID string) (types.NodeResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.nodeResults[nodeID]
	return res, ok
}

func (r *runContext) AllNodeResults() map[string]types.NodeResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]types.NodeResult, len(r.nodeResults))
	for k, v := range r.nodeResults {
		out[k] = v
	}
	return out
}

// Inputs returns the results of nodeID's direct predecessors, in
// connection order, including results for branches that were pruned
// (Skipped) so Merge can tell which inputs never ran.
func (r *runContext) Inputs(nodeID string) []types.NodeResult {
	conns := r.graph.GetInputConnections(nodeID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.NodeResult, 0, len(conns))
	for _, c := range conns {
		if res, ok := r.nodeResults[c.SourceNodeID]; ok {
			out = append(out, res)
		}
	}
	return out
}

// GetVariable looks name up in the workflow variables first and then in
// the context variables, which hold the trigger payload under "trigger".
func (r *runContext) GetVariable(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	v, ok := r.contextVars[name]
	return v, ok
}

func (r *runContext) SetVariable(name string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *runContext) Variables() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]interface{}, len(r.variables))
	for k, v := range r.variables {
		out[k] = v
	}
	return out
}

func (r *runContext) Credential(ref string) (map[string]string, error) {
	if r.credProvider == nil {
		return nil, errCredentialUnavailable(ref)
	}
	return r.credProvider.Get(ref)
}

func (r *runContext) exprContext() *expression.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodeData := make(map[string]interface{}, len(r.nodeResults))
	for id, res := range r.nodeResults {
		nodeData[id] = res.Data
	}
	vars := make(map[string]interface{}, len(r.variables))
	for k, v := range r.variables {
		vars[k] = v
	}
	ctxVars := make(map[string]interface{}, len(r.contextVars))
	for k, v := range r.contextVars {
		ctxVars[k] = v
	}
	// $workflow.variables reflects live workflow state, so it is rebuilt
	// from r.variables on every call rather than frozen at newRunContext.
	ctxVars["workflow"] = workflowContextVar(r.workflowID, r.workflowName, vars)
	env := make(map[string]interface{}, len(r.envValues))
	for k, v := range r.envValues {
		env[k] = v
	}
	ctxVars["env"] = env
	return &expression.Context{NodeResults: nodeData, Variables: vars, ContextVars: ctxVars}
}

// ResolveParameter expands {{ }} splices in a string parameter; non-string
// values (already-resolved numbers, bools, nested structures authored as
// literals) pass through unchanged.
func (r *runContext) ResolveParameter(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return expression.Resolve(s, nil, r.exprContext(), r.cfg.ExpressionTimeout)
}

// resolveParameterWithJSON is ResolveParameter plus a $json binding: the
// current node's primary input item, bound the same way Function bindings
// are (§4.3 "$json — the current item's JSON"). jsonData is nil for nodes
// with no upstream input (triggers) and $json then resolves to nil.
func (r *runContext) resolveParameterWithJSON(value interface{}, jsonData interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	ctx := r.exprContext()
	ctx.Variables["json"] = jsonData
	return expression.Resolve(s, nil, ctx, r.cfg.ExpressionTimeout)
}

func (r *runContext) EvaluateWithBindings(expr string, bindings map[string]interface{}) (interface{}, error) {
	ctx := r.exprContext()
	for k, v := range bindings {
		ctx.Variables[k] = v
	}
	return expression.EvaluateExpression(expr, nil, ctx)
}

func (r *runContext) HTTPClient(name string) (interface{}, bool) {
	if r.httpClients == nil || name == "" {
		return nil, false
	}
	client, err := r.httpClients.Get(name)
	if err != nil {
		return nil, false
	}
	return client, true
}

func (r *runContext) Config() types.Config {
	return r.cfg
}

var _ executor.ExecutionContext = (*runContext)(nil)

func newRunContext(g *graph.Graph, workflowID, workflowName string, def types.WorkflowDefinition, trigger interface{}, cfg types.Config, credProvider CredentialProvider, envProvider EnvironmentProvider, httpClients *httpclient.Registry) *runContext {
	variables := make(map[string]interface{}, len(def.Variables))
	for k, v := range def.Variables {
		variables[k] = v
	}
	return &runContext{
		workflowID:   workflowID,
		workflowName: workflowName,
		graph:        g,
		nodeResults:  make(map[string]types.NodeResult),
		variables:    variables,
		contextVars:  map[string]interface{}{"trigger": trigger},
		envValues:    resolveEnvValues(def, envProvider),
		credProvider: credProvider,
		envProvider:  envProvider,
		httpClients:  httpClients,
		cfg:          cfg,
	}
}

// workflowContextVar builds the $workflow expression binding exposed to
// every node (§4.3, §4.4 step 3): read-only identity plus the live
// variable snapshot, never the full definition itself.
func workflowContextVar(id, name string, variables map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":        id,
		"name":      name,
		"variables": variables,
	}
}

// resolveEnvValues scans every node parameter for $env.NAME references and
// resolves each referenced name exactly once through envProvider, so a
// workflow execution sees a stable environment snapshot instead of
// re-querying the provider on every expression evaluation (§4.3, §6
// EnvironmentProvider).
func resolveEnvValues(def types.WorkflowDefinition, envProvider EnvironmentProvider) map[string]interface{} {
	names := make(map[string]bool)
	for _, node := range def.Nodes {
		collectEnvNames(node.Parameters, names)
	}

	values := make(map[string]interface{}, len(names))
	for name := range names {
		if envProvider != nil {
			if v, ok := envProvider.Get(name); ok {
				values[name] = v
				continue
			}
		}
		if v, ok := os.LookupEnv(name); ok {
			values[name] = v
		}
	}
	return values
}

func collectEnvNames(v interface{}, names map[string]bool) {
	switch val := v.(type) {
	case string:
		for _, name := range expression.ExtractEnvNames(val) {
			names[name] = true
		}
	case map[string]interface{}:
		for _, item := range val {
			collectEnvNames(item, names)
		}
	case []interface{}:
		for _, item := range val {
			collectEnvNames(item, names)
		}
	}
}

func (r *runContext) setResult(nodeID string, res types.NodeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodeResults[nodeID] = res
}

// describeResult is used for log metadata when a node's own error message
// needs a little more context than the bare NodeError.Message.
func describeResult(res types.NodeResult) string {
	if res.Success {
		return "success"
	}
	if res.Err != nil {
		return fmt.Sprintf("%s: %s", res.Err.Kind, res.Err.Message)
	}
	return "failed"
}
