package nodes

import (
	"github.com/flowcraft/workflow-core/pkg/config"
	"github.com/flowcraft/workflow-core/pkg/expression"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// fakeExecutionContext is a minimal in-memory executor.ExecutionContext
// used to exercise node executors without a real scheduler.
type fakeExecutionContext struct {
	nodeResults map[string]types.NodeResult
	inputs      map[string][]types.NodeResult
	variables   map[string]interface{}
	credentials map[string]map[string]string
	cfg         types.Config
}

func newFakeExecutionContext() *fakeExecutionContext {
	return &fakeExecutionContext{
		nodeResults: map[string]types.NodeResult{},
		inputs:      map[string][]types.NodeResult{},
		variables:   map[string]interface{}{},
		credentials: map[string]map[string]string{},
		cfg:         *config.Testing(),
	}
}

func (f *fakeExecutionContext) NodeResult(nodeID string) (types.NodeResult, bool) {
	r, ok := f.nodeResults[nodeID]
	return r, ok
}

func (f *fakeExecutionContext) AllNodeResults() map[string]types.NodeResult {
	return f.nodeResults
}

func (f *fakeExecutionContext) Inputs(nodeID string) []types.NodeResult {
	return f.inputs[nodeID]
}

func (f *fakeExecutionContext) GetVariable(name string) (interface{}, bool) {
	v, ok := f.variables[name]
	return v, ok
}

func (f *fakeExecutionContext) SetVariable(name string, value interface{}) {
	f.variables[name] = value
}

func (f *fakeExecutionContext) Variables() map[string]interface{} {
	return f.variables
}

func (f *fakeExecutionContext) Credential(ref string) (map[string]string, error) {
	return f.credentials[ref], nil
}

func (f *fakeExecutionContext) exprContext() *expression.Context {
	nodeData := map[string]interface{}{}
	for id, r := range f.nodeResults {
		nodeData[id] = r.Data
	}
	return &expression.Context{
		NodeResults: nodeData,
		Variables:   f.variables,
		ContextVars: map[string]interface{}{},
	}
}

func (f *fakeExecutionContext) ResolveParameter(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return expression.Resolve(s, nil, f.exprContext(), 0)
}

func (f *fakeExecutionContext) EvaluateWithBindings(expr string, bindings map[string]interface{}) (interface{}, error) {
	ctx := f.exprContext()
	for k, v := range bindings {
		ctx.Variables[k] = v
	}
	return expression.EvaluateExpression(expr, nil, ctx)
}

func (f *fakeExecutionContext) HTTPClient(name string) (interface{}, bool) {
	return nil, false
}

func (f *fakeExecutionContext) Config() types.Config {
	return f.cfg
}
