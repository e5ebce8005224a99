package nodes

import (
	"context"
	"fmt"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// SetExecutor assigns values into the execution context (§4.7). Each
// entry's value may contain {{ }} splices; keepOnlySet replaces the
// upstream data map entirely instead of merging into it.
type SetExecutor struct{}

// NewSetExecutor constructs a SetExecutor.
func NewSetExecutor() *SetExecutor { return &SetExecutor{} }

// Execute resolves every values[].value and merges (or replaces) them
// into a data map.
func (e *SetExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	entries := paramSlice(node.Parameters, "values")
	keepOnlySet := paramBool(node.Parameters, "keepOnlySet", false)

	data := map[string]any{}
	if !keepOnlySet {
		for k, v := range ec.Variables() {
			data[k] = v
		}
	}

	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := paramString(entry, "name", "")
		if name == "" {
			continue
		}
		value, err := ec.ResolveParameter(entry["value"])
		if err != nil {
			return types.Fail(types.ErrorKindExecution, fmt.Sprintf("set node: failed resolving %q: %v", name, err), err)
		}
		data[name] = value
		ec.SetVariable(name, value)
	}

	return types.Ok(data)
}

// Kind returns "Set".
func (e *SetExecutor) Kind() string { return "Set" }

// Validate requires at least one values entry with a name.
func (e *SetExecutor) Validate(node types.Node) error {
	entries := paramSlice(node.Parameters, "values")
	if len(entries) == 0 {
		return fmt.Errorf("set node requires at least one entry in values")
	}
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok || paramString(entry, "name", "") == "" {
			return fmt.Errorf("set node: every values entry requires a name")
		}
	}
	return nil
}

// Definition describes the Set node kind.
func (e *SetExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Set",
		DisplayName: "Set",
		Category:    "data",
		Description: "Assigns named values, optionally resolved from expressions, into the execution context.",
		Parameters: []executor.ParameterSpec{
			{Name: "values", Kind: executor.ParamArray, Required: true, Description: "[{name, value}]"},
			{Name: "keepOnlySet", Kind: executor.ParamBoolean, Required: false, Default: false, Description: "Replace rather than merge into the upstream data map"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
