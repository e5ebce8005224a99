package nodes

import (
	"context"
	"fmt"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// IfExecutor is the two-way branching node: it evaluates condition and
// routes along the "true" or "false" output accordingly (§4.7). Execute
// itself never branches — it just reports which way — the scheduler turns
// the reported output name into a live/pruned edge decision.
type IfExecutor struct{}

// NewIfExecutor constructs an IfExecutor.
func NewIfExecutor() *IfExecutor { return &IfExecutor{} }

// Execute resolves condition against the current execution context and
// reports the boolean result plus which output it selects.
func (e *IfExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	condition := paramString(node.Parameters, "condition", "")
	if condition == "" {
		return types.Fail(types.ErrorKindValidation, "if node missing condition", nil)
	}

	resolved, err := ec.ResolveParameter(condition)
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("if condition evaluation failed: %v", err), err)
	}

	result := coerceBool(resolved)
	output := types.OutputFalse
	if result {
		output = types.OutputTrue
	}

	return types.Ok(map[string]any{
		"result": result,
		"output": output,
	})
}

// coerceBool follows the same truthiness rules the expression engine's
// boolean path uses: zero values, empty strings/collections, the string
// "false", and nil are false; everything else is true.
func coerceBool(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// Kind returns "If".
func (e *IfExecutor) Kind() string { return "If" }

// Validate requires a non-empty condition parameter.
func (e *IfExecutor) Validate(node types.Node) error {
	if paramString(node.Parameters, "condition", "") == "" {
		return fmt.Errorf("if node requires a condition parameter")
	}
	return nil
}

// Definition describes the If node kind.
func (e *IfExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "If",
		DisplayName: "If",
		Category:    "logic",
		Description: "Routes execution down the true or false branch.",
		Parameters: []executor.ParameterSpec{
			{Name: "condition", Kind: executor.ParamString, Required: true, Description: "Expression evaluated for truthiness"},
		},
		Outputs: []string{types.OutputTrue, types.OutputFalse},
	}
}
