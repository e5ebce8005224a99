package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// switchCase is one entry of the Switch node's "cases" parameter.
type switchCase struct {
	Value       string
	OutputIndex int
}

// SwitchOutputName names the output edge for a given outputIndex, e.g.
// "output-0", matching how the authoring surface labels Switch edges.
func SwitchOutputName(index int) string {
	return fmt.Sprintf("output-%d", index)
}

// SwitchExecutor is the multi-way branching node (§4.7): it evaluates
// value, matches it case-insensitively by string equality against each
// case's Value, and routes to the first match's output. No match falls
// back to fallbackOutput when set; otherwise the node fails.
type SwitchExecutor struct{}

// NewSwitchExecutor constructs a SwitchExecutor.
func NewSwitchExecutor() *SwitchExecutor { return &SwitchExecutor{} }

// Execute evaluates value and selects an output by first-match case
// equality, or the fallback output, or fails.
func (e *SwitchExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	valueExpr := paramString(node.Parameters, "value", "")
	if valueExpr == "" {
		return types.Fail(types.ErrorKindValidation, "switch node missing value", nil)
	}

	resolved, err := ec.ResolveParameter(valueExpr)
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("switch value evaluation failed: %v", err), err)
	}

	cases := parseSwitchCases(paramSlice(node.Parameters, "cases"))
	resolvedStr := stringifyForCompare(resolved)

	for _, c := range cases {
		if strings.EqualFold(resolvedStr, c.Value) {
			return types.Ok(map[string]any{
				"value":      resolved,
				"output":     SwitchOutputName(c.OutputIndex),
				"isFallback": false,
			})
		}
	}

	fallback := paramInt(node.Parameters, "fallbackOutput", -1)
	if fallback < 0 {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("switch node: no case matched %q and no fallback configured", resolvedStr), nil)
	}

	return types.Ok(map[string]any{
		"value":      resolved,
		"output":     SwitchOutputName(fallback),
		"isFallback": true,
	})
}

func parseSwitchCases(raw []any) []switchCase {
	cases := make([]switchCase, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cases = append(cases, switchCase{
			Value:       paramString(m, "value", ""),
			OutputIndex: paramInt(m, "outputIndex", 0),
		})
	}
	return cases
}

func stringifyForCompare(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Kind returns "Switch".
func (e *SwitchExecutor) Kind() string { return "Switch" }

// Validate requires a non-empty value parameter and at least one case.
func (e *SwitchExecutor) Validate(node types.Node) error {
	if paramString(node.Parameters, "value", "") == "" {
		return fmt.Errorf("switch node requires a value parameter")
	}
	if len(paramSlice(node.Parameters, "cases")) == 0 {
		return fmt.Errorf("switch node requires at least one case")
	}
	return nil
}

// Definition describes the Switch node kind.
func (e *SwitchExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Switch",
		DisplayName: "Switch",
		Category:    "logic",
		Description: "Routes execution to one of several outputs by first-match case equality.",
		Parameters: []executor.ParameterSpec{
			{Name: "value", Kind: executor.ParamString, Required: true, Description: "Expression evaluated to select a case"},
			{Name: "cases", Kind: executor.ParamArray, Required: true, Description: "[{value, outputIndex}]"},
			{Name: "fallbackOutput", Kind: executor.ParamNumber, Required: false, Default: -1, Description: "Output index used when no case matches"},
		},
	}
}
