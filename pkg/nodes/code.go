package nodes

import (
	"context"
	"fmt"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// CodeExecutor runs a single expression under the same safety envelope as
// every other {{ }} splice (§4.7): same forbidden identifiers, length and
// nesting limits, and wall-clock timeout. There is no separate scripting
// runtime — code is evaluated the same way a parameter splice is, wrapped
// so its raw (non-stringified) return value becomes the node's output.
type CodeExecutor struct{}

// NewCodeExecutor constructs a CodeExecutor.
func NewCodeExecutor() *CodeExecutor { return &CodeExecutor{} }

// Execute evaluates node.Parameters["code"] and returns its raw result.
func (e *CodeExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	code := paramString(node.Parameters, "code", "")
	if code == "" {
		return types.Fail(types.ErrorKindValidation, "code node missing code", nil)
	}

	result, err := ec.ResolveParameter(fmt.Sprintf("{{ %s }}", code))
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("code node evaluation failed: %v", err), err)
	}

	return types.Ok(result)
}

// Kind returns "Code".
func (e *CodeExecutor) Kind() string { return "Code" }

// Validate requires a non-empty code parameter.
func (e *CodeExecutor) Validate(node types.Node) error {
	if paramString(node.Parameters, "code", "") == "" {
		return fmt.Errorf("code node requires a code parameter")
	}
	return nil
}

// Definition describes the Code node kind.
func (e *CodeExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Code",
		DisplayName: "Code",
		Category:    "data",
		Description: "Evaluates a single sandboxed expression; its result becomes the node output.",
		Parameters: []executor.ParameterSpec{
			{Name: "code", Kind: executor.ParamString, Required: true, Description: "Expression evaluated under the same safety envelope as parameter splices"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
