package nodes

import (
	"context"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// StartExecutor is the trigger node every workflow root-path begins from.
// It has no inputs; it simply surfaces the payload the execution was
// started with (ec.GetVariable("trigger")) as its output.
type StartExecutor struct{}

// NewStartExecutor constructs a StartExecutor.
func NewStartExecutor() *StartExecutor { return &StartExecutor{} }

// Execute returns the trigger payload unchanged.
func (e *StartExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	payload, _ := ec.GetVariable("trigger")
	if payload == nil {
		payload = map[string]any{}
	}
	return types.Ok(payload)
}

// Kind returns "Start".
func (e *StartExecutor) Kind() string { return "Start" }

// Validate always succeeds; Start takes no parameters.
func (e *StartExecutor) Validate(node types.Node) error { return nil }

// Definition describes the Start node kind.
func (e *StartExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Start",
		DisplayName: "Start",
		Category:    "trigger",
		Description: "Entry point of a workflow; outputs the trigger payload.",
		Outputs:     []string{types.OutputDefault},
	}
}
