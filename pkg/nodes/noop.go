package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

const maxNoOpDelay = 60 * time.Second

// NoOpExecutor passes its upstream data through unchanged, optionally
// after a delay (§4.7) — used in tests to exercise timing and
// cancellation without a real side effect.
type NoOpExecutor struct{}

// NewNoOpExecutor constructs a NoOpExecutor.
func NewNoOpExecutor() *NoOpExecutor { return &NoOpExecutor{} }

// Execute waits for the configured delay (or returns immediately if
// ctx is canceled first) and returns the first live input's data.
func (e *NoOpExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	delayMS := paramInt(node.Parameters, "delay", 0)
	if delayMS > 0 {
		timer := time.NewTimer(time.Duration(delayMS) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return types.Fail(types.ErrorKindCancel, "noop node: canceled during delay", ctx.Err())
		}
	}

	for _, in := range ec.Inputs(node.ID) {
		if in.Success {
			return types.Ok(in.Data)
		}
	}
	return types.Ok(nil)
}

// Kind returns "NoOp".
func (e *NoOpExecutor) Kind() string { return "NoOp" }

// Validate checks delay is within [0, 60000]ms.
func (e *NoOpExecutor) Validate(node types.Node) error {
	delayMS := paramInt(node.Parameters, "delay", 0)
	if delayMS < 0 || time.Duration(delayMS)*time.Millisecond > maxNoOpDelay {
		return fmt.Errorf("noop node: delay must be between 0 and %d ms", maxNoOpDelay.Milliseconds())
	}
	return nil
}

// Definition describes the NoOp node kind.
func (e *NoOpExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "NoOp",
		DisplayName: "No Op",
		Category:    "utility",
		Description: "Passes data through unchanged, optionally after a delay.",
		Parameters: []executor.ParameterSpec{
			{Name: "delay", Kind: executor.ParamNumber, Required: false, Default: 0, Description: "Delay in milliseconds, 0..60000"},
			{Name: "note", Kind: executor.ParamString, Required: false, Description: "Free-text annotation, not used by execution"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
