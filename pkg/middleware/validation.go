package middleware

import (
	"context"
	"fmt"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// ResourceValidationMiddleware checks a node's result against the shared
// resource limits (string length, array length, nesting depth) in
// ExecutionContext.Config(), using types.ValidateValue.
type ResourceValidationMiddleware struct{}

// NewResourceValidationMiddleware creates a new resource validation middleware.
func NewResourceValidationMiddleware() *ResourceValidationMiddleware {
	return &ResourceValidationMiddleware{}
}

// Process validates the node's result data after execution.
func (m *ResourceValidationMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	result := next(ctx, ec, node)
	if !result.Success {
		return result
	}

	if err := types.ValidateValue(result.Data, ec.Config()); err != nil {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("result violates resource limits: %v", err), err)
	}
	return result
}

// Name returns the middleware name.
func (m *ResourceValidationMiddleware) Name() string {
	return "ResourceValidation"
}
