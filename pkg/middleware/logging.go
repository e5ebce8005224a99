package middleware

import (
	"context"
	"time"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/logging"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// LoggingMiddleware logs node execution start and completion, independent
// of the per-execution logger the scheduler already derives for its own
// journal/log records.
type LoggingMiddleware struct {
	logger *logging.Logger
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger *logging.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Process logs node execution start and completion.
func (m *LoggingMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	nodeLogger := m.logger.WithNodeID(node.ID).WithNodeKind(node.Kind)

	nodeLogger.Debug("node execution started")
	start := time.Now()

	result := next(ctx, ec, node)

	duration := time.Since(start)
	if !result.Success {
		msg := ""
		if result.Err != nil {
			msg = result.Err.Message
		}
		nodeLogger.
			WithField("duration_ms", duration.Milliseconds()).
			WithField("error", msg).
			Error("node execution failed")
	} else {
		nodeLogger.
			WithField("duration_ms", duration.Milliseconds()).
			Debug("node execution completed")
	}

	return result
}

// Name returns the middleware name.
func (m *LoggingMiddleware) Name() string {
	return "Logging"
}
