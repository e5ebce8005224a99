// Package journal provides durable storage of WorkflowExecution,
// NodeExecution, and ExecutionLog records (C5). Store is implemented by
// an in-memory map for tests/development and a pgx/v5-backed Postgres
// store for production, both behind the same Store interface.
package journal

import (
	"context"
	"time"

	"github.com/flowcraft/workflow-core/pkg/types"
)

// ListFilter narrows a List query (§4.5).
type ListFilter struct {
	WorkflowID  string
	Status      types.ExecutionStatus
	Environment types.Environment
	Since       time.Time
	Until       time.Time
	Limit       int
	Offset      int
}

// Stats is the aggregate statistics block §4.5 requires per workflow (or
// globally when WorkflowID is empty).
type Stats struct {
	WorkflowID     string
	Total          int
	Succeeded      int
	Failed         int
	Running        int
	Canceled       int
	AvgDurationMS  float64
	MinDurationMS  int64
	MaxDurationMS  int64
	SuccessRate    float64
	LastExecutedAt *time.Time
}

// ExecutionDetail bundles a WorkflowExecution with its NodeExecutions and
// logs for get-by-id reads that opt into the nested data.
type ExecutionDetail struct {
	Execution      types.WorkflowExecution
	NodeExecutions []types.NodeExecution
	Logs           []types.ExecutionLog
}

// Store is the durable journal (§4.5). Writes on the hot path are
// batched by the caller (the scheduler accumulates logs and flushes via
// AppendLogs); Store itself just persists what it is given.
type Store interface {
	CreateExecution(ctx context.Context, exec types.WorkflowExecution) error
	UpdateExecution(ctx context.Context, exec types.WorkflowExecution) error
	GetExecution(ctx context.Context, id string, includeNodes, includeLogs bool) (*ExecutionDetail, error)
	ListExecutions(ctx context.Context, filter ListFilter) ([]types.WorkflowExecution, error)
	RecentByWorkflow(ctx context.Context, workflowID string, limit int) ([]types.WorkflowExecution, error)

	UpsertNodeExecution(ctx context.Context, ne types.NodeExecution) error
	ListNodeExecutions(ctx context.Context, executionID string) ([]types.NodeExecution, error)

	AppendLogs(ctx context.Context, logs []types.ExecutionLog) error
	ListLogs(ctx context.Context, executionID string, minLevel types.LogLevel) ([]types.ExecutionLog, error)

	Stats(ctx context.Context, workflowID string) (Stats, error)

	// PurgeOlderThan deletes executions (and their nodes/logs) whose
	// FinishedAt predates cutoff; returns the number of executions purged.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
