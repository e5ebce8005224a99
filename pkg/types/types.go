// Package types provides shared type definitions for the workflow execution
// core. All core data structures used across packages are defined here to
// avoid circular dependencies between the graph, executor, expression,
// scheduler, journal, and broadcast packages.
package types

import (
	"context"
	"time"

	"github.com/flowcraft/workflow-core/pkg/config"
)

// ============================================================================
// Context Keys
// ============================================================================

// contextKey is used for context keys to avoid collisions
type contextKey string

const (
	// ContextKeyExecutionID is the context key for the unique execution ID
	ContextKeyExecutionID contextKey = "execution_id"

	// ContextKeyWorkflowID is the context key for the workflow ID
	ContextKeyWorkflowID contextKey = "workflow_id"
)

// GetExecutionID extracts the execution ID from context.
// Returns empty string if not found in context.
func GetExecutionID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyExecutionID).(string); ok {
		return id
	}
	return ""
}

// GetWorkflowID extracts the workflow ID from context.
// Returns empty string if not found in context.
func GetWorkflowID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyWorkflowID).(string); ok {
		return id
	}
	return ""
}

// ============================================================================
// Environment / execution-mode enums
// ============================================================================

// Environment is the deployment stage a workflow is bound to.
type Environment string

const (
	EnvironmentTesting    Environment = "testing"
	EnvironmentLaunched   Environment = "launched"
	EnvironmentProduction Environment = "production"
)

// ExecutionMode selects how ready nodes are scheduled: one at a time in
// topological order, or concurrently up to a worker-pool bound.
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// ============================================================================
// Workflow / WorkflowDefinition / Node / Connection
// ============================================================================

// Workflow is a named, versioned graph plus metadata. The core reads an
// immutable snapshot of a Workflow at execute-time; edits happen outside
// the core.
type Workflow struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	Active           bool               `json:"active"`
	Environment      Environment        `json:"environment"`
	Version          int                `json:"version"`
	CreatedBy        string             `json:"created_by,omitempty"`
	ParentWorkflowID string             `json:"parent_workflow_id,omitempty"`
	Definition       WorkflowDefinition `json:"definition"`
}

// WorkflowDefinition is the authored content: nodes, connections,
// variables, and settings.
type WorkflowDefinition struct {
	Nodes       []Node           `json:"nodes"`
	Connections []Connection     `json:"connections"`
	Variables   map[string]any   `json:"variables,omitempty"`
	Settings    WorkflowSettings `json:"settings"`
}

// WorkflowSettings configures how the scheduler runs a workflow.
type WorkflowSettings struct {
	ExecutionMode    ExecutionMode `json:"execution_mode"`
	MaxConcurrency   int           `json:"max_concurrency"`
	ExecutionTimeout time.Duration `json:"execution_timeout"`
	Timezone         string        `json:"timezone,omitempty"`
	ErrorHandlerID   string        `json:"error_handler_workflow_id,omitempty"`
}

// DefaultSettings returns the settings used when a WorkflowDefinition omits
// them: Sequential mode, max-concurrency 5, no execution timeout.
func DefaultSettings() WorkflowSettings {
	return WorkflowSettings{
		ExecutionMode:  ExecutionModeSequential,
		MaxConcurrency: 5,
	}
}

// RetrySettings configures node-level retry behavior (§4.4 step 6): up to
// MaxRetries additional attempts with exponential backoff starting at
// BaseDelay, capped at MaxDelay.
type RetrySettings struct {
	MaxRetries int           `json:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay"`
}

// DefaultRetrySettings matches the base-1s/cap-60s exponential policy with
// no retries unless a node opts in.
func DefaultRetrySettings() RetrySettings {
	return RetrySettings{MaxRetries: 0, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

// Node is one vertex of a workflow graph. Kind selects the registered
// NodeExecutor; Parameters are resolved against the expression evaluator
// before execution.
type Node struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	DisplayName string            `json:"display_name,omitempty"`
	Parameters  map[string]any    `json:"parameters,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Position    Position          `json:"position,omitempty"`
	Retry       *RetrySettings    `json:"retry,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	Enabled     bool              `json:"enabled"`
}

// Position is the canvas position of a node; opaque to execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Reserved output names used by branching node kinds (§3).
const (
	OutputTrue    = "true"
	OutputFalse   = "false"
	OutputDefault = "default"
)

// Connection links a source node's named output to a target node's input.
// An empty SourceOutput means the node's single unconditional output.
type Connection struct {
	SourceNodeID string `json:"source_node_id"`
	SourceOutput string `json:"source_output,omitempty"`
	TargetNodeID string `json:"target_node_id"`
	TargetInput  string `json:"target_input,omitempty"`
}

// ============================================================================
// Execution records
// ============================================================================

// ExecutionStatus is the lifecycle status of a WorkflowExecution.
type ExecutionStatus string

const (
	ExecutionPending  ExecutionStatus = "pending"
	ExecutionRunning  ExecutionStatus = "running"
	ExecutionSuccess  ExecutionStatus = "success"
	ExecutionError    ExecutionStatus = "error"
	ExecutionCanceled ExecutionStatus = "canceled"
	ExecutionTimeout  ExecutionStatus = "timeout"
)

// IsTerminal reports whether the status is one the execution will not
// transition out of.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionSuccess, ExecutionError, ExecutionCanceled, ExecutionTimeout:
		return true
	default:
		return false
	}
}

// NodeStatus is the lifecycle status of a NodeExecution.
type NodeStatus string

const (
	NodeStatusPending  NodeStatus = "pending"
	NodeStatusRunning  NodeStatus = "running"
	NodeStatusSuccess  NodeStatus = "success"
	NodeStatusError    NodeStatus = "error"
	NodeStatusSkipped  NodeStatus = "skipped"
	NodeStatusCanceled NodeStatus = "canceled"
)

// IsTerminal reports whether the node status will not change further.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusSuccess, NodeStatusError, NodeStatusSkipped, NodeStatusCanceled:
		return true
	default:
		return false
	}
}

// TriggerMode records how an execution was started.
type TriggerMode string

const (
	TriggerManual   TriggerMode = "manual"
	TriggerWebhook  TriggerMode = "webhook"
	TriggerSchedule TriggerMode = "schedule"
)

// WorkflowExecution is one run of a Workflow (§3).
type WorkflowExecution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	Environment   Environment     `json:"environment"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	TriggerMode   TriggerMode     `json:"trigger_mode"`
	TriggerData   any             `json:"trigger_data,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
	Executed      int             `json:"executed"`
	Skipped       int             `json:"skipped"`
	Failed        int             `json:"failed"`
	ExecutionPath []string        `json:"execution_path"`
}

// NodeExecution is one attempt to run one node within a WorkflowExecution.
// Retries reuse the same row (§4.4 step 6), incrementing RetryCount rather
// than creating a new row per attempt.
type NodeExecution struct {
	ID             string     `json:"id"`
	ExecutionID    string     `json:"execution_id"`
	NodeID         string     `json:"node_id"`
	NodeName       string     `json:"node_name"`
	Status         NodeStatus `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	InputData      any        `json:"input_data,omitempty"`
	OutputData     any        `json:"output_data,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	DurationMS     int64      `json:"duration_ms"`
	ExecutionOrder int        `json:"execution_order"`
}

// LogLevel is the severity of an ExecutionLog row.
type LogLevel string

const (
	LogTrace LogLevel = "trace"
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

var logLevelOrder = map[LogLevel]int{
	LogTrace: 0, LogDebug: 1, LogInfo: 2, LogWarn: 3, LogError: 4,
}

// AtLeast reports whether l is at least as severe as min.
func (l LogLevel) AtLeast(min LogLevel) bool {
	return logLevelOrder[l] >= logLevelOrder[min]
}

// ExecutionLog is one ordered log line belonging to an execution. Rows for
// a given ExecutionID form a total order by (Timestamp, Seq); Seq breaks
// ties when the wall clock doesn't advance between two log calls.
type ExecutionLog struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	Seq         int64          `json:"seq"`
	Timestamp   time.Time      `json:"timestamp"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	NodeID      string         `json:"node_id,omitempty"`
	NodeName    string         `json:"node_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ============================================================================
// NodeResult — the sum type returned across the node-executor boundary (§9)
// ============================================================================

// ErrorKind categorizes why a node execution failed, driving the
// scheduler's retry-vs-terminate decision (§7).
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindExecution  ErrorKind = "execution"
	ErrorKindExternal   ErrorKind = "external"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindCancel     ErrorKind = "cancel"
)

// NodeError is the error half of a NodeResult.
type NodeError struct {
	Message string
	Kind    ErrorKind
	Cause   error
}

func (e *NodeError) Error() string { return e.Message }
func (e *NodeError) Unwrap() error { return e.Cause }

// NodeResult is the sum type a node executor returns: either a successful
// value or a categorized error, never an exception across the executor
// boundary (§9).
type NodeResult struct {
	Success bool
	Data    any
	Err     *NodeError
}

// Ok builds a successful NodeResult.
func Ok(data any) NodeResult { return NodeResult{Success: true, Data: data} }

// Fail builds a failed NodeResult.
func Fail(kind ErrorKind, message string, cause error) NodeResult {
	return NodeResult{Success: false, Err: &NodeError{Message: message, Kind: kind, Cause: cause}}
}

// Config is a type alias for backward compatibility.
// The actual configuration is now in the config package.
// Deprecated: Use github.com/flowcraft/workflow-core/pkg/config.Config instead.
type Config = config.Config
