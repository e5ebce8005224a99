// Package logging provides structured logging capabilities for the workflow engine.
//
// # Overview
//
// The logging package implements a structured logging system with support for
// multiple output formats, log levels, contextual information, and integration
// with the workflow execution lifecycle.
//
// # Features
//
//   - Structured logging: JSON (default) and text formats
//   - Log levels: DEBUG, INFO, WARN, ERROR
//   - Context fields: workflow ID, execution ID, node ID, node kind
//   - Level filtering: one minimum level per Logger
//   - Performance: Minimal overhead for disabled log levels
//   - Thread-safe: Safe for concurrent use
//   - Flexible output: Write to any io.Writer
//
// # Log Levels
//
// The package supports standard log levels:
//
//   - DEBUG: Detailed diagnostic information
//   - INFO: General informational messages
//   - WARN: Warning messages for potential issues
//   - ERROR: Error messages for failures
//
// # Basic Usage
//
//	import "github.com/flowcraft/workflow-core/pkg/logging"
//
//	// Create logger
//	logger := logging.New(logging.Config{
//	    Level:  "info", // "debug", "info", "warn"/"warning", "error"; anything else means info
//	    Output: os.Stdout,
//	})
//
//	// Log messages
//	logger.WithWorkflowID("wf-123").
//	    WithField("node_count", 42).
//	    Info("Workflow started")
//
//	logger.WithNodeID("node-5").WithError(err).Error("Execution failed")
//
// # Context Integration
//
// A Logger can be stored in a context and retrieved from it; FromContext
// returns a new logger built from DefaultConfig when none is stored:
//
//	ctx = logger.WithContext(ctx)
//	logging.FromContext(ctx).WithNodeKind("HTTPRequest").Info("Node executing")
//
// # Structured Fields
//
// Fields are attached with WithField or WithFields, each of which returns a
// new Logger carrying them:
//
//	logger.WithFields(map[string]interface{}{
//	    "method": "GET",
//	    "url": "https://api.example.com",
//	    "status": 200,
//	    "duration_ms": 145,
//	}).Info("HTTP request completed")
//
// # Output Formats
//
// JSON Format (default, Pretty false), one object per line:
//
//	{"time":"2024-01-15T10:30:00Z","level":"INFO","msg":"Workflow started","workflow_id":"wf-123","execution_id":"exec-456"}
//
// Text Format (Pretty true):
//
//	time=2024-01-15T10:30:00.000Z level=INFO msg="Workflow started" workflow_id=wf-123 execution_id=exec-456
//
// # Configuration
//
// Logger configuration options:
//
//	config := logging.Config{
//	    Level:         "debug",   // Minimum level to log
//	    Output:        os.Stdout, // Where to write logs (nil means os.Stdout)
//	    Pretty:        true,      // Text output instead of JSON
//	    IncludeCaller: true,      // Include source file:line
//	}
//
// # Performance Considerations
//
//   - Debug, Info, Warn and Error drop records below the configured level
//     before formatting them; Debugf, Infof, Warnf and Errorf call
//     fmt.Sprintf before that check
//   - Field values are captured when With* is called
//   - Each record is written to Output as it is logged, without buffering
//
// # Common Logging Patterns
//
// Workflow execution:
//
//	logger.WithWorkflowID(workflow.ID).
//	    WithField("node_count", len(workflow.Definition.Nodes)).
//	    Info("Workflow execution started")
//
// Node execution:
//
//	logger.WithNodeID(node.ID).WithNodeKind(node.Kind).Debug("Node executing")
//
// Error logging:
//
//	logger.WithNodeID(node.ID).
//	    WithError(err).
//	    WithField("retry_count", retries).
//	    Error("Node execution failed")
//
// Performance metrics:
//
//	logger.WithWorkflowID(workflow.ID).WithFields(map[string]interface{}{
//	    "duration_ms":    elapsed.Milliseconds(),
//	    "nodes_executed": count,
//	}).Info("Workflow completed")
//
// # Integration with the Scheduler
//
// scheduler.WithLogger hands a Logger to the scheduler, which adds
// workflow_id and execution_id for each run and node_id and node_kind for
// each node:
//
//	sched := scheduler.New(reg, store, hub, cfg, scheduler.WithLogger(logger))
//
// # Best Practices
//
//   - Use structured fields instead of string formatting
//   - Include execution context (workflow_id, node_id, etc.)
//   - Log at appropriate levels (avoid debug in production)
//   - Add timing information for performance analysis
//   - Include error context (not just error message)
//   - Use consistent field names across the codebase
//
// # Thread Safety
//
// All logger operations are thread-safe and can be used concurrently
// from multiple goroutines without additional synchronization.
//
// # Testing
//
// For testing, use a logger with a buffer:
//
//	buf := &bytes.Buffer{}
//	logger := logging.New(logging.Config{
//	    Output: buf, // JSON output, since Pretty is false
//	})
//
//	// Execute code
//	// Verify log output
//	assert.Contains(t, buf.String(), "expected message")
package logging
