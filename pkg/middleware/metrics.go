package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// MetricsCollector defines the interface for metrics collection, keyed by
// node kind (§4.2) rather than a fixed enum so any registered node kind
// can be tracked.
type MetricsCollector interface {
	RecordNodeExecution(kind string, duration time.Duration, success bool)
	RecordNodeError(kind string, errorKind types.ErrorKind)
}

// MetricsMiddleware collects execution metrics for nodes: execution time,
// success/failure rates, and error kinds.
type MetricsMiddleware struct {
	collector MetricsCollector
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(collector MetricsCollector) *MetricsMiddleware {
	return &MetricsMiddleware{collector: collector}
}

// Process records metrics for node execution.
func (m *MetricsMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	start := time.Now()

	result := next(ctx, ec, node)

	duration := time.Since(start)
	if m.collector == nil {
		return result
	}

	m.collector.RecordNodeExecution(node.Kind, duration, result.Success)
	if !result.Success && result.Err != nil {
		m.collector.RecordNodeError(node.Kind, result.Err.Kind)
	}
	return result
}

// Name returns the middleware name.
func (m *MetricsMiddleware) Name() string {
	return "Metrics"
}

// InMemoryMetricsCollector is a simple in-memory metrics collector, useful
// for tests and for a development deployment with no external metrics
// backend wired.
type InMemoryMetricsCollector struct {
	mu             sync.RWMutex
	executionCount map[string]int64
	successCount   map[string]int64
	failureCount   map[string]int64
	totalDuration  map[string]time.Duration
	errorCount     map[types.ErrorKind]int64
}

// NewInMemoryMetricsCollector creates a new in-memory metrics collector.
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		executionCount: make(map[string]int64),
		successCount:   make(map[string]int64),
		failureCount:   make(map[string]int64),
		totalDuration:  make(map[string]time.Duration),
		errorCount:     make(map[types.ErrorKind]int64),
	}
}

// RecordNodeExecution records a node execution.
func (c *InMemoryMetricsCollector) RecordNodeExecution(kind string, duration time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.executionCount[kind]++
	c.totalDuration[kind] += duration

	if success {
		c.successCount[kind]++
	} else {
		c.failureCount[kind]++
	}
}

// RecordNodeError records a node error.
func (c *InMemoryMetricsCollector) RecordNodeError(kind string, errorKind types.ErrorKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errorCount[errorKind]++
}

// GetExecutionCount returns the total execution count for a node kind.
func (c *InMemoryMetricsCollector) GetExecutionCount(kind string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.executionCount[kind]
}

// GetSuccessCount returns the success count for a node kind.
func (c *InMemoryMetricsCollector) GetSuccessCount(kind string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.successCount[kind]
}

// GetFailureCount returns the failure count for a node kind.
func (c *InMemoryMetricsCollector) GetFailureCount(kind string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failureCount[kind]
}

// GetAverageDuration returns the average execution duration for a node kind.
func (c *InMemoryMetricsCollector) GetAverageDuration(kind string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := c.executionCount[kind]
	if count == 0 {
		return 0
	}
	return c.totalDuration[kind] / time.Duration(count)
}

// GetErrorCount returns the count for a specific error kind.
func (c *InMemoryMetricsCollector) GetErrorCount(errorKind types.ErrorKind) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errorCount[errorKind]
}

// Reset clears all metrics.
func (c *InMemoryMetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.executionCount = make(map[string]int64)
	c.successCount = make(map[string]int64)
	c.failureCount = make(map[string]int64)
	c.totalDuration = make(map[string]time.Duration)
	c.errorCount = make(map[types.ErrorKind]int64)
}
