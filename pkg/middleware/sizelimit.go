package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// SizeLimitMiddleware enforces size limits on node input/result data to
// prevent memory exhaustion from a runaway node.
type SizeLimitMiddleware struct {
	maxInputSize      int64
	maxResultSize     int64
	maxStringLength   int
	maxArrayLength    int
	enforceInputSize  bool
	enforceResultSize bool
}

// SizeLimitConfig configures per-node size limit enforcement.
type SizeLimitConfig struct {
	MaxInputSize    int64 // Maximum input size per node (default: 10MB)
	MaxResultSize   int64 // Maximum result size per node (default: 50MB)
	MaxStringLength int   // Maximum string length (default: 1MB)
	MaxArrayLength  int   // Maximum array length (default: 10000)

	EnforceInputSize  bool // Enforce input size limits (default: true)
	EnforceResultSize bool // Enforce result size limits (default: true)

	// Workflow-level limits, checked once up front by ValidateWorkflowSize
	// rather than per node.
	MaxWorkflowSize int64 // Maximum total workflow definition size in bytes
	MaxNodeCount    int   // Maximum nodes in workflow
	MaxEdgeCount    int   // Maximum connections in workflow
}

// DefaultSizeLimitConfig returns default size limit configuration.
func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxInputSize:      10 * 1024 * 1024,
		MaxResultSize:     50 * 1024 * 1024,
		MaxStringLength:   1 * 1024 * 1024,
		MaxArrayLength:    10000,
		MaxWorkflowSize:   100 * 1024 * 1024,
		MaxNodeCount:      1000,
		MaxEdgeCount:      5000,
		EnforceInputSize:  true,
		EnforceResultSize: true,
	}
}

// SizeLimitConfigFromTypes builds a SizeLimitConfig from the shared
// types.Config resource limits (§6), so the middleware enforces the same
// budget every other component reads from.
func SizeLimitConfigFromTypes(cfg types.Config) SizeLimitConfig {
	return SizeLimitConfig{
		MaxInputSize:      cfg.MaxInputSize,
		MaxResultSize:     cfg.MaxPayloadSize,
		MaxStringLength:   cfg.MaxStringLength,
		MaxArrayLength:    cfg.MaxArrayLength,
		MaxNodeCount:      cfg.MaxNodes,
		MaxEdgeCount:      cfg.MaxEdges,
		EnforceInputSize:  true,
		EnforceResultSize: true,
	}
}

// NewSizeLimitMiddleware creates a new size limit middleware with default config.
func NewSizeLimitMiddleware() *SizeLimitMiddleware {
	return NewSizeLimitMiddlewareWithConfig(DefaultSizeLimitConfig())
}

// NewSizeLimitMiddlewareWithConfig creates a new size limit middleware with custom config.
func NewSizeLimitMiddlewareWithConfig(config SizeLimitConfig) *SizeLimitMiddleware {
	return &SizeLimitMiddleware{
		maxInputSize:      config.MaxInputSize,
		maxResultSize:     config.MaxResultSize,
		maxStringLength:   config.MaxStringLength,
		maxArrayLength:    config.MaxArrayLength,
		enforceInputSize:  config.EnforceInputSize,
		enforceResultSize: config.EnforceResultSize,
	}
}

// Process enforces size limits on a node's inputs and result.
func (m *SizeLimitMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	if m.enforceInputSize {
		inputs := ec.Inputs(node.ID)
		if err := m.validateInputSize(inputs); err != nil {
			return types.Fail(types.ErrorKindValidation, fmt.Sprintf("input size limit exceeded: %v", err), err)
		}
	}

	result := next(ctx, ec, node)
	if !result.Success {
		return result
	}

	if m.enforceResultSize {
		if err := m.validateResultSize(result.Data); err != nil {
			return types.Fail(types.ErrorKindValidation, fmt.Sprintf("result size limit exceeded: %v", err), err)
		}
	}

	return result
}

// Name returns the middleware name.
func (m *SizeLimitMiddleware) Name() string {
	return "SizeLimit"
}

func (m *SizeLimitMiddleware) validateInputSize(inputs []types.NodeResult) error {
	for i, input := range inputs {
		size, err := estimateSize(input.Data)
		if err != nil {
			return fmt.Errorf("failed to estimate size of input %d: %w", i, err)
		}
		if m.maxInputSize > 0 && size > m.maxInputSize {
			return fmt.Errorf("input %d size %d bytes exceeds limit %d bytes", i, size, m.maxInputSize)
		}
		if err := m.validateValue(input.Data); err != nil {
			return fmt.Errorf("input %d validation failed: %w", i, err)
		}
	}
	return nil
}

func (m *SizeLimitMiddleware) validateResultSize(result interface{}) error {
	size, err := estimateSize(result)
	if err != nil {
		return fmt.Errorf("failed to estimate result size: %w", err)
	}
	if m.maxResultSize > 0 && size > m.maxResultSize {
		return fmt.Errorf("result size %d bytes exceeds limit %d bytes", size, m.maxResultSize)
	}
	return m.validateValue(result)
}

func (m *SizeLimitMiddleware) validateValue(value interface{}) error {
	switch v := value.(type) {
	case string:
		if m.maxStringLength > 0 && len(v) > m.maxStringLength {
			return fmt.Errorf("string length %d exceeds limit %d", len(v), m.maxStringLength)
		}
	case []interface{}:
		if m.maxArrayLength > 0 && len(v) > m.maxArrayLength {
			return fmt.Errorf("array length %d exceeds limit %d", len(v), m.maxArrayLength)
		}
		for i, elem := range v {
			if err := m.validateValue(elem); err != nil {
				return fmt.Errorf("array element %d: %w", i, err)
			}
		}
	case map[string]interface{}:
		for key, val := range v {
			if err := m.validateValue(val); err != nil {
				return fmt.Errorf("map key %s: %w", key, err)
			}
		}
	}
	return nil
}

// estimateSize estimates the size of a value in bytes using JSON
// marshaling as a rough approximation.
func estimateSize(value interface{}) (int64, error) {
	if value == nil {
		return 0, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// ValidateWorkflowSize validates workflow-level size limits (node count,
// connection count, and total definition size) before execution starts.
func ValidateWorkflowSize(nodes []types.Node, connections []types.Connection, config SizeLimitConfig) error {
	if config.MaxNodeCount > 0 && len(nodes) > config.MaxNodeCount {
		return fmt.Errorf("workflow has %d nodes, exceeds limit of %d", len(nodes), config.MaxNodeCount)
	}
	if config.MaxEdgeCount > 0 && len(connections) > config.MaxEdgeCount {
		return fmt.Errorf("workflow has %d connections, exceeds limit of %d", len(connections), config.MaxEdgeCount)
	}

	if config.MaxWorkflowSize > 0 {
		type workflow struct {
			Nodes       []types.Node       `json:"nodes"`
			Connections []types.Connection `json:"connections"`
		}
		data, err := json.Marshal(workflow{Nodes: nodes, Connections: connections})
		if err != nil {
			return fmt.Errorf("failed to marshal workflow for size check: %w", err)
		}
		if size := int64(len(data)); size > config.MaxWorkflowSize {
			return fmt.Errorf("workflow size %d bytes exceeds limit %d bytes", size, config.MaxWorkflowSize)
		}
	}

	return nil
}
