// Package types provides shared type definitions for the workflow execution core.
//
// # Overview
//
// This package contains the core data structures shared across the module:
// workflow definitions, nodes and connections, execution and node-execution
// records, the value/expression result types, and the resource-limit
// configuration enforced elsewhere (§6). It exists to avoid circular
// dependencies between packages that all need the same vocabulary.
//
// # Key Components
//
// Workflow Structure: Workflow, WorkflowDefinition, Node, Connection
//
// Execution State: WorkflowExecution, NodeExecution, ExecutionLog, NodeResult
//
// Resource Limits: Config (an alias of config.Config) and the DefaultConfig,
// ValidationLimits and DevelopmentConfig presets
//
// # Usage Example
//
//	def := types.WorkflowDefinition{
//	    Nodes: []types.Node{
//	        {ID: "1", Kind: "Set", Parameters: map[string]any{
//	            "values": []any{map[string]any{"name": "value", "value": 42}},
//	        }},
//	        {ID: "2", Kind: "HTTPRequest", Parameters: map[string]any{"url": "{{$node.1.value}}"}},
//	    },
//	    Connections: []types.Connection{
//	        {SourceNodeID: "1", TargetNodeID: "2"},
//	    },
//	}
//
// # Design Principles
//
//   - Minimal dependencies: the only package in the module it imports is config
//   - Kind is a plain string: node behavior is resolved at runtime by the
//     registry (C2), not encoded as a closed enum here
//
// # Thread Safety
//
// Values in this package are not safe for concurrent mutation; callers
// coordinate access (the scheduler owns a run's mutable state behind its
// own mutex).
package types
