// Package graph provides graph algorithms and utilities for workflow execution.
//
// # Overview
//
// The graph package implements essential graph algorithms used by the workflow
// engine for dependency resolution, cycle detection, and execution ordering.
// It provides a foundation for DAG-based workflow execution.
//
// # Key Algorithms
//
// Topological Sort:
//   - Implements Kahn's algorithm for topological ordering
//   - Ensures nodes execute in dependency order
//   - Detects cycles in the workflow graph
//   - Root nodes are ordered by ID; later nodes follow connection order
//
// Cycle Detection:
//   - DetectCycles runs the topological sort and returns its error
//   - The error does not name the nodes that form the cycle
//
// Scheduling Queries:
//   - Depth: longest-path distance from a root (computed by Build)
//   - Roots: nodes with no inbound connections, ordered by ID
//   - Ready: nodes whose every predecessor has completed, ordered by
//     (depth, node ID)
//   - Successors: targets reached from one named output of a node
//
// # Graph Representation
//
// Workflows are represented as directed graphs where:
//
//   - Nodes are types.Node values
//   - Edges are types.Connection values (source output → target input)
//   - Direction indicates data flow (source → target)
//   - Multiple edges can connect the same nodes
//
// # Topological Sort Usage
//
//	import "github.com/flowcraft/workflow-core/pkg/graph"
//
//	// Validate a definition and compute depths
//	g, err := graph.Build(def) // def is a types.WorkflowDefinition
//	if err != nil {
//	    // *types.DefinitionError: duplicate ID, unknown reference, or cycle
//	}
//
//	// Execute in sorted order
//	sorted, _ := g.TopologicalSort()
//	for _, nodeID := range sorted {
//	    execute(nodeID)
//	}
//
// # Readiness
//
//	// Nodes returned together by Ready have no dependency on each other
//	completed := map[string]bool{}
//	for ready := g.Ready(completed); len(ready) > 0; ready = g.Ready(completed) {
//	    for _, nodeID := range ready {
//	        execute(nodeID)
//	        completed[nodeID] = true
//	    }
//	}
//
// # Performance Characteristics
//
//   - Topological sort: O(V + E) where V=nodes, E=edges
//   - Cycle detection: the same pass as the topological sort
//   - GetInputConnections/GetOutputConnections scan every connection: O(E)
//
// # Error Handling
//
// Build returns a *types.DefinitionError for:
//
//   - Duplicate node IDs
//   - Connections that reference a node not in the definition
//   - Cycles: Circular dependencies detected
//
// An empty graph sorts to an empty order without error, and a node
// without connections is not an error.
//
// # Algorithm Details
//
// Kahn's Algorithm (Topological Sort):
//  1. Calculate in-degree for all nodes
//  2. Add zero in-degree nodes to queue
//  3. Process queue: remove node, decrement neighbor in-degrees
//  4. Add newly zero in-degree nodes to queue
//  5. If processed count != node count, cycle exists
//
// # Use Cases
//
//   - Workflow execution ordering
//   - Dependency resolution
//   - Build systems
//   - Task scheduling
//   - Data pipeline orchestration
//
// # Design Principles
//
//   - Efficiency: Optimized for large graphs
//   - Clarity: Clear, well-documented algorithms
//   - Correctness: Extensively tested edge cases
//   - Flexibility: Queries cover both static ordering and step-by-step readiness
//
// # Thread Safety
//
// A Graph is not modified after New or Build returns; its methods only
// read it, so multiple goroutines can query the same graph simultaneously.
package graph
