// Package graph provides DAG (Directed Acyclic Graph) operations for
// workflow execution: build-time validation, topological sorting, cycle
// detection, and the readiness queries the scheduler (C4) drives its loop
// with (§4.1).
package graph

import (
	"fmt"
	"sort"

	"github.com/flowcraft/workflow-core/pkg/types"
)

// Graph represents a validated workflow graph: nodes plus the connections
// between their named inputs/outputs.
type Graph struct {
	nodes       []types.Node
	connections []types.Connection
	index       map[string]int // node ID -> position in nodes
	depth       map[string]int // node ID -> longest path length from a root
}

// New creates a Graph from nodes and connections without validation. Use
// Build to additionally validate and compute depths; New is kept for
// callers (and tests) that already trust their input.
func New(nodes []types.Node, connections []types.Connection) *Graph {
	g := &Graph{nodes: nodes, connections: connections}
	g.reindex()
	return g
}

// Build validates a WorkflowDefinition's graph and returns a ready-to-use
// Graph: duplicate node IDs, connections referencing unknown nodes, and
// cycles are all rejected (§3 invariants, §4.1).
func Build(def types.WorkflowDefinition) (*Graph, error) {
	seen := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if seen[n.ID] {
			return nil, &types.DefinitionError{Kind: "duplicate_id", NodeID: n.ID, Reason: "node ID appears more than once"}
		}
		seen[n.ID] = true
	}
	for _, c := range def.Connections {
		if !seen[c.SourceNodeID] {
			return nil, &types.DefinitionError{Kind: "unknown_reference", NodeID: c.SourceNodeID, Reason: "connection source is not a defined node"}
		}
		if !seen[c.TargetNodeID] {
			return nil, &types.DefinitionError{Kind: "unknown_reference", NodeID: c.TargetNodeID, Reason: "connection target is not a defined node"}
		}
	}

	g := New(def.Nodes, def.Connections)
	if _, err := g.TopologicalSort(); err != nil {
		return nil, &types.DefinitionError{Kind: "cycle", Reason: err.Error()}
	}
	g.computeDepths()
	return g, nil
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.nodes))
	for i := range g.nodes {
		g.index[g.nodes[i].ID] = i
	}
}

// computeDepths assigns each node the length of its longest path from a
// root (a node with no inbound connections), processing in topological
// order so every predecessor's depth is already final.
func (g *Graph) computeDepths() {
	order, err := g.TopologicalSort()
	if err != nil {
		return
	}
	g.depth = make(map[string]int, len(g.nodes))
	for _, id := range order {
		maxPred := -1
		for _, c := range g.GetInputConnections(id) {
			if d, ok := g.depth[c.SourceNodeID]; ok && d > maxPred {
				maxPred = d
			}
		}
		g.depth[id] = maxPred + 1
	}
}

// Depth returns a node's longest-path distance from a root, or 0 if depths
// have not been computed (i.e. the Graph was built with New, not Build).
func (g *Graph) Depth(nodeID string) int {
	return g.depth[nodeID]
}

// TopologicalSort performs topological sorting on the workflow graph using
// Kahn's algorithm. This determines a valid execution order for nodes in a
// directed acyclic graph (DAG).
//
// Returns:
//   - []string: Ordered list of node IDs for sequential execution
//   - error: If the workflow contains cycles (circular dependencies)
//
// Algorithm:
//  1. Calculate in-degree (number of incoming connections) for each node
//  2. Start with nodes that have no dependencies (in-degree = 0)
//  3. Process nodes and reduce in-degree of their neighbors
//  4. If all nodes processed, we have a valid execution order
//  5. If nodes remain, there's a cycle in the graph
//
// Optimizations:
//   - Pre-allocated slices with exact capacity to minimize allocations
//   - Ring buffer for queue to avoid expensive slice operations
//   - Insertion sort for small orphan node sets (faster than generic sort for small n)
//   - Single pass connection processing to build both adjacency list and in-degree
func (g *Graph) TopologicalSort() ([]string, error) {
	numNodes := len(g.nodes)

	// Early return for empty graph
	if numNodes == 0 {
		return []string{}, nil
	}

	// Pre-allocate with exact capacity to avoid reallocation
	inDegree := make(map[string]int, numNodes)
	adjacency := make(map[string][]string, numNodes)

	// Initialize in-degree for all nodes to zero
	for i := range g.nodes {
		inDegree[g.nodes[i].ID] = 0
	}

	// Build the graph structure in a single pass
	for i := range g.connections {
		c := &g.connections[i]
		adjacency[c.SourceNodeID] = append(adjacency[c.SourceNodeID], c.TargetNodeID)
		inDegree[c.TargetNodeID]++
	}

	// Find all nodes with no dependencies (in-degree = 0)
	orphanNodes := make([]string, 0, numNodes)
	for nodeID, degree := range inDegree {
		if degree == 0 {
			orphanNodes = append(orphanNodes, nodeID)
		}
	}

	// Sort orphan nodes by ID to ensure deterministic execution order.
	// Insertion sort is typically faster than a generic sort for n < ~20,
	// which covers the vast majority of workflow root sets.
	insertionSort(orphanNodes)

	// Use a ring buffer for the queue to avoid expensive slice operations
	queue := make([]string, numNodes)
	queueStart := 0
	queueEnd := len(orphanNodes)
	copy(queue, orphanNodes)

	order := make([]string, 0, numNodes)

	for queueStart < queueEnd {
		current := queue[queueStart]
		queueStart++
		order = append(order, current)

		neighbors := adjacency[current]
		for i := range neighbors {
			neighbor := neighbors[i]
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue[queueEnd] = neighbor
				queueEnd++
			}
		}
	}

	if len(order) != numNodes {
		return nil, fmt.Errorf("workflow contains cycles (circular dependencies)")
	}

	return order, nil
}

// insertionSort sorts a slice of strings in place. Faster than the
// standard library sort for small slices (n < ~20).
func insertionSort(arr []string) {
	for i := 1; i < len(arr); i++ {
		key := arr[i]
		j := i - 1
		for j >= 0 && arr[j] > key {
			arr[j+1] = arr[j]
			j--
		}
		arr[j+1] = key
	}
}

// GetNode retrieves a node by its ID.
func (g *Graph) GetNode(nodeID string) *types.Node {
	if i, ok := g.index[nodeID]; ok {
		return &g.nodes[i]
	}
	return nil
}

// Nodes returns all nodes in the graph.
func (g *Graph) Nodes() []types.Node {
	return g.nodes
}

// GetInputConnections returns all connections where the given node is the target.
func (g *Graph) GetInputConnections(nodeID string) []types.Connection {
	var out []types.Connection
	for _, c := range g.connections {
		if c.TargetNodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// GetOutputConnections returns all connections where the given node is the source.
func (g *Graph) GetOutputConnections(nodeID string) []types.Connection {
	var out []types.Connection
	for _, c := range g.connections {
		if c.SourceNodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// GetTerminalNodes returns all nodes that have no outgoing connections.
func (g *Graph) GetTerminalNodes() []string {
	terminal := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		terminal[n.ID] = true
	}
	for _, c := range g.connections {
		terminal[c.SourceNodeID] = false
	}
	result := make([]string, 0)
	for _, n := range g.nodes {
		if terminal[n.ID] {
			result = append(result, n.ID)
		}
	}
	return result
}

// Roots returns all nodes with no inbound connections — the nodes a
// scheduler run starts from.
func (g *Graph) Roots() []string {
	hasInbound := make(map[string]bool, len(g.nodes))
	for _, c := range g.connections {
		hasInbound[c.TargetNodeID] = true
	}
	var out []string
	for _, n := range g.nodes {
		if !hasInbound[n.ID] {
			out = append(out, n.ID)
		}
	}
	insertionSort(out)
	return out
}

// Ready returns the IDs of nodes not yet in completed whose entire set of
// inbound connections come from nodes already in completed, ordered
// deterministically by (depth, node ID) as required for reproducible
// scheduling (§4.1). A node with no inbound connections is ready as soon
// as it has not itself completed.
func (g *Graph) Ready(completed map[string]bool) []string {
	var candidates []string
	for _, n := range g.nodes {
		if completed[n.ID] {
			continue
		}
		ready := true
		for _, c := range g.GetInputConnections(n.ID) {
			if !completed[c.SourceNodeID] {
				ready = false
				break
			}
		}
		if ready {
			candidates = append(candidates, n.ID)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		di, dj := g.depth[candidates[i]], g.depth[candidates[j]]
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})
	return candidates
}

// Successors returns the target node IDs reachable from nodeID's named
// output. An empty outputName matches every connection leaving nodeID
// regardless of which output produced it.
func (g *Graph) Successors(nodeID string, outputName string) []string {
	var out []string
	for _, c := range g.GetOutputConnections(nodeID) {
		if outputName == "" || c.SourceOutput == outputName {
			out = append(out, c.TargetNodeID)
		}
	}
	return out
}

// DetectCycles detects if the graph contains any cycles.
func (g *Graph) DetectCycles() error {
	_, err := g.TopologicalSort()
	return err
}
