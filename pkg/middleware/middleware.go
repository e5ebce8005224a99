// Package middleware provides a Chain of Responsibility around node
// execution (C2), the way the teacher's calculator runtime layered
// logging/metrics/validation around its own node dispatch. The scheduler
// (C4) already owns retry, timeout, and cancellation policy (§4.4/§5), so
// this chain is reserved for cross-cutting concerns that sit outside that
// policy: observability, rate limiting, and resource-limit enforcement.
package middleware

import (
	"context"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// Handler executes a node and returns its result. Both executor.Registry
// and middleware share this signature so a Chain can wrap either.
type Handler func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult

// Middleware defines the interface for execution middleware. Middleware
// can inspect, modify, or short-circuit node execution.
type Middleware interface {
	// Process handles the node execution, optionally calling next() to
	// continue the chain. A middleware can pre-process before calling
	// next, post-process the result after next returns, or short-circuit
	// by returning without calling next.
	Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult

	// Name returns the middleware name for logging and debugging.
	Name() string
}

// Chain is an ordered chain of middleware, executed in the order added.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain.
func NewChain() *Chain {
	return &Chain{middlewares: make([]Middleware, 0)}
}

// Use adds middleware to the chain, returning the chain for fluent calls.
func (c *Chain) Use(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Execute runs the middleware chain followed by the final handler.
//
// Execution flow with 3 middleware:
//
//	M1.Process(pre) -> M2.Process(pre) -> M3.Process(pre) -> handler() ->
//	M3.Process(post) -> M2.Process(post) -> M1.Process(post) -> return
func (c *Chain) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node, handler Handler) types.NodeResult {
	if len(c.middlewares) == 0 {
		return handler(ctx, ec, node)
	}

	index := 0
	var next Handler
	next = func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		if index >= len(c.middlewares) {
			return handler(ctx, ec, node)
		}
		m := c.middlewares[index]
		index++
		return m.Process(ctx, ec, node, next)
	}

	return next(ctx, ec, node)
}

// Len returns the number of middleware in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Middlewares returns a copy of every middleware in the chain.
func (c *Chain) Middlewares() []Middleware {
	result := make([]Middleware, len(c.middlewares))
	copy(result, c.middlewares)
	return result
}
