// Package middleware implements a Chain of Responsibility around node
// execution (C2), wrapping a registry dispatch with cross-cutting
// concerns that sit outside the scheduler's own retry/timeout policy:
// logging, metrics, rate limiting, and resource-limit enforcement.
//
// A Chain wraps an executor.Registry.Execute call (or any Handler):
//
//	chain := middleware.NewChain().
//		Use(middleware.NewLoggingMiddleware(logger)).
//		Use(middleware.NewMetricsMiddleware(collector)).
//		Use(middleware.NewRateLimitMiddleware())
//
//	result := chain.Execute(ctx, ec, node, registry.Execute)
//
// Middleware execute in the order added on the way in, and unwind in
// reverse on the way out:
//
//	Logging.pre -> Metrics.pre -> RateLimit.pre -> registry.Execute ->
//	RateLimit.post -> Metrics.post -> Logging.post
//
// ValidateWorkflowSize is not a Chain member: it checks node/connection
// counts once before a workflow starts running, not per node.
package middleware
