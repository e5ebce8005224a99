package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	// Allow checks if a request is allowed based on rate limits. Returns
	// true if allowed, false if rate limit exceeded.
	Allow(key string) bool

	// Reset clears all rate limit state.
	Reset()
}

// RateLimitMiddleware enforces rate limits on node execution, globally
// and per node kind, using the token bucket algorithm for smooth limiting.
type RateLimitMiddleware struct {
	globalLimiter RateLimiter
	kindLimiters  map[string]RateLimiter
	mu            sync.RWMutex

	enableGlobal   bool
	enablePerKind  bool
	rejectedCount  int64
	rejectedCountMu sync.Mutex
}

// RateLimitConfig configures rate limiting behavior.
type RateLimitConfig struct {
	// GlobalRPS is the global rate limit (requests/sec across all nodes).
	GlobalRPS float64

	// KindRPS holds per-node-kind rate limits.
	KindRPS map[string]float64

	EnableGlobal  bool
	EnablePerKind bool

	// GlobalLimiter, when set, replaces the default in-process TokenBucket
	// for the global limit — e.g. a RedisRateLimiter shared across
	// multiple workflowd processes.
	GlobalLimiter RateLimiter
}

// DefaultRateLimitConfig returns default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GlobalRPS:     100,
		EnableGlobal:  true,
		EnablePerKind: false,
		KindRPS:       make(map[string]float64),
	}
}

// NewRateLimitMiddleware creates a new rate limiting middleware with default config.
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return NewRateLimitMiddlewareWithConfig(DefaultRateLimitConfig())
}

// NewRateLimitMiddlewareWithConfig creates a new rate limiting middleware with custom config.
func NewRateLimitMiddlewareWithConfig(config RateLimitConfig) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		kindLimiters:  make(map[string]RateLimiter),
		enableGlobal:  config.EnableGlobal,
		enablePerKind: config.EnablePerKind,
	}

	if config.EnableGlobal {
		switch {
		case config.GlobalLimiter != nil:
			m.globalLimiter = config.GlobalLimiter
		case config.GlobalRPS > 0:
			m.globalLimiter = NewTokenBucket(config.GlobalRPS, int64(config.GlobalRPS))
		}
	}

	if config.EnablePerKind {
		for kind, rps := range config.KindRPS {
			if rps > 0 {
				m.kindLimiters[kind] = NewTokenBucket(rps, int64(rps))
			}
		}
	}

	return m
}

// Process enforces rate limits before node execution.
func (m *RateLimitMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	if m.enableGlobal && m.globalLimiter != nil {
		if !m.globalLimiter.Allow("global") {
			m.incrementRejected()
			return types.Fail(types.ErrorKindExternal, "global rate limit exceeded", nil)
		}
	}

	if m.enablePerKind {
		m.mu.RLock()
		limiter, exists := m.kindLimiters[node.Kind]
		m.mu.RUnlock()

		if exists && !limiter.Allow(node.Kind) {
			m.incrementRejected()
			return types.Fail(types.ErrorKindExternal, fmt.Sprintf("rate limit exceeded for node kind: %s", node.Kind), nil)
		}
	}

	return next(ctx, ec, node)
}

// Name returns the middleware name.
func (m *RateLimitMiddleware) Name() string {
	return "RateLimit"
}

// GetRejectedCount returns the number of rejected requests.
func (m *RateLimitMiddleware) GetRejectedCount() int64 {
	m.rejectedCountMu.Lock()
	defer m.rejectedCountMu.Unlock()
	return m.rejectedCount
}

func (m *RateLimitMiddleware) incrementRejected() {
	m.rejectedCountMu.Lock()
	m.rejectedCount++
	m.rejectedCountMu.Unlock()
}

// TokenBucket implements the token bucket algorithm for rate limiting.
type TokenBucket struct {
	rate       float64
	capacity   int64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter.
func NewTokenBucket(rate float64, capacity int64) *TokenBucket {
	return &TokenBucket{
		rate:       rate,
		capacity:   capacity,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed based on available tokens.
func (tb *TokenBucket) Allow(key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.tokens+elapsed*tb.rate, float64(tb.capacity))
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Reset clears the token bucket state.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = float64(tb.capacity)
	tb.lastRefill = time.Now()
}
