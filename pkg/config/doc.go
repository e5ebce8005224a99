// Package config provides configuration management for the Thaiyyal workflow engine.
//
// # Overview
//
// The config package centralizes all configuration for the workflow engine,
// providing a pluggable, replaceable configuration system with validation,
// defaults, and environment variable support.
//
// # Features
//
//   - Centralized configuration: Single source of truth
//   - Type-safe: Strongly typed configuration options
//   - Validation: Validate rejects negative limits, timeouts and sizes
//   - Defaults: Sensible default values
//   - Presets: Development, Production and Testing start from Default
//   - Environment variables: FromEnv overrides the scheduler/journal fields
//   - Copying: Clone returns a deep copy
//
// Configuration is not loaded from files and is not reloaded at runtime.
//
// # Configuration Structure
//
// The configuration is organized into logical sections:
//
//   - Execution limits: Timeouts and iteration limits
//   - HTTP settings: HTTP request configuration
//   - Security: Network access control and restrictions
//   - Cache settings: Cache TTL and size limits
//   - Resource limits: Memory and size constraints
//   - Retry settings: Retry and backoff configuration
//
// # Basic Usage
//
//import "github.com/flowcraft/workflow-core/pkg/config"
//
//// Create default configuration
//cfg := config.Default()
//
//// Or start from Default with the WORKFLOW_* environment overrides applied
//cfg = config.FromEnv()
//
//// Use in the scheduler
//sched := scheduler.New(reg, store, hub, *cfg)
//
// # Custom Configuration
//
//cfg := config.Default()
//cfg.MaxExecutionTime = 10 * time.Minute
//cfg.HTTPTimeout = 30 * time.Second
//cfg.MaxNodes = 1000
//if err := cfg.Validate(); err != nil {
//    // handle the invalid value
//}
//
// # Default Configuration
//
// The default configuration provides secure, production-ready defaults:
//
//MaxExecutionTime: 5 minutes
//MaxNodeExecutionTime: 30 seconds
//MaxIterations: 10000
//HTTPTimeout: 30 seconds
//MaxHTTPRedirects: 10
//MaxResponseSize: 10MB
//AllowHTTP: false (HTTPS only)
//AllowPrivateIPs: false
//AllowLocalhost: false
//AllowLinkLocal: false
//AllowCloudMetadata: false
//DefaultCacheTTL: 1 hour
//MaxCacheSize: 1000
//MaxNodes: 1000
//MaxEdges: 5000
//DefaultMaxAttempts: 3
//DefaultBackoff: 1 second
//
// # Thread Safety
//
// Configuration objects are safe for concurrent read access.
package config
