// Command workflowd runs the workflow execution core as a standalone
// HTTP process: it wires the node registry, graph scheduler, execution
// journal, and live broadcast hub together, then exposes them through
// the inbound webhook transport and the outward journal/broadcast API
// (§6). The authoring UI, workflow CRUD, and credential storage are
// deliberately not part of this binary (§1 Non-goals) — webhook.New takes
// a Resolver so whatever owns that surface can be plugged in; this binary
// wires emptyResolver, which resolves no path.
//
// Usage:
//
//	workflowd [flags]
//
// Flags:
//
//	-addr string
//	    Server address (default ":8080")
//	-database-url string
//	    Postgres connection string; when unset the journal runs in-memory
//	-webhook-prefix string
//	    Path prefix the inbound webhook transport is mounted under (default "/hooks")
//	-redis-addr string
//	    Redis address for the global rate limiter; empty runs an in-process limiter
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flowcraft/workflow-core/pkg/api"
	"github.com/flowcraft/workflow-core/pkg/broadcast"
	"github.com/flowcraft/workflow-core/pkg/config"
	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/health"
	"github.com/flowcraft/workflow-core/pkg/journal"
	"github.com/flowcraft/workflow-core/pkg/logging"
	"github.com/flowcraft/workflow-core/pkg/middleware"
	"github.com/flowcraft/workflow-core/pkg/nodes"
	"github.com/flowcraft/workflow-core/pkg/scheduler"
	"github.com/flowcraft/workflow-core/pkg/telemetry"
	"github.com/flowcraft/workflow-core/pkg/types"
	"github.com/flowcraft/workflow-core/pkg/webhook"
)

func main() {
	addr := flag.String("addr", ":8080", "Server address")
	databaseURL := flag.String("database-url", "", "Postgres connection string (empty: in-memory journal)")
	webhookPrefix := flag.String("webhook-prefix", "/hooks", "Path prefix for the inbound webhook transport")
	redisAddr := flag.String("redis-addr", "", "Redis address for the global rate limiter (empty: in-process limiter)")
	flag.Parse()

	logger := logging.New(logging.DefaultConfig())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	hub := broadcast.NewHub()

	reg := executor.NewRegistry()
	nodes.RegisterAll(reg)

	cfg := *config.FromEnv()

	metrics := middleware.NewInMemoryMetricsCollector()
	rateLimitConfig := middleware.DefaultRateLimitConfig()
	if *redisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: *redisAddr})
		defer redisClient.Close()
		rateLimitConfig.GlobalLimiter = middleware.NewRedisRateLimiter(
			redisClient, "workflowd:ratelimit:global:", int64(rateLimitConfig.GlobalRPS), time.Second,
		)
	}

	chain := middleware.NewChain().
		Use(middleware.NewLoggingMiddleware(logger)).
		Use(middleware.NewMetricsMiddleware(metrics)).
		Use(middleware.NewRateLimitMiddlewareWithConfig(rateLimitConfig)).
		Use(middleware.NewSizeLimitMiddlewareWithConfig(middleware.SizeLimitConfigFromTypes(cfg))).
		Use(middleware.NewResourceValidationMiddleware())

	sched := scheduler.New(reg, store, hub, cfg, scheduler.WithLogger(logger), scheduler.WithMiddleware(chain))

	telemetryProvider, err := telemetry.NewProvider(ctx, telemetry.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create telemetry provider: %v\n", err)
		os.Exit(1)
	}
	defer telemetryProvider.Shutdown(context.Background())

	observer := telemetry.NewBroadcastObserver(telemetryProvider, hub)
	go observer.Run(ctx)

	healthChecker := health.NewChecker("workflow-core", "0.1.0")
	healthChecker.RegisterCheck("journal", func(ctx context.Context) error {
		_, err := store.Stats(ctx, "")
		return err
	}, 5*time.Second, true)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthChecker.HTTPHandler())
	router.HandleFunc("/health/live", healthChecker.LivenessHandler())
	router.HandleFunc("/health/ready", healthChecker.ReadinessHandler())
	router.Handle("/metrics", promhttp.Handler())

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	api.New(store, hub, logger).Register(apiRouter)

	router.PathPrefix(*webhookPrefix).Handler(
		http.StripPrefix(*webhookPrefix, webhook.New(sched, emptyResolver{}, logger)),
	)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(router)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      corsHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.WithField("address", *addr).Info("starting workflowd")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
}

// buildStore opens a PostgresStore when databaseURL is set, otherwise an
// in-memory journal.Store suitable for development and testing.
func buildStore(ctx context.Context, databaseURL string) (journal.Store, func(), error) {
	if databaseURL == "" {
		return journal.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return journal.NewPostgresStore(pool), pool.Close, nil
}

// emptyResolver is the default webhook.Resolver wired when no CRUD
// collaborator is plugged in: every path 404s. A real deployment injects
// its own Resolver backed by the workflows table (§6 persistence layout).
type emptyResolver struct{}

func (emptyResolver) Resolve(method, path string) (types.Workflow, bool, error) {
	return types.Workflow{}, false, nil
}
