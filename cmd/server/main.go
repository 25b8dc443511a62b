// Package main runs the long-lived buyback keeper:
// - Scheduler (cron): periodic execution attempts against the engine
// - Market feed (optional): WebSocket market-state subscription
// - HTTP: /health, /status (JSON), /metrics (Prometheus)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/executor"
	"buyback-engine/internal/market"
	"buyback-engine/internal/market/stub"
	"buyback-engine/internal/observability"
	"buyback-engine/internal/storage"
	chstore "buyback-engine/internal/storage/clickhouse"
	"buyback-engine/internal/storage/memory"
	"buyback-engine/internal/storage/migrations"
	pgstore "buyback-engine/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("BUYBACK_CONFIG"), "Path to buyback config JSON")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional analytics archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("MARKET_WS_ENDPOINT"), "Market-state WebSocket endpoint (omit to use the seeded paper market)")
	pair := flag.String("pair", os.Getenv("MARKET_PAIR"), "Trading pair identifier for the market feed")
	cronSpec := flag.String("cron", envOr("ATTEMPT_CRON", "@every 1m"), "Cron spec for execution attempts")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/status/metrics")
	executorID := flag.String("executor", envOr("EXECUTOR_ID", hostname()), "Executor identity stamped on records")

	// Paper market seeds, used when no feed endpoint is configured
	paperBalance := flag.String("paper-balance", "1000000000000000000000", "Seeded treasury balance in wei")
	paperReserveBase := flag.String("paper-reserve-base", "500000000000000000000000", "Seeded pool base reserve in wei")
	paperReserveToken := flag.String("paper-reserve-token", "250000000000000000000000000", "Seeded pool token reserve in wei")
	paperVolume := flag.String("paper-volume", "0", "Seeded 24h volume in wei")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *configPath == "" {
		logger.Fatal("--config is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if *wsEndpoint != "" && *pair == "" {
		logger.Fatal("--pair is required when --ws-endpoint is set")
	}

	cfg, err := domain.LoadConfigFile(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	logger.Printf("Loaded config: mode=%s trigger=%s sink=%s", cfg.Mode, cfg.Trigger, cfg.Sink)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	records, archive, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Paper market carries the treasury and router in all modes. The pool
	// and oracle come from the feed when one is configured.
	paper := stub.New(stub.Options{
		Balance:      mustBig(logger, "paper-balance", *paperBalance),
		ReserveBase:  mustBig(logger, "paper-reserve-base", *paperReserveBase),
		ReserveToken: mustBig(logger, "paper-reserve-token", *paperReserveToken),
		Volume24h:    mustBig(logger, "paper-volume", *paperVolume),
	})

	var (
		pool   market.Pool   = paper
		oracle market.Oracle = paper
	)
	if *wsEndpoint != "" {
		feed, err := market.NewWSFeed(ctx, *wsEndpoint, *pair, nil)
		if err != nil {
			logger.Fatalf("Connect market feed: %v", err)
		}
		defer feed.Close()
		pool = feed
		oracle = feed
		logger.Printf("Market feed connected: %s pair=%s", *wsEndpoint, *pair)
	}

	engine, err := executor.New(ctx, executor.Options{
		Config:   cfg,
		Treasury: paper,
		Pool:     pool,
		Router:   paper,
		Oracle:   oracle,
		Records:  records,
		Archive:  archive,
		Logger:   log.New(os.Stdout, "[executor] ", log.LstdFlags),
		Executor: *executorID,
	})
	if err != nil {
		logger.Fatalf("Create engine: %v", err)
	}

	// Scheduler: overlapping runs are skipped rather than queued, the
	// engine serializes attempts anyway.
	sched := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
	))
	_, err = sched.AddFunc(*cronSpec, func() {
		runAttempt(ctx, engine, logger)
	})
	if err != nil {
		logger.Fatalf("Invalid cron spec %q: %v", *cronSpec, err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go startHTTPServer(*httpAddr, engine, logger)
	go trackUptime(ctx, engine)

	sched.Start()
	logger.Printf("Scheduler started (spec: %s)", *cronSpec)

	sig := <-sigCh
	logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	cancel()

	// Let an in-flight attempt finish before exiting.
	stopCtx := sched.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Println("Graceful shutdown timed out after 30s, forcing exit")
	}

	logger.Println("Shutdown complete")
}

// runAttempt executes one cycle and logs the outcome.
func runAttempt(ctx context.Context, engine *executor.Engine, logger *log.Logger) {
	now := time.Now().UTC()

	res, err := engine.ExecuteBuyback(ctx, now)
	if err != nil {
		logger.Printf("Attempt error: %v", err)
		return
	}

	switch res.Action {
	case executor.ActionExecuted:
		logger.Printf("Executed buyback id=%d in=%s out=%s",
			res.Record.ExecutionID, res.Record.AmountIn, res.Record.AmountOut)
	case executor.ActionFailed:
		logger.Printf("Attempt failed id=%d reason=%s", res.Record.ExecutionID, res.Record.Reason)
	case executor.ActionSkipped:
		// Routine; only visible through metrics.
	}

	active, _ := engine.BreakerStatus(now)
	observability.SetBreakerActive(active)
	spend, _ := new(big.Float).SetInt(engine.RollingSpend(now)).Float64()
	observability.DefaultMetrics.RollingSpendWei.Set(spend)
}

// createStores creates the record store and the optional analytics archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.ExecutionRecordStore, storage.ExecutionRecordStore, func(), error) {
	if useMemory {
		return memory.NewExecutionRecordStore(), nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	records := pgstore.NewExecutionRecordStore(pool)

	var archive storage.ExecutionRecordStore
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		archive = chstore.NewExecutionRecordStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return records, archive, cleanup, nil
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func startHTTPServer(addr string, engine *executor.Engine, logger *log.Logger) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(engine.Snapshot(time.Now().UTC()))
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// trackUptime keeps the uptime counter and breaker gauge current.
func trackUptime(ctx context.Context, engine *executor.Engine) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.DefaultMetrics.UptimeSeconds.Add(15)
			active, _ := engine.BreakerStatus(time.Now().UTC())
			observability.SetBreakerActive(active)
		}
	}
}

func mustBig(logger *log.Logger, name, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		logger.Fatalf("--%s must be a decimal integer, got %q", name, s)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "keeper"
	}
	return h
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
