// Package main generates a Markdown summary of the execution history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"buyback-engine/internal/reporting"
	"buyback-engine/internal/storage"
	chstore "buyback-engine/internal/storage/clickhouse"
	pgstore "buyback-engine/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (reads the archive instead of postgres)")
	outputDir := flag.String("output-dir", "output", "Output directory for the report")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn or --clickhouse-dsn is required")
	}

	ctx := context.Background()

	var records storage.ExecutionRecordStore
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Connect to clickhouse: %v", err)
		}
		defer conn.Close()
		records = chstore.NewExecutionRecordStore(conn)
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Connect to postgres: %v", err)
		}
		defer pool.Close()
		records = pgstore.NewExecutionRecordStore(pool)
	}

	report, err := reporting.NewGenerator(records).Generate(ctx)
	if err != nil {
		logger.Fatalf("Generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("Create output directory: %v", err)
	}

	path := filepath.Join(*outputDir, "BUYBACK_REPORT.md")
	if err := os.WriteFile(path, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		logger.Fatalf("Write report: %v", err)
	}

	fmt.Printf("Report written to %s (%d executed, %d failed)\n", path, report.Successes, report.Failures)
}
