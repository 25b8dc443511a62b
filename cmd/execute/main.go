// Package main runs a single buyback attempt against a seeded in-memory
// market and prints the outcome. Useful for validating a config before
// deploying the keeper.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/executor"
	"buyback-engine/internal/market/stub"
	"buyback-engine/internal/storage/memory"
)

func main() {
	configPath := flag.String("config", os.Getenv("BUYBACK_CONFIG"), "Path to buyback config JSON")
	balance := flag.String("balance", "1000000000000000000000", "Treasury balance in wei")
	reserveBase := flag.String("reserve-base", "500000000000000000000000", "Pool base reserve in wei")
	reserveToken := flag.String("reserve-token", "250000000000000000000000000", "Pool token reserve in wei")
	volume := flag.String("volume", "0", "24h volume in wei")
	oraclePrice := flag.String("oracle-price", "", "Oracle reference price, 1e18-scaled (omit to skip the deviation check)")
	flag.Parse()

	logger := log.New(os.Stderr, "[execute] ", log.LstdFlags)

	if *configPath == "" {
		logger.Fatal("--config is required")
	}
	cfg, err := domain.LoadConfigFile(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	paper := stub.New(stub.Options{
		Balance:      mustBig(logger, "balance", *balance),
		ReserveBase:  mustBig(logger, "reserve-base", *reserveBase),
		ReserveToken: mustBig(logger, "reserve-token", *reserveToken),
		Volume24h:    mustBig(logger, "volume", *volume),
	})

	opts := executor.Options{
		Config:   cfg,
		Treasury: paper,
		Pool:     paper,
		Router:   paper,
		Records:  memory.NewExecutionRecordStore(),
		Logger:   logger,
		Executor: "execute-cli",
	}
	if *oraclePrice != "" {
		paper.SetOraclePrice(mustBig(logger, "oracle-price", *oraclePrice))
		opts.Oracle = paper
	}

	ctx := context.Background()
	engine, err := executor.New(ctx, opts)
	if err != nil {
		logger.Fatalf("Create engine: %v", err)
	}

	res, err := engine.ExecuteBuyback(ctx, time.Now().UTC())
	if err != nil {
		logger.Fatalf("Attempt error: %v", err)
	}

	printResult(res, paper.SinkBalance(cfg.Sink))

	if res.Action == executor.ActionFailed {
		os.Exit(1)
	}
}

// printResult writes the attempt outcome as JSON on stdout.
func printResult(res *executor.Result, sinkBalance *big.Int) {
	out := map[string]interface{}{
		"action": res.Action,
	}
	if res.SkipReason != "" {
		out["skip_reason"] = res.SkipReason
	}
	if res.Record != nil {
		out["execution_id"] = res.Record.ExecutionID
		out["amount_in"] = res.Record.AmountIn.String()
		out["amount_out"] = res.Record.AmountOut.String()
		out["price_per_token"] = res.Record.PricePerToken.String()
		out["outcome"] = res.Record.Outcome
		if res.Record.Reason != "" {
			out["reason"] = res.Record.Reason
		}
	}
	out["sink_balance"] = sinkBalance.String()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
	}
}

func mustBig(logger *log.Logger, name, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		logger.Fatalf("--%s must be a decimal integer, got %q", name, s)
	}
	return v
}
