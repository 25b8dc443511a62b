// Package trigger evaluates whether the configured execution condition
// currently holds. Evaluation is read-only: it never changes the outcome
// of a later call, so any number of observers may poll it concurrently.
package trigger

import (
	"context"
	"sync"
	"time"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/ledger"
	"buyback-engine/internal/market"
)

// Evaluator checks the configured trigger against ledger and market state.
type Evaluator struct {
	cfg    domain.BuybackConfig
	ledger *ledger.UsageLedger
	pool   market.Pool

	// Volume-threshold observations are memoized so continuous polling
	// does not hammer the market query path. The cache affects query
	// cost only, never the eventual answer.
	volMu        sync.Mutex
	volCheckedAt int64
	volResult    bool
}

// New creates a trigger evaluator.
func New(cfg domain.BuybackConfig, led *ledger.UsageLedger, pool market.Pool) *Evaluator {
	return &Evaluator{cfg: cfg, ledger: led, pool: pool}
}

// CanExecute reports whether the trigger condition holds at now.
func (e *Evaluator) CanExecute(ctx context.Context, now time.Time) (bool, error) {
	switch e.cfg.Trigger {
	case domain.TriggerInterval:
		return e.intervalMet(now), nil
	case domain.TriggerVolumeThreshold:
		return e.volumeMet(ctx, now)
	case domain.TriggerPriceThreshold:
		return e.priceMet(ctx)
	case domain.TriggerLiquidityDepth:
		return e.liquidityMet(ctx)
	default:
		return false, nil
	}
}

// intervalMet: true iff the interval elapsed since the last execution.
// Before the first execution the configured start time gates instead.
func (e *Evaluator) intervalMet(now time.Time) bool {
	last := e.ledger.LastExecution()
	if last == 0 {
		return now.Unix() >= e.cfg.StartTime
	}
	return now.Unix()-last >= e.cfg.IntervalSec
}

// volumeMet: true iff trailing-window volume reached the threshold.
// Re-queried at most once per check interval.
func (e *Evaluator) volumeMet(ctx context.Context, now time.Time) (bool, error) {
	e.volMu.Lock()
	defer e.volMu.Unlock()

	if e.volCheckedAt != 0 && now.Unix()-e.volCheckedAt < e.cfg.CheckIntervalSec {
		return e.volResult, nil
	}

	window := time.Duration(e.cfg.VolumeWindowSec) * time.Second
	vol, err := e.pool.TrailingVolume(ctx, window)
	if err != nil {
		return false, err
	}

	e.volCheckedAt = now.Unix()
	e.volResult = vol.Cmp(e.cfg.VolumeThreshold) >= 0
	return e.volResult, nil
}

// priceMet: true iff the current price crossed a configured bound. An
// absent bound leaves that side unconstrained.
func (e *Evaluator) priceMet(ctx context.Context) (bool, error) {
	price, err := e.pool.SpotPrice(ctx)
	if err != nil {
		return false, err
	}

	if e.cfg.PriceBelow != nil && price.Cmp(e.cfg.PriceBelow) < 0 {
		return true, nil
	}
	if e.cfg.PriceAbove != nil && price.Cmp(e.cfg.PriceAbove) > 0 {
		return true, nil
	}
	return false, nil
}

// liquidityMet: true iff the revenue-asset reserve reached the floor.
func (e *Evaluator) liquidityMet(ctx context.Context) (bool, error) {
	reserves, err := e.pool.Reserves(ctx)
	if err != nil {
		return false, err
	}
	return reserves.Base.Cmp(e.cfg.MinLiquidity) >= 0, nil
}

// NextExecutionTime returns the earliest time the trigger can fire again.
// Only meaningful for INTERVAL mode; condition-based modes return ok=false.
func (e *Evaluator) NextExecutionTime() (int64, bool) {
	if e.cfg.Trigger != domain.TriggerInterval {
		return 0, false
	}
	last := e.ledger.LastExecution()
	if last == 0 {
		return e.cfg.StartTime, true
	}
	return last + e.cfg.IntervalSec, true
}
