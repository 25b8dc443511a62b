package executor

import (
	"context"
	"math/big"
	"time"
)

// The read side of the engine. Everything here is lock-free with respect
// to the execution lock: concurrent reads observe a consistent pre- or
// post-execution state, never a partial one.

// CheckExecutionConditions reports whether the trigger condition holds
// at now, without mutating anything.
func (e *Engine) CheckExecutionConditions(ctx context.Context, now time.Time) (bool, error) {
	return e.trigger.CanExecute(ctx, now)
}

// NextExecutionTime returns the earliest moment the trigger can fire
// again. ok is false for condition-based triggers, which have no
// predictable next time.
func (e *Engine) NextExecutionTime() (int64, bool) {
	return e.trigger.NextExecutionTime()
}

// TotalBuybackAmount returns the all-time revenue asset spent, in wei.
func (e *Engine) TotalBuybackAmount() *big.Int {
	return e.ledger.TotalSpent()
}

// TotalTokensAcquired returns the all-time target tokens acquired, in wei.
func (e *Engine) TotalTokensAcquired() *big.Int {
	return e.ledger.TotalBought()
}

// ExecutionCount returns the number of successful executions.
func (e *Engine) ExecutionCount() int64 {
	return e.ledger.Count()
}

// LastExecutionTime returns the unix timestamp of the last successful
// execution, 0 if none.
func (e *Engine) LastExecutionTime() int64 {
	return e.ledger.LastExecution()
}

// RollingSpend returns the spend inside the trailing daily-cap window
// ending at now.
func (e *Engine) RollingSpend(now time.Time) *big.Int {
	return e.ledger.RollingSpend(now)
}

// BreakerStatus returns whether the breaker is open at now and the
// cooldown expiry (unix seconds, 0 when never tripped).
func (e *Engine) BreakerStatus(now time.Time) (bool, int64) {
	return e.breaker.Status(now)
}

// Status is a point-in-time snapshot of engine state, served by the
// status endpoint.
type Status struct {
	TotalBuybackAmount  string `json:"total_buyback_amount"`
	TotalTokensAcquired string `json:"total_tokens_acquired"`
	ExecutionCount      int64  `json:"execution_count"`
	LastExecutionTime   int64  `json:"last_execution_time"`
	RollingSpend        string `json:"rolling_spend"`
	NextExecutionTime   int64  `json:"next_execution_time,omitempty"`
	BreakerActive       bool   `json:"breaker_active"`
	BreakerCooldownEnd  int64  `json:"breaker_cooldown_end,omitempty"`
}

// Snapshot assembles a Status at now.
func (e *Engine) Snapshot(now time.Time) Status {
	active, until := e.breaker.Status(now)
	st := Status{
		TotalBuybackAmount:  e.ledger.TotalSpent().String(),
		TotalTokensAcquired: e.ledger.TotalBought().String(),
		ExecutionCount:      e.ledger.Count(),
		LastExecutionTime:   e.ledger.LastExecution(),
		RollingSpend:        e.ledger.RollingSpend(now).String(),
		BreakerActive:       active,
		BreakerCooldownEnd:  until,
	}
	if next, ok := e.trigger.NextExecutionTime(); ok {
		st.NextExecutionTime = next
	}
	return st
}
