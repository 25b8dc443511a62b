package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report summarizes the execution history.
type Report struct {
	// Metadata
	GeneratedAt time.Time

	// Totals across the whole history
	Totals TotalsSection

	// Outcome breakdown
	Successes int
	Failures  int

	// Failure breakdown (sorted by reason)
	FailureBreakdown []FailureRow

	// Recent executions (most recent last, capped)
	Recent []ExecutionRow
}

// TotalsSection aggregates spend, acquisition and pricing.
type TotalsSection struct {
	TotalSpent    string // wei, decimal string
	TotalAcquired string // wei, decimal string

	// AvgPrice is the volume-weighted average execution price across
	// successful executions: total acquired / total spent, in tokens
	// per unit spent, matching PricePerToken on individual records.
	AvgPrice decimal.Decimal

	FirstExecutionAt int64 // unix seconds, 0 if empty
	LastExecutionAt  int64
}

// FailureRow is one failure reason with its count.
type FailureRow struct {
	Reason string
	Count  int
}

// ExecutionRow is one execution in the recent-activity table.
type ExecutionRow struct {
	ExecutionID   int64
	ExecutedAt    int64
	AmountIn      string
	AmountOut     string
	PricePerToken string
	Outcome       string
	Reason        string
}
