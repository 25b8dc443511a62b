package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Outcome classifies a recorded execution attempt.
type Outcome string

// Outcome constants
const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// Failure and no-op reason codes. TRIGGER_NOT_MET and NO_EXECUTABLE_AMOUNT
// are benign skip outcomes and never appear in recorded attempts.
const (
	ReasonTriggerNotMet          = "TRIGGER_NOT_MET"
	ReasonNoExecutableAmount     = "NO_EXECUTABLE_AMOUNT"
	ReasonInsufficientLiquidity  = "INSUFFICIENT_LIQUIDITY"
	ReasonPriceDeviationExceeded = "PRICE_DEVIATION_EXCEEDED"
	ReasonSlippageExceeded       = "SLIPPAGE_EXCEEDED"
	ReasonCircuitBreakerActive   = "CIRCUIT_BREAKER_ACTIVE"
	ReasonExecutionTimeout       = "EXECUTION_TIMEOUT"
	ReasonTransferFailed         = "TRANSFER_FAILED"
	ReasonMarketUnavailable      = "MARKET_UNAVAILABLE"
)

// ExecutionRecord is one entry of the append-only audit trail. Records are
// created at the end of every recorded attempt and never mutated or deleted.
type ExecutionRecord struct {
	ExecutionID int64    // monotonically increasing per instance
	ExecutedAt  int64    // unix seconds
	AmountIn    *big.Int // revenue asset spent (zero if failed)
	AmountOut   *big.Int // target tokens acquired (zero if failed)
	// PricePerToken is amount_out / amount_in, the tokens acquired per unit
	// of revenue asset. Zero when the attempt failed.
	PricePerToken decimal.Decimal
	Outcome       Outcome
	Reason        string // failure reason code, empty on success
	Executor      string // identity that submitted the attempt
}

// NewExecutionRecord builds a record with the derived price filled in.
func NewExecutionRecord(id, executedAt int64, amountIn, amountOut *big.Int, outcome Outcome, reason, executor string) *ExecutionRecord {
	if amountIn == nil {
		amountIn = new(big.Int)
	}
	if amountOut == nil {
		amountOut = new(big.Int)
	}

	var price decimal.Decimal
	if amountIn.Sign() > 0 && amountOut.Sign() > 0 {
		price = decimal.NewFromBigInt(amountOut, 0).Div(decimal.NewFromBigInt(amountIn, 0))
	}

	return &ExecutionRecord{
		ExecutionID:   id,
		ExecutedAt:    executedAt,
		AmountIn:      new(big.Int).Set(amountIn),
		AmountOut:     new(big.Int).Set(amountOut),
		PricePerToken: price,
		Outcome:       outcome,
		Reason:        reason,
		Executor:      executor,
	}
}
