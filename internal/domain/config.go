package domain

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ExecutionMode determines how the per-attempt amount is derived.
type ExecutionMode string

// Execution mode constants
const (
	ModeFixed      ExecutionMode = "FIXED"
	ModePercentage ExecutionMode = "PERCENTAGE"
)

// TriggerType determines which condition gates an execution attempt.
type TriggerType string

// Trigger type constants
const (
	TriggerInterval        TriggerType = "INTERVAL"
	TriggerVolumeThreshold TriggerType = "VOLUME_THRESHOLD"
	TriggerPriceThreshold  TriggerType = "PRICE_THRESHOLD"
	TriggerLiquidityDepth  TriggerType = "LIQUIDITY_DEPTH"
)

// BuybackConfig is the immutable configuration of one engine instance.
// It is validated once at construction and never mutated afterwards;
// there is no setter API anywhere in the engine surface. Amounts are
// native-chain integers (wei scale), percent fields are integers 0-100.
type BuybackConfig struct {
	// Identities (hex addresses)
	RevenueSource string // treasury holding the native balance
	TargetToken   string // asset being bought
	Router        string // AMM router performing the swap
	Sink          string // destination for purchased tokens (burn/treasury/lock)

	// Amount policy
	Mode             ExecutionMode
	FixedAmount      *big.Int // FIXED mode
	PercentOfBalance int      // PERCENTAGE mode, 0-100

	// Trigger
	Trigger          TriggerType
	StartTime        int64    // unix seconds; INTERVAL mode gate for the first attempt
	IntervalSec      int64    // INTERVAL mode
	VolumeThreshold  *big.Int // VOLUME_THRESHOLD mode
	VolumeWindowSec  int64    // trailing window for volume observation
	CheckIntervalSec int64    // minimum seconds between volume re-checks
	PriceBelow       *big.Int // PRICE_THRESHOLD mode, optional lower bound (1e18-scaled)
	PriceAbove       *big.Int // PRICE_THRESHOLD mode, optional upper bound (1e18-scaled)
	MinLiquidity     *big.Int // LIQUIDITY_DEPTH mode, revenue-asset reserve floor

	// Safety bounds
	MinOutputPercent       int      // slippage tolerance, 0-100
	MaxExecutionAmount     *big.Int // per-attempt cap
	MaxDailyAmount         *big.Int // rolling 24h cap
	MinLiquidityMultiplier int      // reserve must cover amount * multiplier

	// Circuit breaker
	BreakerEnabled         bool
	MaxConsecutiveFailures int
	FailureCooldownSec     int64
	DeviationCooldownSec   int64
	MaxPriceDeviationPct   int
	// TallySwapFailuresOnly restricts the consecutive-failure tally to
	// swap-step failures (slippage, timeout, transfer). When false, guard
	// rejections and market-read failures count as well.
	TallySwapFailuresOnly bool

	// SwapTimeout bounds the atomic pull/swap step. Zero means no timeout.
	SwapTimeout time.Duration
}

// Validation errors
var (
	ErrInvalidConfig = errors.New("invalid buyback config")
)

// Validate checks every numeric field at construction time.
func (c *BuybackConfig) Validate() error {
	if c.RevenueSource == "" {
		return fmt.Errorf("%w: revenue source is required", ErrInvalidConfig)
	}
	if c.TargetToken == "" {
		return fmt.Errorf("%w: target token is required", ErrInvalidConfig)
	}
	if c.Router == "" {
		return fmt.Errorf("%w: router is required", ErrInvalidConfig)
	}
	if c.Sink == "" {
		return fmt.Errorf("%w: sink is required", ErrInvalidConfig)
	}

	switch c.Mode {
	case ModeFixed:
		if c.FixedAmount == nil || c.FixedAmount.Sign() <= 0 {
			return fmt.Errorf("%w: FIXED mode requires positive fixed amount", ErrInvalidConfig)
		}
	case ModePercentage:
		if c.PercentOfBalance <= 0 || c.PercentOfBalance > 100 {
			return fmt.Errorf("%w: percent of balance must be in (0,100], got %d", ErrInvalidConfig, c.PercentOfBalance)
		}
	default:
		return fmt.Errorf("%w: unknown execution mode %q", ErrInvalidConfig, c.Mode)
	}

	switch c.Trigger {
	case TriggerInterval:
		if c.IntervalSec <= 0 {
			return fmt.Errorf("%w: INTERVAL trigger requires positive interval", ErrInvalidConfig)
		}
	case TriggerVolumeThreshold:
		if c.VolumeThreshold == nil || c.VolumeThreshold.Sign() <= 0 {
			return fmt.Errorf("%w: VOLUME_THRESHOLD trigger requires positive threshold", ErrInvalidConfig)
		}
		if c.VolumeWindowSec <= 0 {
			return fmt.Errorf("%w: VOLUME_THRESHOLD trigger requires positive window", ErrInvalidConfig)
		}
		if c.CheckIntervalSec < 0 {
			return fmt.Errorf("%w: check interval must be non-negative", ErrInvalidConfig)
		}
	case TriggerPriceThreshold:
		if c.PriceBelow == nil && c.PriceAbove == nil {
			return fmt.Errorf("%w: PRICE_THRESHOLD trigger requires at least one bound", ErrInvalidConfig)
		}
		if c.PriceBelow != nil && c.PriceBelow.Sign() <= 0 {
			return fmt.Errorf("%w: price-below bound must be positive", ErrInvalidConfig)
		}
		if c.PriceAbove != nil && c.PriceAbove.Sign() <= 0 {
			return fmt.Errorf("%w: price-above bound must be positive", ErrInvalidConfig)
		}
	case TriggerLiquidityDepth:
		if c.MinLiquidity == nil || c.MinLiquidity.Sign() <= 0 {
			return fmt.Errorf("%w: LIQUIDITY_DEPTH trigger requires positive liquidity floor", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown trigger type %q", ErrInvalidConfig, c.Trigger)
	}

	if c.MinOutputPercent < 0 || c.MinOutputPercent > 100 {
		return fmt.Errorf("%w: min output percent must be in [0,100], got %d", ErrInvalidConfig, c.MinOutputPercent)
	}
	if c.MaxExecutionAmount == nil || c.MaxExecutionAmount.Sign() <= 0 {
		return fmt.Errorf("%w: max execution amount must be positive", ErrInvalidConfig)
	}
	if c.MaxDailyAmount == nil || c.MaxDailyAmount.Sign() <= 0 {
		return fmt.Errorf("%w: max daily amount must be positive", ErrInvalidConfig)
	}
	if c.MinLiquidityMultiplier < 0 {
		return fmt.Errorf("%w: min liquidity multiplier must be non-negative", ErrInvalidConfig)
	}

	if c.BreakerEnabled {
		if c.MaxConsecutiveFailures <= 0 {
			return fmt.Errorf("%w: max consecutive failures must be positive", ErrInvalidConfig)
		}
		if c.FailureCooldownSec <= 0 {
			return fmt.Errorf("%w: failure cooldown must be positive", ErrInvalidConfig)
		}
		if c.DeviationCooldownSec <= 0 {
			return fmt.Errorf("%w: deviation cooldown must be positive", ErrInvalidConfig)
		}
		if c.MaxPriceDeviationPct < 0 || c.MaxPriceDeviationPct > 100 {
			return fmt.Errorf("%w: max price deviation must be in [0,100], got %d", ErrInvalidConfig, c.MaxPriceDeviationPct)
		}
	}

	if c.SwapTimeout < 0 {
		return fmt.Errorf("%w: swap timeout must be non-negative", ErrInvalidConfig)
	}

	return nil
}

// Clone returns a deep copy. Constructors store a clone so callers cannot
// mutate big.Int fields after the engine is built.
func (c BuybackConfig) Clone() BuybackConfig {
	out := c
	out.FixedAmount = cloneBig(c.FixedAmount)
	out.VolumeThreshold = cloneBig(c.VolumeThreshold)
	out.PriceBelow = cloneBig(c.PriceBelow)
	out.PriceAbove = cloneBig(c.PriceAbove)
	out.MinLiquidity = cloneBig(c.MinLiquidity)
	out.MaxExecutionAmount = cloneBig(c.MaxExecutionAmount)
	out.MaxDailyAmount = cloneBig(c.MaxDailyAmount)
	return out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
