// Package amount computes the candidate execution amount and clamps it
// against the per-attempt and rolling daily caps.
package amount

import (
	"math/big"

	"buyback-engine/internal/domain"
)

// Calculator derives the executable amount for one attempt. All math is
// integer with truncating division.
type Calculator struct {
	cfg domain.BuybackConfig
}

// New creates a calculator.
func New(cfg domain.BuybackConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute returns min(candidate, per-attempt cap, remaining daily headroom).
// A zero (or negative headroom) result means nothing is executable this
// cycle; that is a legitimate skip, not an error.
func (c *Calculator) Compute(balance, rollingSpend *big.Int) *big.Int {
	candidate := c.candidate(balance)

	amount := minBig(candidate, c.cfg.MaxExecutionAmount)

	headroom := new(big.Int).Sub(c.cfg.MaxDailyAmount, rollingSpend)
	if headroom.Sign() < 0 {
		headroom.SetInt64(0)
	}
	amount = minBig(amount, headroom)

	return amount
}

// candidate returns the pre-clamp amount for the configured mode.
func (c *Calculator) candidate(balance *big.Int) *big.Int {
	switch c.cfg.Mode {
	case domain.ModeFixed:
		return new(big.Int).Set(c.cfg.FixedAmount)
	case domain.ModePercentage:
		v := new(big.Int).Mul(balance, big.NewInt(int64(c.cfg.PercentOfBalance)))
		return v.Div(v, big.NewInt(100))
	default:
		return new(big.Int)
	}
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
