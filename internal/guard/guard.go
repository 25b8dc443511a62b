// Package guard aggregates the pre-swap safety checks: liquidity depth,
// oracle price deviation, and the slippage bound handed to the router.
package guard

import (
	"context"
	"math/big"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/market"
)

// Guard validates a candidate amount against current market state.
type Guard struct {
	cfg    domain.BuybackConfig
	pool   market.Pool
	oracle market.Oracle // nil when no reference oracle is configured
}

// New creates a safety guard. oracle may be nil; the deviation check is
// skipped without one.
func New(cfg domain.BuybackConfig, pool market.Pool, oracle market.Oracle) *Guard {
	return &Guard{cfg: cfg, pool: pool, oracle: oracle}
}

// Validate checks amount against the liquidity and deviation guards and
// returns the minTokensOut bound for the swap call. A non-empty reason
// means the attempt must be rejected; err is reserved for market-state
// query failures.
//
// minTokensOut is computed here but enforced post-swap by the router:
// expectedTokens * minOutputPercent / 100.
func (g *Guard) Validate(ctx context.Context, amount *big.Int) (minTokensOut *big.Int, reason string, err error) {
	reserves, err := g.pool.Reserves(ctx)
	if err != nil {
		return nil, "", err
	}

	// Liquidity guard: reserve must cover amount * multiplier.
	required := new(big.Int).Mul(amount, big.NewInt(int64(g.cfg.MinLiquidityMultiplier)))
	if reserves.Base.Cmp(required) < 0 {
		return nil, domain.ReasonInsufficientLiquidity, nil
	}

	// Price-deviation guard, only with the breaker enabled and an oracle
	// reference available.
	if g.cfg.BreakerEnabled && g.oracle != nil {
		oraclePrice, err := g.oracle.Price(ctx)
		if err != nil {
			return nil, "", err
		}
		if oraclePrice.Sign() > 0 {
			poolPrice := market.SpotPriceFromReserves(reserves)
			if deviationExceeded(poolPrice, oraclePrice, g.cfg.MaxPriceDeviationPct) {
				return nil, domain.ReasonPriceDeviationExceeded, nil
			}
		}
	}

	expected := market.AmountOut(amount, reserves.Base, reserves.Token)
	minOut := new(big.Int).Mul(expected, big.NewInt(int64(g.cfg.MinOutputPercent)))
	minOut.Div(minOut, big.NewInt(100))

	return minOut, "", nil
}

// deviationExceeded: |pool - oracle| * 100 / oracle > maxPct.
func deviationExceeded(poolPrice, oraclePrice *big.Int, maxPct int) bool {
	diff := new(big.Int).Sub(poolPrice, oraclePrice)
	diff.Abs(diff)
	diff.Mul(diff, big.NewInt(100))
	deviation := diff.Div(diff, oraclePrice)
	return deviation.Cmp(big.NewInt(int64(maxPct))) > 0
}
