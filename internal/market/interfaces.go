// Package market defines the external collaborator surface of the engine:
// the revenue treasury, the AMM pool/router, and the reference oracle.
// The engine only ever talks to these interfaces; live transports and the
// on-chain ledger stay outside the core.
package market

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrSlippage is returned by Router.Swap when the output would fall below
// the minimum. The swap is atomic: on this error nothing has moved.
var ErrSlippage = errors.New("swap output below minimum")

// PoolReserves is a snapshot of the trading pool.
type PoolReserves struct {
	Base  *big.Int // revenue asset side (BNB)
	Token *big.Int // target token side
}

// Treasury custodies the revenue balance. Withdraw and Deposit are the two
// halves of the engine's compensating-rollback unit: a Withdraw that is not
// followed by a successful swap must be reversed with a Deposit of the same
// amount. The backing ledger is assumed to apply each call atomically.
type Treasury interface {
	// Balance returns the current revenue balance.
	Balance(ctx context.Context) (*big.Int, error)

	// Withdraw pulls amount under the engine's control.
	Withdraw(ctx context.Context, amount *big.Int) error

	// Deposit returns amount to the treasury (compensating refund).
	Deposit(ctx context.Context, amount *big.Int) error
}

// Pool provides read-only market state for triggers and safety guards.
// Implementations must be safe for concurrent use; monitoring layers poll
// these methods without coordination with the execution path.
type Pool interface {
	// Reserves returns the current pool reserves.
	Reserves(ctx context.Context) (*PoolReserves, error)

	// SpotPrice returns the pool-implied price of the target token in the
	// revenue asset, scaled by 1e18.
	SpotPrice(ctx context.Context) (*big.Int, error)

	// TrailingVolume returns trade volume over the trailing window,
	// denominated in the revenue asset.
	TrailingVolume(ctx context.Context, window time.Duration) (*big.Int, error)
}

// Router performs the swap. Swap is all-or-nothing: output is delivered
// directly to recipient, and on any error (including ErrSlippage) no value
// has moved in either direction.
type Router interface {
	Swap(ctx context.Context, amountIn, minTokensOut *big.Int, recipient string) (*big.Int, error)
}

// Oracle supplies an external reference price of the target token in the
// revenue asset, scaled by 1e18. Used only for the deviation guard.
type Oracle interface {
	Price(ctx context.Context) (*big.Int, error)
}
