// Package stub provides deterministic in-memory market collaborators for
// tests and dry runs.
package stub

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"buyback-engine/internal/market"
)

// ErrInsufficientBalance is returned by Withdraw when the treasury balance
// cannot cover the requested amount.
var ErrInsufficientBalance = errors.New("insufficient treasury balance")

// Market implements Treasury, Pool, Router and Oracle against in-memory
// state. All fields are guarded by one mutex; failure injection is done by
// setting the Err fields.
type Market struct {
	mu sync.Mutex

	// Treasury
	balance *big.Int

	// Pool
	reserveBase  *big.Int
	reserveToken *big.Int
	volume24h    *big.Int

	// Oracle
	oraclePrice *big.Int

	// Swap behavior
	fixedOutput *big.Int // overrides constant-product quote when set
	sinkHolding map[string]*big.Int

	// Failure injection
	BalanceErr  error
	WithdrawErr error
	DepositErr  error
	ReservesErr error
	SwapErr     error
	SwapDelay   time.Duration

	// Counters for atomicity assertions
	Withdrawals int
	Deposits    int
	Swaps       int
}

// Options seeds the stub market state.
type Options struct {
	Balance      *big.Int
	ReserveBase  *big.Int
	ReserveToken *big.Int
	Volume24h    *big.Int
	OraclePrice  *big.Int
	FixedOutput  *big.Int
}

// New creates a stub market. Nil amounts default to zero.
func New(opts Options) *Market {
	return &Market{
		balance:      orZero(opts.Balance),
		reserveBase:  orZero(opts.ReserveBase),
		reserveToken: orZero(opts.ReserveToken),
		volume24h:    orZero(opts.Volume24h),
		oraclePrice:  orZero(opts.OraclePrice),
		fixedOutput:  opts.FixedOutput,
		sinkHolding:  make(map[string]*big.Int),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Balance returns the treasury balance.
func (m *Market) Balance(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	return new(big.Int).Set(m.balance), nil
}

// Withdraw pulls amount from the treasury.
func (m *Market) Withdraw(_ context.Context, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WithdrawErr != nil {
		return m.WithdrawErr
	}
	if m.balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	m.balance.Sub(m.balance, amount)
	m.Withdrawals++
	return nil
}

// Deposit returns amount to the treasury.
func (m *Market) Deposit(_ context.Context, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DepositErr != nil {
		return m.DepositErr
	}
	m.balance.Add(m.balance, amount)
	m.Deposits++
	return nil
}

// Reserves returns the pool reserves.
func (m *Market) Reserves(_ context.Context) (*market.PoolReserves, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReservesErr != nil {
		return nil, m.ReservesErr
	}
	return &market.PoolReserves{
		Base:  new(big.Int).Set(m.reserveBase),
		Token: new(big.Int).Set(m.reserveToken),
	}, nil
}

// SpotPrice returns the pool-implied token price.
func (m *Market) SpotPrice(ctx context.Context) (*big.Int, error) {
	r, err := m.Reserves(ctx)
	if err != nil {
		return nil, err
	}
	return market.SpotPriceFromReserves(r), nil
}

// TrailingVolume returns the seeded 24h volume regardless of window.
func (m *Market) TrailingVolume(_ context.Context, _ time.Duration) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.volume24h), nil
}

// Price returns the oracle reference price.
func (m *Market) Price(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.oraclePrice), nil
}

// Swap performs an atomic constant-product swap delivering output to
// recipient. On any error nothing has moved.
func (m *Market) Swap(ctx context.Context, amountIn, minTokensOut *big.Int, recipient string) (*big.Int, error) {
	if m.SwapDelay > 0 {
		select {
		case <-time.After(m.SwapDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SwapErr != nil {
		return nil, m.SwapErr
	}

	out := m.fixedOutput
	if out == nil {
		out = market.AmountOut(amountIn, m.reserveBase, m.reserveToken)
	}
	if minTokensOut != nil && out.Cmp(minTokensOut) < 0 {
		return nil, market.ErrSlippage
	}

	m.reserveBase.Add(m.reserveBase, amountIn)
	m.reserveToken.Sub(m.reserveToken, out)

	holding := m.sinkHolding[recipient]
	if holding == nil {
		holding = new(big.Int)
		m.sinkHolding[recipient] = holding
	}
	holding.Add(holding, out)

	m.Swaps++
	return new(big.Int).Set(out), nil
}

// SinkBalance returns tokens delivered to an address so far.
func (m *Market) SinkBalance(addr string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	holding := m.sinkHolding[addr]
	if holding == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(holding)
}

// SetOraclePrice updates the oracle reference price.
func (m *Market) SetOraclePrice(p *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oraclePrice = new(big.Int).Set(p)
}

// SetReserves updates the pool reserves.
func (m *Market) SetReserves(base, token *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveBase = new(big.Int).Set(base)
	m.reserveToken = new(big.Int).Set(token)
}

// SetVolume updates the trailing volume observation.
func (m *Market) SetVolume(v *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume24h = new(big.Int).Set(v)
}

// Compile-time interface checks.
var (
	_ market.Treasury = (*Market)(nil)
	_ market.Pool     = (*Market)(nil)
	_ market.Router   = (*Market)(nil)
	_ market.Oracle   = (*Market)(nil)
)
