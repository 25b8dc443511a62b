package guard

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/market"
	"buyback-engine/internal/market/stub"
)

func guardConfig() domain.BuybackConfig {
	return domain.BuybackConfig{
		MinOutputPercent:       95,
		MinLiquidityMultiplier: 20,
		BreakerEnabled:         true,
		MaxPriceDeviationPct:   10,
	}
}

func TestValidate_InsufficientLiquidity(t *testing.T) {
	m := stub.New(stub.Options{
		ReserveBase:  big.NewInt(10), // amount 1 * multiplier 20 requires >= 20
		ReserveToken: big.NewInt(1000),
	})
	g := New(guardConfig(), m, nil)

	minOut, reason, err := g.Validate(context.Background(), big.NewInt(1))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if reason != domain.ReasonInsufficientLiquidity {
		t.Errorf("expected %s, got %q", domain.ReasonInsufficientLiquidity, reason)
	}
	if minOut != nil {
		t.Errorf("rejected amount must not produce a bound, got %s", minOut)
	}
}

func TestValidate_MinTokensOutBound(t *testing.T) {
	m := stub.New(stub.Options{
		ReserveBase:  big.NewInt(100000),
		ReserveToken: big.NewInt(200000),
	})
	g := New(guardConfig(), m, nil)

	minOut, reason, err := g.Validate(context.Background(), big.NewInt(1000))
	if err != nil || reason != "" {
		t.Fatalf("expected clean pass, got reason=%q err=%v", reason, err)
	}

	// expected = AmountOut(1000, 100000, 200000) = 1975; 1975*95/100 = 1876
	expected := market.AmountOut(big.NewInt(1000), big.NewInt(100000), big.NewInt(200000))
	want := new(big.Int).Mul(expected, big.NewInt(95))
	want.Div(want, big.NewInt(100))
	if minOut.Cmp(want) != 0 {
		t.Errorf("expected minTokensOut %s, got %s", want, minOut)
	}
}

func TestValidate_PriceDeviationExceeded(t *testing.T) {
	// Pool price = 100000*1e18/200000 = 5e17. Oracle at 1e18 means the
	// pool deviates by 50%, over the 10% bound.
	m := stub.New(stub.Options{
		ReserveBase:  big.NewInt(100000),
		ReserveToken: big.NewInt(200000),
		OraclePrice:  new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	})
	g := New(guardConfig(), m, m)

	_, reason, err := g.Validate(context.Background(), big.NewInt(100))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if reason != domain.ReasonPriceDeviationExceeded {
		t.Errorf("expected %s, got %q", domain.ReasonPriceDeviationExceeded, reason)
	}
}

func TestValidate_DeviationWithinBound(t *testing.T) {
	// Oracle equals the pool-implied price exactly.
	m := stub.New(stub.Options{
		ReserveBase:  big.NewInt(100000),
		ReserveToken: big.NewInt(200000),
	})
	poolPrice, err := m.SpotPrice(context.Background())
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	m.SetOraclePrice(poolPrice)

	g := New(guardConfig(), m, m)
	_, reason, err := g.Validate(context.Background(), big.NewInt(100))
	if err != nil || reason != "" {
		t.Errorf("expected clean pass, got reason=%q err=%v", reason, err)
	}
}

func TestValidate_DeviationSkippedWithoutOracle(t *testing.T) {
	m := stub.New(stub.Options{
		ReserveBase:  big.NewInt(100000),
		ReserveToken: big.NewInt(200000),
	})

	// No oracle configured: only the liquidity guard applies.
	g := New(guardConfig(), m, nil)
	_, reason, err := g.Validate(context.Background(), big.NewInt(100))
	if err != nil || reason != "" {
		t.Errorf("expected pass without oracle, got reason=%q err=%v", reason, err)
	}
}

func TestValidate_DeviationSkippedWhenBreakerDisabled(t *testing.T) {
	m := stub.New(stub.Options{
		ReserveBase:  big.NewInt(100000),
		ReserveToken: big.NewInt(200000),
		OraclePrice:  new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), // 50% off
	})

	cfg := guardConfig()
	cfg.BreakerEnabled = false
	g := New(cfg, m, m)

	_, reason, err := g.Validate(context.Background(), big.NewInt(100))
	if err != nil || reason != "" {
		t.Errorf("expected pass with breaker disabled, got reason=%q err=%v", reason, err)
	}
}

func TestValidate_MarketErrorPropagates(t *testing.T) {
	m := stub.New(stub.Options{})
	wantErr := errors.New("rpc down")
	m.ReservesErr = wantErr

	g := New(guardConfig(), m, nil)
	_, reason, err := g.Validate(context.Background(), big.NewInt(100))
	if !errors.Is(err, wantErr) {
		t.Errorf("expected market error to propagate, got %v", err)
	}
	if reason != "" {
		t.Errorf("market error must not carry a rejection reason, got %q", reason)
	}
}
