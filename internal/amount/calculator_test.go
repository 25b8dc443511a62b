package amount

import (
	"math/big"
	"testing"

	"buyback-engine/internal/domain"
)

func fixedConfig(fixed, maxExec, maxDaily int64) domain.BuybackConfig {
	return domain.BuybackConfig{
		Mode:               domain.ModeFixed,
		FixedAmount:        big.NewInt(fixed),
		MaxExecutionAmount: big.NewInt(maxExec),
		MaxDailyAmount:     big.NewInt(maxDaily),
	}
}

func percentConfig(pct int, maxExec, maxDaily int64) domain.BuybackConfig {
	return domain.BuybackConfig{
		Mode:               domain.ModePercentage,
		PercentOfBalance:   pct,
		MaxExecutionAmount: big.NewInt(maxExec),
		MaxDailyAmount:     big.NewInt(maxDaily),
	}
}

func TestCompute_FixedMode(t *testing.T) {
	c := New(fixedConfig(100, 500, 1000))

	got := c.Compute(big.NewInt(10000), big.NewInt(0))
	if got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected fixed 100, got %s", got)
	}
}

func TestCompute_PercentageTruncates(t *testing.T) {
	c := New(percentConfig(10, 500, 1000))

	// 10% of 15 truncates to 1.
	got := c.Compute(big.NewInt(15), big.NewInt(0))
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("expected 1 (truncated), got %s", got)
	}
}

func TestCompute_PerAttemptCapClamps(t *testing.T) {
	c := New(fixedConfig(1000, 300, 10000))

	got := c.Compute(big.NewInt(100000), big.NewInt(0))
	if got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("expected per-attempt cap 300, got %s", got)
	}
}

func TestCompute_DailyHeadroomClamps(t *testing.T) {
	c := New(fixedConfig(500, 500, 1000))

	// 800 already spent in the window leaves 200 headroom.
	got := c.Compute(big.NewInt(100000), big.NewInt(800))
	if got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("expected daily headroom 200, got %s", got)
	}
}

func TestCompute_ExhaustedHeadroomIsZero(t *testing.T) {
	c := New(fixedConfig(500, 500, 1000))

	if got := c.Compute(big.NewInt(100000), big.NewInt(1000)); got.Sign() != 0 {
		t.Errorf("expected zero at the daily cap, got %s", got)
	}

	// Overspend beyond the cap must clamp to zero, never go negative.
	if got := c.Compute(big.NewInt(100000), big.NewInt(5000)); got.Sign() != 0 {
		t.Errorf("expected zero past the daily cap, got %s", got)
	}
}

// Compute never exceeds min(maxExecutionAmount, maxDailyAmount - rollingSpend)
// for any combination of balance and spend.
func TestCompute_NeverExceedsBounds(t *testing.T) {
	cfgs := []domain.BuybackConfig{
		fixedConfig(700, 300, 1000),
		fixedConfig(100, 300, 1000),
		percentConfig(50, 300, 1000),
		percentConfig(100, 250, 400),
	}
	balances := []int64{0, 1, 99, 1000, 123456789}
	spends := []int64{0, 100, 999, 1000, 2000}

	for _, cfg := range cfgs {
		c := New(cfg)
		for _, bal := range balances {
			for _, spent := range spends {
				got := c.Compute(big.NewInt(bal), big.NewInt(spent))

				if got.Cmp(cfg.MaxExecutionAmount) > 0 {
					t.Errorf("amount %s exceeds per-attempt cap %s", got, cfg.MaxExecutionAmount)
				}
				headroom := new(big.Int).Sub(cfg.MaxDailyAmount, big.NewInt(spent))
				if headroom.Sign() < 0 {
					headroom.SetInt64(0)
				}
				if got.Cmp(headroom) > 0 {
					t.Errorf("amount %s exceeds daily headroom %s", got, headroom)
				}
				if got.Sign() < 0 {
					t.Errorf("amount must never be negative, got %s", got)
				}
			}
		}
	}
}
