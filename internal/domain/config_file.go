package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"
)

// configFile is the JSON wire form of BuybackConfig. Amounts are decimal
// strings so arbitrarily large wei values survive the round trip, and the
// swap timeout uses Go duration syntax ("30s").
type configFile struct {
	RevenueSource string `json:"revenue_source"`
	TargetToken   string `json:"target_token"`
	Router        string `json:"router"`
	Sink          string `json:"sink"`

	Mode             string `json:"mode"`
	FixedAmount      string `json:"fixed_amount,omitempty"`
	PercentOfBalance int    `json:"percent_of_balance,omitempty"`

	Trigger          string `json:"trigger"`
	StartTime        int64  `json:"start_time,omitempty"`
	IntervalSec      int64  `json:"interval_sec,omitempty"`
	VolumeThreshold  string `json:"volume_threshold,omitempty"`
	VolumeWindowSec  int64  `json:"volume_window_sec,omitempty"`
	CheckIntervalSec int64  `json:"check_interval_sec,omitempty"`
	PriceBelow       string `json:"price_below,omitempty"`
	PriceAbove       string `json:"price_above,omitempty"`
	MinLiquidity     string `json:"min_liquidity,omitempty"`

	MinOutputPercent       int    `json:"min_output_percent"`
	MaxExecutionAmount     string `json:"max_execution_amount"`
	MaxDailyAmount         string `json:"max_daily_amount"`
	MinLiquidityMultiplier int    `json:"min_liquidity_multiplier"`

	BreakerEnabled         bool  `json:"breaker_enabled"`
	MaxConsecutiveFailures int   `json:"max_consecutive_failures,omitempty"`
	FailureCooldownSec     int64 `json:"failure_cooldown_sec,omitempty"`
	DeviationCooldownSec   int64 `json:"deviation_cooldown_sec,omitempty"`
	MaxPriceDeviationPct   int   `json:"max_price_deviation_pct,omitempty"`
	TallySwapFailuresOnly  bool  `json:"tally_swap_failures_only,omitempty"`

	SwapTimeout string `json:"swap_timeout,omitempty"`
}

// LoadConfigFile reads and validates a BuybackConfig from a JSON file.
func LoadConfigFile(path string) (BuybackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BuybackConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a BuybackConfig from JSON.
func ParseConfig(data []byte) (BuybackConfig, error) {
	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return BuybackConfig{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := BuybackConfig{
		RevenueSource:          cf.RevenueSource,
		TargetToken:            cf.TargetToken,
		Router:                 cf.Router,
		Sink:                   cf.Sink,
		Mode:                   ExecutionMode(cf.Mode),
		PercentOfBalance:       cf.PercentOfBalance,
		Trigger:                TriggerType(cf.Trigger),
		StartTime:              cf.StartTime,
		IntervalSec:            cf.IntervalSec,
		VolumeWindowSec:        cf.VolumeWindowSec,
		CheckIntervalSec:       cf.CheckIntervalSec,
		MinOutputPercent:       cf.MinOutputPercent,
		MinLiquidityMultiplier: cf.MinLiquidityMultiplier,
		BreakerEnabled:         cf.BreakerEnabled,
		MaxConsecutiveFailures: cf.MaxConsecutiveFailures,
		FailureCooldownSec:     cf.FailureCooldownSec,
		DeviationCooldownSec:   cf.DeviationCooldownSec,
		MaxPriceDeviationPct:   cf.MaxPriceDeviationPct,
		TallySwapFailuresOnly:  cf.TallySwapFailuresOnly,
	}

	fields := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"fixed_amount", cf.FixedAmount, &cfg.FixedAmount},
		{"volume_threshold", cf.VolumeThreshold, &cfg.VolumeThreshold},
		{"price_below", cf.PriceBelow, &cfg.PriceBelow},
		{"price_above", cf.PriceAbove, &cfg.PriceAbove},
		{"min_liquidity", cf.MinLiquidity, &cfg.MinLiquidity},
		{"max_execution_amount", cf.MaxExecutionAmount, &cfg.MaxExecutionAmount},
		{"max_daily_amount", cf.MaxDailyAmount, &cfg.MaxDailyAmount},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, ok := new(big.Int).SetString(f.raw, 10)
		if !ok {
			return BuybackConfig{}, fmt.Errorf("%w: %s is not a decimal integer: %q", ErrInvalidConfig, f.name, f.raw)
		}
		*f.dst = v
	}

	if cf.SwapTimeout != "" {
		d, err := time.ParseDuration(cf.SwapTimeout)
		if err != nil {
			return BuybackConfig{}, fmt.Errorf("%w: swap_timeout: %v", ErrInvalidConfig, err)
		}
		cfg.SwapTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return BuybackConfig{}, err
	}
	return cfg, nil
}
