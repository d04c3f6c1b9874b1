package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/config"
	"github.com/alejandrodnm/rotabot/internal/application/engine/live"
	"github.com/alejandrodnm/rotabot/internal/application/ranker"
)

// decimals parses optional decimal strings into their destination and
// collects every failure.
type decimals struct {
	errs []error
}

func (p *decimals) set(dst *decimal.Decimal, key, s string) {
	if s == "" {
		return
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a decimal", key, s))
		return
	}
	if v.IsNegative() {
		p.errs = append(p.errs, fmt.Errorf("%s: %s is negative", key, s))
		return
	}
	*dst = v
}

func (p *decimals) err() error { return errors.Join(p.errs...) }

// engineConfig builds the immutable engine configuration from the file,
// starting from the production defaults.
func engineConfig(cfg *config.Config) (live.Config, error) {
	t := cfg.Trading
	out := live.DefaultConfig()
	out.BaseAsset = t.BaseAsset
	out.FeeAsset = t.FeeAsset
	out.BookDepth = cfg.Exchange.BookDepth

	out.Decision.ForbiddenPairs = make(map[string]bool, len(t.ForbiddenPairs))
	for _, s := range t.ForbiddenPairs {
		out.Decision.ForbiddenPairs[s] = true
	}
	if t.ExtractMaxOrders > 0 {
		out.Decision.ExtractMaxOrders = t.ExtractMaxOrders
	}
	if t.RetryCooldownSeconds > 0 {
		out.RetryCooldown = time.Duration(t.RetryCooldownSeconds) * time.Second
	}
	if t.SettlePollMillis > 0 {
		out.SettlePollInterval = time.Duration(t.SettlePollMillis) * time.Millisecond
	}
	if t.SettleMaxAttempts > 0 {
		out.SettleMaxAttempts = t.SettleMaxAttempts
	}

	var p decimals
	p.set(&out.Pricing.MinHalfProfit, "trading.min_half_profit", t.MinHalfProfit)
	p.set(&out.Pricing.MaxHalfProfit, "trading.max_half_profit", t.MaxHalfProfit)
	p.set(&out.Pricing.MinProfit, "trading.min_profit", t.MinProfit)

	p.set(&out.Decision.MinProfitPercent, "trading.min_profit_percent", t.MinProfitPercent)
	p.set(&out.Decision.IdleCapitalMultiple, "trading.idle_capital_multiple", t.IdleCapitalMultiple)
	p.set(&out.Decision.OrdersPerValue, "trading.orders_per_value", t.OrdersPerValue)
	p.set(&out.Decision.StaleHoldHours, "trading.stale_hold_hours", t.StaleHoldHours)
	p.set(&out.Decision.SplitMinNotional, "trading.split_min_notional", t.SplitMinNotional)
	p.set(&out.Decision.NearMoneyDrop, "trading.near_money_drop", t.NearMoneyDrop)
	p.set(&out.Decision.DiversifyDrop, "trading.diversify_drop", t.DiversifyDrop)
	p.set(&out.Decision.ExtractMaxMargin, "trading.extract_max_margin", t.ExtractMaxMargin)
	p.set(&out.Decision.ExtractMinNotional, "trading.extract_min_notional", t.ExtractMinNotional)
	p.set(&out.Decision.ExtractMaxNotional, "trading.extract_max_notional", t.ExtractMaxNotional)
	p.set(&out.Decision.SplitUnit, "trading.split_unit", t.SplitUnit)
	p.set(&out.Decision.AcquireUnit, "trading.acquire_unit", t.AcquireUnit)
	p.set(&out.Decision.OrderCountUnit, "trading.order_count_unit", t.OrderCountUnit)
	p.set(&out.SplitMarginPercent, "trading.split_margin_percent", t.SplitMarginPercent)

	p.set(&out.AcquireMinVolatility, "trading.acquire.min_volatility", t.Acquire.MinVolatility)
	p.set(&out.AcquireMaxVolatility, "trading.acquire.max_volatility", t.Acquire.MaxVolatility)
	p.set(&out.AcquireMinMarginPercent, "trading.acquire.min_margin_percent", t.Acquire.MinMarginPercent)
	p.set(&out.AcquireMaxDriftPercent, "trading.acquire.max_drift_percent", t.Acquire.MaxDriftPercent)
	p.set(&out.AcquireProfitPercent, "trading.acquire.profit_percent", t.Acquire.ProfitPercent)

	p.set(&out.FeeReserveFloor, "trading.fee_reserve_floor", t.FeeReserveFloor)
	p.set(&out.FeeReserveSpend, "trading.fee_reserve_spend", t.FeeReserveSpend)

	if err := p.err(); err != nil {
		return live.Config{}, fmt.Errorf("engineConfig: %w", err)
	}
	if out.Pricing.MinHalfProfit.GreaterThan(out.Pricing.MaxHalfProfit) {
		return live.Config{}, fmt.Errorf("engineConfig: min_half_profit %s above max_half_profit %s",
			out.Pricing.MinHalfProfit, out.Pricing.MaxHalfProfit)
	}
	if !out.Decision.SplitUnit.IsPositive() {
		return live.Config{}, errors.New("engineConfig: split_unit must be positive")
	}
	return out, nil
}

func rankerConfig(cfg *config.Config) (ranker.Config, error) {
	r := cfg.Ranker
	out := ranker.DefaultConfig()
	out.BaseAsset = cfg.Trading.BaseAsset
	out.BookDepth = cfg.Exchange.BookDepth
	out.Workers = r.Workers
	if r.LookbackDays > 0 {
		out.LookbackDays = r.LookbackDays
	}
	if r.MinDailyCandles > 0 {
		out.MinDailyCandles = r.MinDailyCandles
	}
	if r.MinTrendCandles > 0 {
		out.MinTrendCandles = r.MinTrendCandles
	}
	if r.CooldownMillis > 0 {
		out.Cooldown = time.Duration(r.CooldownMillis) * time.Millisecond
	}

	var p decimals
	p.set(&out.MinQuoteVolume, "ranker.min_quote_volume", r.MinQuoteVolume)
	p.set(&out.DustPrice, "ranker.dust_price", r.DustPrice)
	if err := p.err(); err != nil {
		return ranker.Config{}, fmt.Errorf("rankerConfig: %w", err)
	}
	return out, nil
}

// paperBalances parses the seed balances of the simulated account.
func paperBalances(cfg config.PaperConfig) (decimal.Decimal, map[string]decimal.Decimal, error) {
	var fee decimal.Decimal
	var p decimals
	p.set(&fee, "paper.fee_rate", cfg.FeeRate)
	out := make(map[string]decimal.Decimal, len(cfg.Balances))
	for asset, s := range cfg.Balances {
		var v decimal.Decimal
		p.set(&v, "paper.balances."+asset, s)
		out[asset] = v
	}
	if err := p.err(); err != nil {
		return decimal.Zero, nil, fmt.Errorf("paperBalances: %w", err)
	}
	return fee, out, nil
}
