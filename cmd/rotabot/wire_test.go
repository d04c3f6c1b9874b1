package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rotabot/config"
	"github.com/alejandrodnm/rotabot/internal/application/engine/live"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEngineConfig_EmptyKeepsDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Trading.BaseAsset = "BTC"
	cfg.Exchange.BookDepth = 5

	got, err := engineConfig(cfg)
	require.NoError(t, err)

	def := live.DefaultConfig()
	assert.True(t, def.Decision.SplitUnit.Equal(got.Decision.SplitUnit))
	assert.True(t, def.Pricing.MinProfit.Equal(got.Pricing.MinProfit))
	assert.Equal(t, def.RetryCooldown, got.RetryCooldown)
	assert.Empty(t, got.FeeAsset, "fee reserve off unless configured")
	assert.Empty(t, got.Decision.ForbiddenPairs)
}

func TestEngineConfig_ShippedFile(t *testing.T) {
	cfg, err := config.Load("../../config/config.yaml")
	require.NoError(t, err)

	got, err := engineConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "BNB", got.FeeAsset)
	assert.True(t, got.Decision.ForbiddenPairs["LUNABTC"])
	assert.True(t, d("0.5").Equal(got.Decision.MinProfitPercent))
	assert.True(t, d("0.0005").Equal(got.Decision.AcquireUnit))
	assert.True(t, d("15").Equal(got.AcquireMaxVolatility))
	assert.Equal(t, 3*time.Second, got.RetryCooldown)
	assert.Equal(t, 500*time.Millisecond, got.SettlePollInterval)

	rc, err := rankerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "BTC", rc.BaseAsset)
	assert.Equal(t, 8, rc.Workers)
	assert.Equal(t, time.Second, rc.Cooldown)
	assert.True(t, d("0.000001").Equal(rc.DustPrice))
}

func TestEngineConfig_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*config.Config)
		want  string
	}{
		{"not a decimal", func(c *config.Config) { c.Trading.SplitUnit = "abc" }, "trading.split_unit"},
		{"negative", func(c *config.Config) { c.Trading.AcquireUnit = "-1" }, "trading.acquire_unit"},
		{"zero split unit", func(c *config.Config) { c.Trading.SplitUnit = "0" }, "split_unit must be positive"},
		{"inverted profit band", func(c *config.Config) {
			c.Trading.MinHalfProfit = "0.05"
			c.Trading.MaxHalfProfit = "0.01"
		}, "above max_half_profit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			tt.apply(cfg)
			_, err := engineConfig(cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestEngineConfig_ReportsEveryBadKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Trading.SplitUnit = "x"
	cfg.Trading.Acquire.ProfitPercent = "y"

	_, err := engineConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading.split_unit")
	assert.Contains(t, err.Error(), "trading.acquire.profit_percent")
}

func TestPaperBalances(t *testing.T) {
	fee, balances, err := paperBalances(config.PaperConfig{
		FeeRate:  "0.001",
		Balances: map[string]string{"BTC": "0.05", "BNB": "1"},
	})
	require.NoError(t, err)
	assert.True(t, d("0.001").Equal(fee))
	assert.True(t, d("0.05").Equal(balances["BTC"]))
	assert.True(t, d("1").Equal(balances["BNB"]))

	_, _, err = paperBalances(config.PaperConfig{Balances: map[string]string{"BTC": "lots"}})
	assert.ErrorContains(t, err, "paper.balances.BTC")
}

func TestRankerConfig_Cooldown(t *testing.T) {
	cfg := &config.Config{}
	rc, err := rankerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Second, rc.Cooldown, "default when unset")

	cfg.Ranker.CooldownMillis = 250
	rc, err = rankerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, rc.Cooldown)
}
