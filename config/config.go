package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration. Monetary values are kept as decimal
// strings here and parsed when the engine configuration is built; an empty
// string keeps the engine default.
type Config struct {
	Trading  TradingConfig  `yaml:"trading"`
	Ranker   RankerConfig   `yaml:"ranker"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Paper    PaperConfig    `yaml:"paper"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// TradingConfig drives the cycle: assets, decision thresholds and strategy
// constants.
type TradingConfig struct {
	BaseAsset       string   `yaml:"base_asset"`
	FeeAsset        string   `yaml:"fee_asset"` // "" disables the fee reserve
	ForbiddenPairs  []string `yaml:"forbidden_pairs"`
	IntervalSeconds int      `yaml:"interval_seconds"`

	MinHalfProfit string `yaml:"min_half_profit"`
	MaxHalfProfit string `yaml:"max_half_profit"`
	MinProfit     string `yaml:"min_profit"`

	MinProfitPercent    string `yaml:"min_profit_percent"`
	IdleCapitalMultiple string `yaml:"idle_capital_multiple"`
	OrdersPerValue      string `yaml:"orders_per_value"`
	StaleHoldHours      string `yaml:"stale_hold_hours"`
	SplitMinNotional    string `yaml:"split_min_notional"`
	NearMoneyDrop       string `yaml:"near_money_drop"`
	DiversifyDrop       string `yaml:"diversify_drop"`
	ExtractMaxMargin    string `yaml:"extract_max_margin"`
	ExtractMinNotional  string `yaml:"extract_min_notional"`
	ExtractMaxNotional  string `yaml:"extract_max_notional"`
	ExtractMaxOrders    int    `yaml:"extract_max_orders"`
	SplitUnit           string `yaml:"split_unit"`
	AcquireUnit         string `yaml:"acquire_unit"`
	OrderCountUnit      string `yaml:"order_count_unit"`
	SplitMarginPercent  string `yaml:"split_margin_percent"`

	Acquire AcquireConfig `yaml:"acquire"`

	FeeReserveFloor string `yaml:"fee_reserve_floor"`
	FeeReserveSpend string `yaml:"fee_reserve_spend"`

	RetryCooldownSeconds int `yaml:"retry_cooldown_seconds"`
	SettlePollMillis     int `yaml:"settle_poll_millis"`
	SettleMaxAttempts    int `yaml:"settle_max_attempts"`
}

// AcquireConfig filters brand-new positions.
type AcquireConfig struct {
	MinVolatility    string `yaml:"min_volatility"`
	MaxVolatility    string `yaml:"max_volatility"`
	MinMarginPercent string `yaml:"min_margin_percent"`
	MaxDriftPercent  string `yaml:"max_drift_percent"`
	ProfitPercent    string `yaml:"profit_percent"`
}

// RankerConfig controls the candidate sweep.
type RankerConfig struct {
	MinQuoteVolume  string `yaml:"min_quote_volume"`
	LookbackDays    int    `yaml:"lookback_days"`
	MinDailyCandles int    `yaml:"min_daily_candles"`
	MinTrendCandles int    `yaml:"min_trend_candles"`
	DustPrice       string `yaml:"dust_price"`
	Workers         int    `yaml:"workers"`
	CooldownMillis  int    `yaml:"cooldown_millis"` // pause before the per-symbol sweep
}

// ExchangeConfig holds the Binance endpoint and pacing. Keys only come from
// the environment.
type ExchangeConfig struct {
	BaseURL    string  `yaml:"base_url"` // empty for production
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
	BookDepth  int     `yaml:"book_depth"`

	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// PaperConfig seeds the simulated account used by -paper.
type PaperConfig struct {
	FeeRate  string            `yaml:"fee_rate"`
	Balances map[string]string `yaml:"balances"` // asset → free amount
}

// StorageConfig controls where cycle history is kept.
type StorageConfig struct {
	DSN          string `yaml:"dsn"` // SQLite file path, or ":memory:"
	ReportCycles int    `yaml:"report_cycles"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9100"; empty disables it
}

// Load reads the YAML file and the .env file if present. Environment
// variables override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// CycleInterval returns the time between cycles.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Trading.IntervalSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Trading.BaseAsset == "" {
		cfg.Trading.BaseAsset = "BTC"
	}
	if cfg.Trading.IntervalSeconds <= 0 {
		cfg.Trading.IntervalSeconds = 300
	}
	if cfg.Exchange.RatePerSec <= 0 {
		cfg.Exchange.RatePerSec = 10
	}
	if cfg.Exchange.Burst <= 0 {
		cfg.Exchange.Burst = 5
	}
	if cfg.Exchange.BookDepth <= 0 {
		cfg.Exchange.BookDepth = 5
	}
	if cfg.Paper.FeeRate == "" {
		cfg.Paper.FeeRate = "0.001"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "rotabot.db"
	}
	if cfg.Storage.ReportCycles <= 0 {
		cfg.Storage.ReportCycles = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
