package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/equitrader/market"
	"gopkg.in/yaml.v3"
)

// Config is the complete trader configuration.
type Config struct {
	Trading TradingConfig `json:"trading" yaml:"trading"`
	Market  MarketConfig  `json:"market" yaml:"market"`
	Paper   PaperConfig   `json:"paper" yaml:"paper"`
	Venue   VenueConfig   `json:"venue" yaml:"venue"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Sources SourceConfig  `json:"sources" yaml:"sources"`
}

// TradingConfig holds the risk and sizing rules.
type TradingConfig struct {
	InitialBudget          float64 `json:"initial_budget" yaml:"initial_budget"`
	MaxPositionPct         float64 `json:"max_position_pct" yaml:"max_position_pct"`
	MaxHoldings            int     `json:"max_holdings" yaml:"max_holdings"`
	StopLossPct            float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`     // negative, e.g. -5
	TakeProfitPct          float64 `json:"take_profit_pct" yaml:"take_profit_pct"` // positive, e.g. 10
	MinStockPrice          float64 `json:"min_stock_price" yaml:"min_stock_price"`
	MinMarketCapMillions   float64 `json:"min_market_cap_millions" yaml:"min_market_cap_millions"`
	MinHoldDays            int     `json:"min_hold_days" yaml:"min_hold_days"`
	ApprovalTimeoutMinutes int     `json:"approval_timeout_minutes" yaml:"approval_timeout_minutes"`
	UrgentTimeoutMinutes   int     `json:"urgent_timeout_minutes" yaml:"urgent_timeout_minutes"`
	MaxDrawdownPct         float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"` // negative, e.g. -15
	MaxDailyTrades         int     `json:"max_daily_trades" yaml:"max_daily_trades"`
	MaxDayTrades           int     `json:"max_day_trades" yaml:"max_day_trades"`
	DayTradeWindowDays     int     `json:"day_trade_window_days" yaml:"day_trade_window_days"`
	ReconstructCash        bool    `json:"reconstruct_cash" yaml:"reconstruct_cash"`
}

// MarketConfig describes the exchange session.
type MarketConfig struct {
	Timezone            string `json:"timezone" yaml:"timezone"`
	Open                string `json:"open" yaml:"open"`   // "09:30"
	Close               string `json:"close" yaml:"close"` // "16:00"
	ScanIntervalMinutes int    `json:"scan_interval_minutes" yaml:"scan_interval_minutes"`
	QuoteURL            string `json:"quote_url,omitempty" yaml:"quote_url,omitempty"`
}

// PaperConfig toggles simulated execution.
type PaperConfig struct {
	Enabled         bool    `json:"enabled" yaml:"enabled"`
	StartingBalance float64 `json:"starting_balance" yaml:"starting_balance"`
}

// VenueConfig selects and tunes the live execution venue.
type VenueConfig struct {
	Kind         string `json:"kind" yaml:"kind"` // "sim" or "kite"
	Exchange     string `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Product      string `json:"product,omitempty" yaml:"product,omitempty"`
	FillPoll     string `json:"fill_poll" yaml:"fill_poll"`       // e.g. "2s"
	FillTimeout  string `json:"fill_timeout" yaml:"fill_timeout"` // e.g. "60s"
	SimFillAfter int    `json:"sim_fill_after,omitempty" yaml:"sim_fill_after,omitempty"`
}

// NotifyConfig controls the approval channel.
type NotifyConfig struct {
	Telegram     bool   `json:"telegram" yaml:"telegram"`
	APIURL       string `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	PollInterval string `json:"poll_interval" yaml:"poll_interval"` // e.g. "5s"
	DailySummary bool   `json:"daily_summary" yaml:"daily_summary"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// LogConfig configures slog and tracing.
type LogConfig struct {
	Level   string `json:"level" yaml:"level"`
	Format  string `json:"format" yaml:"format"` // "json" or "text"
	Tracing bool   `json:"tracing" yaml:"tracing"`
}

// MetricsConfig configures the prometheus/health listener.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// SourceConfig points at the opportunity candidates file.
type SourceConfig struct {
	OpportunitiesFile string `json:"opportunities_file,omitempty" yaml:"opportunities_file,omitempty"`
}

// LoadFromFile loads configuration from a YAML or JSON file and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration, YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	t := c.Trading
	if t.InitialBudget <= 0 {
		return fmt.Errorf("trading.initial_budget must be positive")
	}
	if t.MaxPositionPct <= 0 || t.MaxPositionPct > 100 {
		return fmt.Errorf("trading.max_position_pct must be between 0 and 100")
	}
	if t.MaxHoldings < 1 {
		return fmt.Errorf("trading.max_holdings must be at least 1")
	}
	if t.StopLossPct >= 0 {
		return fmt.Errorf("trading.stop_loss_pct must be negative")
	}
	if t.TakeProfitPct <= 0 {
		return fmt.Errorf("trading.take_profit_pct must be positive")
	}
	if t.MaxDrawdownPct >= 0 {
		return fmt.Errorf("trading.max_drawdown_pct must be negative")
	}
	if t.MaxDailyTrades < 1 {
		return fmt.Errorf("trading.max_daily_trades must be at least 1")
	}
	if t.MaxDayTrades < 1 {
		return fmt.Errorf("trading.max_day_trades must be at least 1")
	}
	if t.DayTradeWindowDays < 1 {
		return fmt.Errorf("trading.day_trade_window_days must be at least 1")
	}
	if t.ApprovalTimeoutMinutes < 1 || t.UrgentTimeoutMinutes < 1 {
		return fmt.Errorf("trading approval timeouts must be at least 1 minute")
	}
	if t.MinHoldDays < 0 {
		return fmt.Errorf("trading.min_hold_days must not be negative")
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	open, err := market.ParseClock(c.Market.Open)
	if err != nil {
		return fmt.Errorf("market.open: %w", err)
	}
	closeAt, err := market.ParseClock(c.Market.Close)
	if err != nil {
		return fmt.Errorf("market.close: %w", err)
	}
	if closeAt <= open {
		return fmt.Errorf("market.close must be after market.open")
	}
	if c.Market.ScanIntervalMinutes < 1 {
		return fmt.Errorf("market.scan_interval_minutes must be at least 1")
	}

	if c.Venue.Kind != "sim" && c.Venue.Kind != "kite" {
		return fmt.Errorf("venue.kind must be 'sim' or 'kite'")
	}
	for name, v := range map[string]string{
		"venue.fill_poll":      c.Venue.FillPoll,
		"venue.fill_timeout":   c.Venue.FillTimeout,
		"notify.poll_interval": c.Notify.PollInterval,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text'")
	}
	return nil
}

// MaxPositionValue is the largest dollar amount a single BUY may commit.
func (t TradingConfig) MaxPositionValue() float64 {
	return t.InitialBudget * t.MaxPositionPct / 100
}

// ApprovalTimeout returns the approval window for a signal.
func (t TradingConfig) ApprovalTimeout(urgent bool) time.Duration {
	if urgent {
		return time.Duration(t.UrgentTimeoutMinutes) * time.Minute
	}
	return time.Duration(t.ApprovalTimeoutMinutes) * time.Minute
}

// Hours builds the exchange session from the market section.
func (m MarketConfig) Hours() (*market.Hours, error) {
	return market.NewHours(m.Timezone, m.Open, m.Close)
}

// Duration parses a validated duration field, returning def when it is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Default returns a paper-trading configuration with the stock rules.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			InitialBudget:          1000,
			MaxPositionPct:         33,
			MaxHoldings:            2,
			StopLossPct:            -5,
			TakeProfitPct:          10,
			MinStockPrice:          5,
			MinMarketCapMillions:   500,
			MinHoldDays:            2,
			ApprovalTimeoutMinutes: 15,
			UrgentTimeoutMinutes:   5,
			MaxDrawdownPct:         -15,
			MaxDailyTrades:         4,
			MaxDayTrades:           3,
			DayTradeWindowDays:     7,
			ReconstructCash:        true,
		},
		Market: MarketConfig{
			Timezone:            "America/New_York",
			Open:                "09:30",
			Close:               "16:00",
			ScanIntervalMinutes: 15,
		},
		Paper: PaperConfig{
			Enabled:         true,
			StartingBalance: 1000,
		},
		Venue: VenueConfig{
			Kind:        "sim",
			Exchange:    "NSE",
			Product:     "CNC",
			FillPoll:    "2s",
			FillTimeout: "60s",
		},
		Notify: NotifyConfig{
			Telegram:     true,
			PollInterval: "5s",
			DailySummary: true,
		},
		Store: StoreConfig{
			DBPath: "./trader.sqlite",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}
