package risk

import "github.com/rustyeddy/equitrader/config"

type Policy struct {
	// Exposure limits
	MaxPositionValue float64 // initial_budget * max_position_pct / 100
	MaxHoldings      int

	// Circuit breaker, negative percent, e.g. -15
	MaxDrawdownPct float64

	// Activity limits
	MaxDailyTrades     int
	MaxDayTrades       int // pattern-day-trade limit
	DayTradeWindowDays int
}

// PolicyFromConfig derives the risk limits from the trading section.
func PolicyFromConfig(t config.TradingConfig) Policy {
	return Policy{
		MaxPositionValue:   t.MaxPositionValue(),
		MaxHoldings:        t.MaxHoldings,
		MaxDrawdownPct:     t.MaxDrawdownPct,
		MaxDailyTrades:     t.MaxDailyTrades,
		MaxDayTrades:       t.MaxDayTrades,
		DayTradeWindowDays: t.DayTradeWindowDays,
	}
}
