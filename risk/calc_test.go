package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/equitrader/journal"
)

func TestDrawdownPct(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -16.667, DrawdownPct(1000, 1200), 0.001)
	assert.Equal(t, 0.0, DrawdownPct(1200, 1200))
	assert.Equal(t, 0.0, DrawdownPct(500, 0))
}

func TestSizeQuantity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		budget float64
		price  float64
		want   int
	}{
		{"whole", 300, 100, 3},
		{"floors", 330, 100, 3},
		{"too expensive", 99, 100, 0},
		{"zero price", 100, 0, 0},
		{"negative budget", -5, 10, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SizeQuantity(tt.budget, tt.price))
		})
	}
}

func TestLevelAndPctChange(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 95, Level(100, -5), 1e-9)
	assert.InDelta(t, 110, Level(100, 10), 1e-9)
	assert.InDelta(t, 20, PctChange(12, 10), 1e-9)
	assert.Equal(t, 0.0, PctChange(12, 0))
	assert.Equal(t, 10.01, Round2(10.005000001))
}

func TestCountDayTrades(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	at := func(s string) time.Time {
		tm, err := time.Parse(time.RFC3339, s)
		assert.NoError(t, err)
		return tm
	}
	trades := []journal.Trade{
		{Symbol: "AAPL", Action: journal.Buy, ExecutedAt: at("2024-03-14T14:00:00Z")},
		{Symbol: "AAPL", Action: journal.Sell, ExecutedAt: at("2024-03-14T19:00:00Z")},
		// different symbol same day, buy only
		{Symbol: "MSFT", Action: journal.Buy, ExecutedAt: at("2024-03-14T15:00:00Z")},
		// 01:00Z on the 15th is still the 14th in New York
		{Symbol: "TSLA", Action: journal.Buy, ExecutedAt: at("2024-03-14T20:00:00Z")},
		{Symbol: "TSLA", Action: journal.Sell, ExecutedAt: at("2024-03-15T01:00:00Z")},
	}

	assert.Equal(t, 2, CountDayTrades(trades, ny))
	assert.Equal(t, 1, CountDayTrades(trades, time.UTC))
}
