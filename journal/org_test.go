package journal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	pl, pct, days := 20.0, 20.0, 3
	sid := int64(12)
	trade := Trade{
		ID: 5, Symbol: "AAPL", Action: Sell, Quantity: 10, Price: 12, TotalValue: 120,
		OrderID: "ORD-9", SignalID: &sid, ExecutedAt: t0,
		ProfitLoss: &pl, ProfitLossPct: &pct, HoldDays: &days,
	}

	result := FormatTradeOrg(trade)

	assert.Contains(t, result, "** Trade: SELL AAPL (#5)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":TRADE_ID: 5")
	assert.Contains(t, result, ":QUANTITY: 10")
	assert.Contains(t, result, ":PRICE: 12.00")
	assert.Contains(t, result, ":SIGNAL_ID: 12")
	assert.Contains(t, result, ":EXECUTED: 2024-03-15T14:30:00Z")
	assert.Contains(t, result, ":REALIZED_PL: 20.00")
	assert.Contains(t, result, ":HOLD_DAYS: 3")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Review")
}

func TestFormatTradeOrgBuyOmitsRealized(t *testing.T) {
	t.Parallel()

	result := FormatTradeOrg(Trade{ID: 1, Symbol: "MSFT", Action: Buy, Quantity: 2, Price: 150, TotalValue: 300})
	assert.NotContains(t, result, ":REALIZED_PL:")
	assert.NotContains(t, result, ":SIGNAL_ID:")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTradesOrg(nil))

	out := FormatTradesOrg([]Trade{
		{ID: 1, Symbol: "AAPL", Action: Buy},
		{ID: 2, Symbol: "MSFT", Action: Buy},
	})
	assert.Equal(t, 2, strings.Count(out, "** Trade:"))
	assert.Contains(t, out, ":END:\n\n*** Thesis")
}
