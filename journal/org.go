package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a Trade as an Org-mode block for a trading journal.
// Structured facts go in the PROPERTIES drawer, with placeholder headings
// for the narrative.
func FormatTradeOrg(t Trade) string {
	heading := fmt.Sprintf("** Trade: %s %s (#%d)", t.Action, t.Symbol, t.ID)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %d\n", t.ID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":ACTION: %s\n", t.Action))
	b.WriteString(fmt.Sprintf(":QUANTITY: %d\n", t.Quantity))
	b.WriteString(fmt.Sprintf(":PRICE: %.2f\n", t.Price))
	b.WriteString(fmt.Sprintf(":TOTAL: %.2f\n", t.TotalValue))
	b.WriteString(fmt.Sprintf(":ORDER_ID: %s\n", t.OrderID))
	if t.SignalID != nil {
		b.WriteString(fmt.Sprintf(":SIGNAL_ID: %d\n", *t.SignalID))
	}
	b.WriteString(fmt.Sprintf(":EXECUTED: %s\n", t.ExecutedAt.UTC().Format(time.RFC3339)))
	if t.ProfitLoss != nil {
		b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", *t.ProfitLoss))
	}
	if t.ProfitLossPct != nil {
		b.WriteString(fmt.Sprintf(":REALIZED_PL_PCT: %.2f\n", *t.ProfitLossPct))
	}
	if t.HoldDays != nil {
		b.WriteString(fmt.Sprintf(":HOLD_DAYS: %d\n", *t.HoldDays))
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}
