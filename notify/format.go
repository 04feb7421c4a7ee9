package notify

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rustyeddy/equitrader/journal"
)

// money formats with thousands separators.
var money = message.NewPrinter(language.English)

// FormatApproval is the approval request for s with minutes left to reply.
func FormatApproval(s journal.Signal, minutes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*TRADE APPROVAL #%d*\n\n", s.ID)
	fmt.Fprintf(&b, "Action: *%s*\n", s.Action)
	fmt.Fprintf(&b, "Stock: *%s*\n", s.Symbol)
	fmt.Fprintf(&b, "Price: $%.2f\n", s.SuggestedPrice)
	fmt.Fprintf(&b, "Shares: %d\n", s.SuggestedQuantity)
	fmt.Fprintf(&b, "Total: $%.2f\n\n", s.Total())
	fmt.Fprintf(&b, "Reason: %s\n\n", s.Reason)
	b.WriteString("Reply:\n  *Y* - Approve\n  *N* - Reject\n\n")
	fmt.Fprintf(&b, "_Expires in %d min_", minutes)
	return b.String()
}

// Execution describes a filled order for the confirmation message.
type Execution struct {
	Symbol   string
	Action   journal.Action
	Quantity int
	Price    float64

	// Buys
	StopLoss      float64
	StopLossPct   float64
	TakeProfit    float64
	TakeProfitPct float64

	// Sells
	PnL    *float64
	PnLPct *float64
}

func FormatExecution(e Execution) string {
	var b strings.Builder
	b.WriteString("*ORDER EXECUTED*\n\n")
	fmt.Fprintf(&b, "%s %dx %s\n", e.Action, e.Quantity, e.Symbol)
	fmt.Fprintf(&b, "@ $%.2f\n", e.Price)
	fmt.Fprintf(&b, "Total: $%.2f\n\n", e.Price*float64(e.Quantity))

	if e.Action == journal.Buy {
		fmt.Fprintf(&b, "Stop-loss: $%.2f (%+g%%)\n", e.StopLoss, e.StopLossPct)
		fmt.Fprintf(&b, "Take-profit: $%.2f (%+g%%)", e.TakeProfit, e.TakeProfitPct)
		return b.String()
	}

	pnl, pnlPct := "N/A", ""
	if e.PnL != nil {
		pnl = fmt.Sprintf("$%.2f", *e.PnL)
	}
	if e.PnLPct != nil {
		pnlPct = pct(*e.PnLPct)
	}
	fmt.Fprintf(&b, "P&L: %s (%s)", pnl, pnlPct)
	return b.String()
}

func FormatStopLossAlert(symbol string, price, lossPct float64) string {
	return fmt.Sprintf("*STOP-LOSS TRIGGERED*\n\n%s @ $%.2f\nLoss: %.1f%%\n\n"+
		"Sell signal generated - check for approval request.", symbol, price, lossPct)
}

// Summary is the portfolio state reported once a day.
type Summary struct {
	TotalValue  float64
	Cash        float64
	NumHoldings int
	DailyPL     float64
	DailyPLPct  float64
	TotalPL     float64
	TotalPLPct  float64
}

func FormatDailySummary(s Summary) string {
	return money.Sprintf("*DAILY SUMMARY*\n\n"+
		"Total Value: $%.2f\nCash: $%.2f\nHoldings: %d\n\n"+
		"P&L Today: $%.2f (%s)\nP&L Total: $%.2f (%s)",
		s.TotalValue, s.Cash, s.NumHoldings,
		s.DailyPL, pct(s.DailyPLPct), s.TotalPL, pct(s.TotalPLPct))
}

func pct(x float64) string {
	return fmt.Sprintf("%+.1f%%", x)
}

func FormatStartup(mode string, cash float64, holdings int, at time.Time) string {
	return money.Sprintf("*TRADER STARTED*\n\nMode: %s\nCash: $%.2f\nHoldings: %d\nTime: %s",
		mode, cash, holdings, at.Format("2006-01-02 15:04 MST"))
}

func FormatError(component string, err error) string {
	return fmt.Sprintf("*ERROR*\n\n%s: %v", component, err)
}
