package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/equitrader/journal"
)

// Violation codes.
const (
	CodeTradingPaused    = "TRADING_PAUSED"
	CodeMaxDrawdown      = "MAX_DRAWDOWN"
	CodeDailyTradeLimit  = "DAILY_TRADE_LIMIT"
	CodePDTLimit         = "PDT_LIMIT"
	CodeMaxHoldings      = "MAX_HOLDINGS"
	CodePositionTooLarge = "POSITION_TOO_LARGE"
	CodeInsufficientCash = "INSUFFICIENT_CASH"
	CodeInvalidOrder     = "INVALID_ORDER"
)

type Violation struct {
	Code string
	Msg  string
}

// Decision is the outcome of a pre-trade check. Passed holds the messages
// of the checks that succeeded, in evaluation order.
type Decision struct {
	Allowed    bool
	Violations []Violation
	Passed     []string

	DrawdownPct float64
	Paused      bool // set when this check tripped the drawdown breaker
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

func (d *Decision) pass(msg string) {
	d.Passed = append(d.Passed, msg)
}

// Reason is the first violation message, or the passed messages joined
// with " | " when the check was allowed.
func (d Decision) Reason() string {
	if len(d.Violations) > 0 {
		return d.Violations[0].Msg
	}
	return strings.Join(d.Passed, " | ")
}

// Code is the first violation code, empty when allowed.
func (d Decision) Code() string {
	if len(d.Violations) > 0 {
		return d.Violations[0].Code
	}
	return ""
}

// Request is a proposed trade with the portfolio state it is judged against.
type Request struct {
	Action          journal.Action
	Symbol          string
	Quantity        int
	Price           float64
	AvailableCash   float64
	CurrentHoldings int
	PortfolioValue  float64
	PeakValue       float64
}

// checkDrawdown returns ok=false when the breaker must trip.
func checkDrawdown(p Policy, value, peak float64) (ok bool, pct float64, msg string) {
	if peak <= 0 {
		return true, 0, "No peak value recorded"
	}
	pct = DrawdownPct(value, peak)
	if pct <= p.MaxDrawdownPct {
		return false, pct, fmt.Sprintf("Max drawdown reached: %.1f%% (limit: %g%%)", pct, p.MaxDrawdownPct)
	}
	return true, pct, fmt.Sprintf("Drawdown OK: %.1f%%", pct)
}

func checkDailyTrades(p Policy, count int) (bool, string) {
	if count >= p.MaxDailyTrades {
		return false, fmt.Sprintf("Daily trade limit reached (%d/%d)", count, p.MaxDailyTrades)
	}
	return true, fmt.Sprintf("Daily trades OK (%d/%d)", count, p.MaxDailyTrades)
}

func checkDayTrades(p Policy, count int) (bool, string) {
	if count >= p.MaxDayTrades {
		return false, fmt.Sprintf("PDT limit reached (%d/%d day trades in 5 days)", count, p.MaxDayTrades)
	}
	return true, fmt.Sprintf("PDT OK (%d/%d day trades)", count, p.MaxDayTrades)
}

func checkHoldings(p Policy, current int) (bool, string) {
	if current >= p.MaxHoldings {
		return false, fmt.Sprintf("At max holdings (%d/%d)", current, p.MaxHoldings)
	}
	return true, fmt.Sprintf("Holdings OK (%d/%d)", current, p.MaxHoldings)
}

func checkPositionSize(p Policy, price float64, qty int, cash float64) (code string, msg string) {
	value := price * float64(qty)
	if value > p.MaxPositionValue {
		return CodePositionTooLarge, fmt.Sprintf("Position $%.2f exceeds max $%.2f", value, p.MaxPositionValue)
	}
	if value > cash {
		return CodeInsufficientCash, fmt.Sprintf("Position $%.2f exceeds available cash $%.2f", value, cash)
	}
	return "", fmt.Sprintf("Position size $%.2f OK", value)
}

// CountDayTrades counts the (symbol, calendar date) pairs that have both a
// BUY and a SELL. Dates are taken in loc.
func CountDayTrades(trades []journal.Trade, loc *time.Location) int {
	type key struct {
		symbol string
		date   string
	}
	sides := map[key]uint8{}
	for _, t := range trades {
		k := key{t.Symbol, t.ExecutedAt.In(loc).Format("2006-01-02")}
		switch t.Action {
		case journal.Buy:
			sides[k] |= 1
		case journal.Sell:
			sides[k] |= 2
		}
	}

	n := 0
	for _, s := range sides {
		if s == 3 {
			n++
		}
	}
	return n
}
