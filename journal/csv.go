package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var tradeCSVHeader = []string{
	"id", "symbol", "action", "quantity", "price", "total_value", "order_id",
	"signal_id", "profit_loss", "profit_loss_pct", "hold_days", "executed_at",
}

// WriteTradesCSV writes trades with a header row.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeCSVHeader); err != nil {
		return err
	}

	for _, t := range trades {
		rec := []string{
			strconv.FormatInt(t.ID, 10),
			t.Symbol,
			string(t.Action),
			strconv.Itoa(t.Quantity),
			f(t.Price),
			f(t.TotalValue),
			t.OrderID,
			optInt64(t.SignalID),
			optFloat(t.ProfitLoss),
			optFloat(t.ProfitLossPct),
			optInt(t.HoldDays),
			t.ExecutedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func optFloat(x *float64) string {
	if x == nil {
		return ""
	}
	return f(*x)
}

func optInt64(x *int64) string {
	if x == nil {
		return ""
	}
	return strconv.FormatInt(*x, 10)
}

func optInt(x *int) string {
	if x == nil {
		return ""
	}
	return strconv.Itoa(*x)
}
