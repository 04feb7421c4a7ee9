package portfolio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/risk"
)

// PricedHolding is a holding valued at the latest available price.
type PricedHolding struct {
	journal.Holding
	Price    float64
	Value    float64
	PL       float64
	PLPct    float64
	DaysHeld int
	Stale    bool // provider had no price
}

type Valuation struct {
	Cash            float64
	HoldingsValue   float64
	TotalValue      float64
	NumHoldings     int
	TotalCost       float64
	UnrealizedPL    float64
	UnrealizedPLPct float64
	RealizedPL      float64 // sum of booked sell P&L
	TotalPL         float64 // against the initial budget
	TotalPLPct      float64
	Holdings        []PricedHolding
}

// Value prices every holding. Refreshed prices are written back to the
// journal; a failed write is logged and ignored.
func (l *Ledger) Value(ctx context.Context) (Valuation, error) {
	hs, err := l.store.ListHoldings(ctx)
	if err != nil {
		return Valuation{}, fmt.Errorf("list holdings: %w", err)
	}

	v := Valuation{Cash: l.Cash(), NumHoldings: len(hs)}
	now := l.now()
	for _, h := range hs {
		p, stale := l.price(ctx, h)
		if !stale && p != h.CurrentPrice {
			if err := l.store.UpdateHoldingPrice(ctx, h.Symbol, p); err != nil {
				logger.ErrorWithErr(ctx, l.log, "update holding price", err, slog.String("symbol", h.Symbol))
			}
		}

		ph := PricedHolding{
			Holding:  h,
			Price:    p,
			Value:    p * float64(h.Quantity),
			DaysHeld: HoldDays(h.FirstBoughtAt, now),
			Stale:    stale,
		}
		ph.PL = ph.Value - h.TotalCost
		ph.PLPct = risk.PctChange(p, h.AvgBuyPrice)

		v.Holdings = append(v.Holdings, ph)
		v.HoldingsValue += ph.Value
		v.TotalCost += h.TotalCost
	}

	realized, err := l.store.RealizedPL(ctx)
	if err != nil {
		return Valuation{}, fmt.Errorf("realized pl: %w", err)
	}
	v.RealizedPL = realized

	v.TotalValue = v.Cash + v.HoldingsValue
	v.UnrealizedPL = v.HoldingsValue - v.TotalCost
	if v.TotalCost > 0 {
		v.UnrealizedPLPct = v.UnrealizedPL / v.TotalCost * 100
	}
	v.TotalPL = v.TotalValue - l.trading.InitialBudget
	if l.trading.InitialBudget > 0 {
		v.TotalPLPct = v.TotalPL / l.trading.InitialBudget * 100
	}
	return v, nil
}

// Peak is the watermark from the latest snapshot. Before the first
// snapshot it is the larger of the initial budget and total.
func (l *Ledger) Peak(ctx context.Context, total float64) (float64, error) {
	s, err := l.store.LatestSnapshot(ctx)
	if errors.Is(err, journal.ErrNotFound) {
		return math.Max(l.trading.InitialBudget, total), nil
	}
	if err != nil {
		return 0, err
	}
	return s.PeakValue, nil
}

// TakeSnapshot values the portfolio and appends a snapshot. The peak never
// decreases across snapshots.
func (l *Ledger) TakeSnapshot(ctx context.Context) (journal.Snapshot, error) {
	v, err := l.Value(ctx)
	if err != nil {
		return journal.Snapshot{}, err
	}

	base, peak := l.trading.InitialBudget, v.TotalValue
	prev, err := l.store.LatestSnapshot(ctx)
	switch {
	case err == nil:
		base = prev.TotalValue
		peak = math.Max(peak, prev.PeakValue)
	case !errors.Is(err, journal.ErrNotFound):
		return journal.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}

	s := journal.Snapshot{
		Date:          l.now(),
		TotalValue:    v.TotalValue,
		CashBalance:   v.Cash,
		HoldingsValue: v.HoldingsValue,
		DailyPL:       v.TotalValue - base,
		TotalPL:       v.TotalPL,
		TotalPLPct:    v.TotalPLPct,
		PeakValue:     peak,
		Drawdown:      v.TotalValue - peak,
		DrawdownPct:   risk.DrawdownPct(v.TotalValue, peak),
		NumHoldings:   v.NumHoldings,
	}
	if base > 0 {
		s.DailyPLPct = s.DailyPL / base * 100
	}

	desc := fmt.Sprintf("Snapshot: $%.2f (peak $%.2f, drawdown %.1f%%)", s.TotalValue, s.PeakValue, s.DrawdownPct)
	err = l.store.WithTx(ctx, func(tx *journal.Tx) error {
		if err := tx.InsertSnapshot(ctx, &s); err != nil {
			return err
		}
		return tx.Audit(ctx, journal.AuditEntry{
			ActionType:  journal.AuditSnapshot,
			Description: desc,
		})
	})
	if err != nil {
		return journal.Snapshot{}, err
	}

	l.metrics.SetPortfolio(s.TotalValue, s.DrawdownPct, s.NumHoldings)
	l.log.InfoContext(ctx, "snapshot taken",
		slog.Float64("total_value", s.TotalValue),
		slog.Float64("peak", s.PeakValue),
		slog.Float64("drawdown_pct", s.DrawdownPct),
	)
	return s, nil
}

// RenderValuation writes the valuation as two tables, positions then totals.
func RenderValuation(w io.Writer, v Valuation) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("HOLDINGS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Qty", "Avg", "Price", "Value", "P&L", "Stop", "Target", "Days"})
	for _, h := range v.Holdings {
		price := fmt.Sprintf("$%.2f", h.Price)
		if h.Stale {
			price += "*"
		}
		t.AppendRow(table.Row{
			h.Symbol,
			h.Quantity,
			fmt.Sprintf("$%.2f", h.AvgBuyPrice),
			price,
			fmt.Sprintf("$%.2f", h.Value),
			fmt.Sprintf("$%.2f (%+.1f%%)", h.PL, h.PLPct),
			fmt.Sprintf("$%.2f", h.StopLossPrice),
			fmt.Sprintf("$%.2f", h.TakeProfitPrice),
			h.DaysHeld,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	t.Render()

	s := table.NewWriter()
	s.SetOutputMirror(w)
	s.SetTitle("PORTFOLIO")
	s.SetStyle(table.StyleRounded)
	s.AppendRows([]table.Row{
		{"Cash", fmt.Sprintf("$%.2f", v.Cash)},
		{"Holdings", fmt.Sprintf("$%.2f (%d)", v.HoldingsValue, v.NumHoldings)},
		{"Total", fmt.Sprintf("$%.2f", v.TotalValue)},
	})
	s.AppendSeparator()
	s.AppendRows([]table.Row{
		{"Unrealized", fmt.Sprintf("$%.2f (%+.1f%%)", v.UnrealizedPL, v.UnrealizedPLPct)},
		{"Realized", fmt.Sprintf("$%.2f", v.RealizedPL)},
		{"Total P&L", fmt.Sprintf("$%.2f (%+.1f%%)", v.TotalPL, v.TotalPLPct)},
	})
	s.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 12, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	})
	s.Render()
}
