// Package portfolio tracks cash and positions and derives valuation,
// P&L and drawdown from the journal.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/equitrader/config"
	terr "github.com/rustyeddy/equitrader/internal/errors"
	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/market"
	"github.com/rustyeddy/equitrader/monitoring"
	"github.com/rustyeddy/equitrader/risk"
)

var (
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrNoHolding        = errors.New("no holding")
)

// Fill is an executed order to book.
type Fill struct {
	Symbol   string
	Quantity int
	Price    float64
	OrderID  string
	SignalID *int64

	// Venue marks a fill already executed at a venue. It is booked even
	// when it overdraws cash.
	Venue bool
}

func (f Fill) Total() float64 { return f.Price * float64(f.Quantity) }

// TxHook runs inside the booking transaction after the trade row exists.
// An error rolls the whole booking back.
type TxHook func(ctx context.Context, tx *journal.Tx, trade journal.Trade) error

// Ledger owns the in-memory cash balance. Trades, holdings and audit rows
// for one fill commit in a single transaction; cash moves only after the
// commit.
type Ledger struct {
	store   *journal.SQLite
	prices  market.Provider
	trading config.TradingConfig
	log     *slog.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu   sync.Mutex
	cash float64
}

type Options struct {
	Logger  *slog.Logger
	Metrics *monitoring.Metrics
	Now     func() time.Time
}

// New seeds cash from the initial budget.
func New(store *journal.SQLite, prices market.Provider, trading config.TradingConfig, opts Options) *Ledger {
	l := &Ledger{
		store:   store,
		prices:  prices,
		trading: trading,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		cash:    trading.InitialBudget,
	}
	if l.log == nil {
		l.log = logger.Discard()
	}
	if l.now == nil {
		l.now = time.Now
	}
	l.metrics.SetCash(l.cash)
	return l
}

func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// ReconstructCash replays the trade history: initial budget plus sell
// proceeds minus buy costs.
func (l *Ledger) ReconstructCash(ctx context.Context) (float64, error) {
	buys, sells, err := l.store.TradeFlows(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconstruct cash: %w", err)
	}

	l.mu.Lock()
	l.cash = l.trading.InitialBudget + sells - buys
	cash := l.cash
	l.mu.Unlock()

	l.metrics.SetCash(cash)
	l.log.InfoContext(ctx, "cash reconstructed",
		slog.Float64("cash", cash),
		slog.Float64("buys", buys),
		slog.Float64("sells", sells),
	)
	return cash, nil
}

// RecordBuy books a buy at the fill price. The holding's cost basis is the
// weighted average; stop-loss and take-profit follow this lot's price.
func (l *Ledger) RecordBuy(ctx context.Context, f Fill, hooks ...TxHook) (journal.Trade, error) {
	if f.Quantity <= 0 || f.Price <= 0 {
		return journal.Trade{}, fmt.Errorf("record buy %s: invalid fill %d @ %.2f", f.Symbol, f.Quantity, f.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := f.Total()
	if total > l.cash {
		if !f.Venue {
			return journal.Trade{}, fmt.Errorf("record buy %s: need $%.2f, have $%.2f: %w",
				f.Symbol, total, l.cash, ErrInsufficientCash)
		}
		l.log.WarnContext(ctx, "venue fill overdraws cash",
			slog.String("symbol", f.Symbol),
			slog.Float64("total", total),
			slog.Float64("cash", l.cash),
		)
	}

	now := l.now()
	trade := journal.Trade{
		Symbol:     f.Symbol,
		Action:     journal.Buy,
		Quantity:   f.Quantity,
		Price:      f.Price,
		TotalValue: total,
		OrderID:    f.OrderID,
		SignalID:   f.SignalID,
		ExecutedAt: now,
	}

	err := l.store.WithTx(ctx, func(tx *journal.Tx) error {
		h, err := tx.GetHolding(ctx, f.Symbol)
		switch {
		case errors.Is(err, journal.ErrNotFound):
			h = journal.Holding{Symbol: f.Symbol, FirstBoughtAt: now}
		case err != nil:
			return err
		}

		h.Quantity += f.Quantity
		h.TotalCost += total
		h.AvgBuyPrice = h.TotalCost / float64(h.Quantity)
		h.CurrentPrice = f.Price
		h.CurrentValue = f.Price * float64(h.Quantity)
		h.StopLossPrice = risk.Level(f.Price, l.trading.StopLossPct)
		h.TakeProfitPrice = risk.Level(f.Price, l.trading.TakeProfitPct)
		h.UpdatedAt = now
		if err := tx.UpsertHolding(ctx, h); err != nil {
			return err
		}

		if err := tx.InsertTrade(ctx, &trade); err != nil {
			return err
		}
		if err := tx.Audit(ctx, journal.AuditEntry{
			ActionType:  journal.AuditTradeExecuted,
			Symbol:      f.Symbol,
			Description: fmt.Sprintf("BUY %d x %s @ $%.2f = $%.2f", f.Quantity, f.Symbol, f.Price, total),
			TradeID:     &trade.ID,
			SignalID:    f.SignalID,
		}); err != nil {
			return err
		}
		return runHooks(ctx, tx, trade, hooks)
	})
	if err != nil {
		return journal.Trade{}, fmt.Errorf("record buy %s: %w", f.Symbol, err)
	}

	l.cash -= total
	l.booked(ctx, trade)
	return trade, nil
}

// RecordSell books a sell against the open holding. Selling the whole
// position or more removes it.
func (l *Ledger) RecordSell(ctx context.Context, f Fill, hooks ...TxHook) (journal.Trade, error) {
	if f.Quantity <= 0 || f.Price <= 0 {
		return journal.Trade{}, fmt.Errorf("record sell %s: invalid fill %d @ %.2f", f.Symbol, f.Quantity, f.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	total := f.Total()
	var trade journal.Trade

	err := l.store.WithTx(ctx, func(tx *journal.Tx) error {
		h, err := tx.GetHolding(ctx, f.Symbol)
		if errors.Is(err, journal.ErrNotFound) {
			return fmt.Errorf("%s: %w", f.Symbol, ErrNoHolding)
		}
		if err != nil {
			return err
		}

		pl := (f.Price - h.AvgBuyPrice) * float64(f.Quantity)
		plPct := risk.PctChange(f.Price, h.AvgBuyPrice)
		days := HoldDays(h.FirstBoughtAt, now)
		buyPrice := h.AvgBuyPrice

		trade = journal.Trade{
			Symbol:        f.Symbol,
			Action:        journal.Sell,
			Quantity:      f.Quantity,
			Price:         f.Price,
			TotalValue:    total,
			OrderID:       f.OrderID,
			SignalID:      f.SignalID,
			ExecutedAt:    now,
			BuyPrice:      &buyPrice,
			ProfitLoss:    &pl,
			ProfitLossPct: &plPct,
			HoldDays:      &days,
		}

		if f.Quantity >= h.Quantity {
			if err := tx.DeleteHolding(ctx, f.Symbol); err != nil {
				return err
			}
		} else {
			h.Quantity -= f.Quantity
			h.TotalCost = float64(h.Quantity) * h.AvgBuyPrice
			h.CurrentPrice = f.Price
			h.CurrentValue = f.Price * float64(h.Quantity)
			h.UpdatedAt = now
			if err := tx.UpsertHolding(ctx, h); err != nil {
				return err
			}
		}

		if err := tx.InsertTrade(ctx, &trade); err != nil {
			return err
		}
		desc := fmt.Sprintf("SELL %d x %s @ $%.2f = $%.2f | P&L: $%.2f (%+.1f%%)",
			f.Quantity, f.Symbol, f.Price, total, pl, plPct)
		if err := tx.Audit(ctx, journal.AuditEntry{
			ActionType:  journal.AuditTradeExecuted,
			Symbol:      f.Symbol,
			Description: desc,
			TradeID:     &trade.ID,
			SignalID:    f.SignalID,
		}); err != nil {
			return err
		}
		return runHooks(ctx, tx, trade, hooks)
	})
	if err != nil {
		return journal.Trade{}, fmt.Errorf("record sell %s: %w", f.Symbol, err)
	}

	l.cash += total
	l.booked(ctx, trade)
	return trade, nil
}

func runHooks(ctx context.Context, tx *journal.Tx, trade journal.Trade, hooks []TxHook) error {
	for _, h := range hooks {
		if err := h(ctx, tx, trade); err != nil {
			return err
		}
	}
	return nil
}

// booked runs with l.mu held.
func (l *Ledger) booked(ctx context.Context, t journal.Trade) {
	l.metrics.TradeRecorded(string(t.Action))
	l.metrics.SetCash(l.cash)

	args := []any{slog.Int64("trade_id", t.ID), slog.Float64("cash", l.cash)}
	if t.ProfitLoss != nil {
		args = append(args, slog.Float64("pnl", *t.ProfitLoss), slog.Float64("pnl_pct", *t.ProfitLossPct))
	}
	logger.Trade(ctx, l.log, string(t.Action), t.Symbol, t.Quantity, t.Price, args...)
}

// HoldDays is the number of whole days between first and now.
func HoldDays(first, now time.Time) int {
	if first.IsZero() || now.Before(first) {
		return 0
	}
	return int(now.Sub(first).Hours() / 24)
}

// Trades returns the newest trades first.
func (l *Ledger) Trades(ctx context.Context, limit int) ([]journal.Trade, error) {
	return l.store.ListTrades(ctx, limit)
}

// HoldingView is a stored holding with its age.
type HoldingView struct {
	journal.Holding
	DaysHeld int
}

// Holdings returns open positions without repricing them.
func (l *Ledger) Holdings(ctx context.Context) ([]HoldingView, error) {
	hs, err := l.store.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}
	now := l.now()
	out := make([]HoldingView, len(hs))
	for i, h := range hs {
		out[i] = HoldingView{Holding: h, DaysHeld: HoldDays(h.FirstBoughtAt, now)}
	}
	return out, nil
}

func (l *Ledger) HoldingCount(ctx context.Context) (int, error) {
	return l.store.CountHoldings(ctx)
}

// price asks the provider and falls back to the last known price, then the
// average cost. stale is true when the provider could not answer.
func (l *Ledger) price(ctx context.Context, h journal.Holding) (p float64, stale bool) {
	if l.prices != nil {
		quote, err := l.prices.CurrentPrice(ctx, h.Symbol)
		if err == nil && quote > 0 {
			return quote, false
		}
		l.log.DebugContext(ctx, "price unavailable",
			slog.String("symbol", h.Symbol),
			slog.String("category", string(terr.DataUnavailable)),
			slog.Any("error", err),
		)
	}
	if h.CurrentPrice > 0 {
		return h.CurrentPrice, true
	}
	return h.AvgBuyPrice, true
}
