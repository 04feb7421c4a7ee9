package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `id, symbol, action, quantity, price, total_value, order_id, signal_id,
	buy_price, profit_loss, profit_loss_pct, hold_days, created_at, executed_at`

func scanTrade(sc scanner) (Trade, error) {
	var (
		t        Trade
		signalID sql.NullInt64
		buy      sql.NullFloat64
		pl       sql.NullFloat64
		plPct    sql.NullFloat64
		hold     sql.NullInt64
	)
	if err := sc.Scan(&t.ID, &t.Symbol, &t.Action, &t.Quantity, &t.Price, &t.TotalValue,
		&t.OrderID, &signalID, &buy, &pl, &plPct, &hold, &t.CreatedAt, &t.ExecutedAt); err != nil {
		return Trade{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExecutedAt = t.ExecutedAt.UTC()
	t.SignalID = ptrInt64(signalID)
	t.BuyPrice = ptrFloat(buy)
	t.ProfitLoss = ptrFloat(pl)
	t.ProfitLossPct = ptrFloat(plPct)
	if hold.Valid {
		d := int(hold.Int64)
		t.HoldDays = &d
	}
	return t, nil
}

// InsertTrade appends an immutable trade row and sets its ID.
func (j queries) InsertTrade(ctx context.Context, t *Trade) error {
	now := j.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = now
	}

	res, err := j.q.ExecContext(ctx, `
		INSERT INTO trades
		(symbol, action, quantity, price, total_value, order_id, signal_id,
		 buy_price, profit_loss, profit_loss_pct, hold_days, created_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol, t.Action, t.Quantity, t.Price, t.TotalValue, t.OrderID, t.SignalID,
		t.BuyPrice, t.ProfitLoss, t.ProfitLossPct, t.HoldDays, ts(t.CreatedAt), ts(t.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// GetTrade returns a single trade record by ID.
func (j queries) GetTrade(ctx context.Context, id int64) (Trade, error) {
	row := j.q.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Trade{}, fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTrades returns the newest trades first.
func (j queries) ListTrades(ctx context.Context, limit int) ([]Trade, error) {
	return j.listTrades(ctx, `SELECT `+tradeColumns+` FROM trades
		ORDER BY executed_at DESC, id DESC LIMIT ?`, limitOrAll(limit))
}

// ListTradesSince returns trades executed at or after since, oldest first.
func (j queries) ListTradesSince(ctx context.Context, since time.Time) ([]Trade, error) {
	return j.listTrades(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE executed_at >= ?
		ORDER BY executed_at ASC, id ASC`, ts(since))
}

func (j queries) listTrades(ctx context.Context, query string, args ...any) ([]Trade, error) {
	rows, err := j.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountTradesSince counts trades executed at or after since.
func (j queries) CountTradesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := j.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE executed_at >= ?`, ts(since)).Scan(&n)
	return n, err
}

// RealizedPL sums the booked profit or loss of every sell.
func (j queries) RealizedPL(ctx context.Context) (float64, error) {
	var pl float64
	err := j.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(profit_loss), 0) FROM trades WHERE action = 'SELL'`).Scan(&pl)
	return pl, err
}

// TradeFlows sums the total value of all buys and all sells.
func (j queries) TradeFlows(ctx context.Context) (buys, sells float64, err error) {
	err = j.q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN action = 'BUY' THEN total_value END), 0),
			COALESCE(SUM(CASE WHEN action = 'SELL' THEN total_value END), 0)
		FROM trades`).Scan(&buys, &sells)
	return buys, sells, err
}
