package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const holdingColumns = `symbol, quantity, avg_buy_price, total_cost, current_price, current_value,
	stop_loss_price, take_profit_price, first_bought_at, updated_at`

func scanHolding(sc scanner) (Holding, error) {
	var h Holding
	if err := sc.Scan(&h.Symbol, &h.Quantity, &h.AvgBuyPrice, &h.TotalCost, &h.CurrentPrice,
		&h.CurrentValue, &h.StopLossPrice, &h.TakeProfitPrice, &h.FirstBoughtAt, &h.UpdatedAt); err != nil {
		return Holding{}, err
	}
	h.FirstBoughtAt = h.FirstBoughtAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	return h, nil
}

// GetHolding returns the open position in symbol or ErrNotFound.
func (j queries) GetHolding(ctx context.Context, symbol string) (Holding, error) {
	row := j.q.QueryRowContext(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE symbol = ?`, symbol)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Holding{}, fmt.Errorf("holding %q: %w", symbol, ErrNotFound)
	}
	return h, err
}

// ListHoldings returns open positions ordered by symbol.
func (j queries) ListHoldings(ctx context.Context) ([]Holding, error) {
	rows, err := j.q.QueryContext(ctx, `SELECT `+holdingColumns+` FROM holdings ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j queries) CountHoldings(ctx context.Context) (int, error) {
	var n int
	err := j.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM holdings`).Scan(&n)
	return n, err
}

// UpsertHolding inserts or replaces the position for h.Symbol.
// first_bought_at is kept from the existing row.
func (j queries) UpsertHolding(ctx context.Context, h Holding) error {
	if h.Quantity <= 0 {
		return fmt.Errorf("holding %q: quantity must be positive, got %d", h.Symbol, h.Quantity)
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = j.now()
	}
	if h.FirstBoughtAt.IsZero() {
		h.FirstBoughtAt = h.UpdatedAt
	}

	_, err := j.q.ExecContext(ctx, `
		INSERT INTO holdings
		(symbol, quantity, avg_buy_price, total_cost, current_price, current_value,
		 stop_loss_price, take_profit_price, first_bought_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_buy_price = excluded.avg_buy_price,
			total_cost = excluded.total_cost,
			current_price = excluded.current_price,
			current_value = excluded.current_value,
			stop_loss_price = excluded.stop_loss_price,
			take_profit_price = excluded.take_profit_price,
			updated_at = excluded.updated_at`,
		h.Symbol, h.Quantity, h.AvgBuyPrice, h.TotalCost, h.CurrentPrice, h.CurrentValue,
		h.StopLossPrice, h.TakeProfitPrice, ts(h.FirstBoughtAt), ts(h.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert holding %q: %w", h.Symbol, err)
	}
	return nil
}

func (j queries) DeleteHolding(ctx context.Context, symbol string) error {
	_, err := j.q.ExecContext(ctx, `DELETE FROM holdings WHERE symbol = ?`, symbol)
	return err
}

// UpdateHoldingPrice refreshes the last known price and value of a position.
func (j queries) UpdateHoldingPrice(ctx context.Context, symbol string, price float64) error {
	_, err := j.q.ExecContext(ctx, `
		UPDATE holdings
		SET current_price = ?, current_value = quantity * ?, updated_at = ?
		WHERE symbol = ?`, price, price, ts(j.now()), symbol)
	return err
}
