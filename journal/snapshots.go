package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const snapshotColumns = `id, date, total_value, cash_balance, holdings_value, daily_pl, daily_pl_pct,
	total_pl, total_pl_pct, peak_value, drawdown, drawdown_pct, num_holdings`

func scanSnapshot(sc scanner) (Snapshot, error) {
	var s Snapshot
	if err := sc.Scan(&s.ID, &s.Date, &s.TotalValue, &s.CashBalance, &s.HoldingsValue,
		&s.DailyPL, &s.DailyPLPct, &s.TotalPL, &s.TotalPLPct, &s.PeakValue,
		&s.Drawdown, &s.DrawdownPct, &s.NumHoldings); err != nil {
		return Snapshot{}, err
	}
	s.Date = s.Date.UTC()
	return s, nil
}

// InsertSnapshot appends a snapshot and sets its ID.
func (j queries) InsertSnapshot(ctx context.Context, s *Snapshot) error {
	if s.Date.IsZero() {
		s.Date = j.now()
	}
	res, err := j.q.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots
		(date, total_value, cash_balance, holdings_value, daily_pl, daily_pl_pct,
		 total_pl, total_pl_pct, peak_value, drawdown, drawdown_pct, num_holdings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts(s.Date), s.TotalValue, s.CashBalance, s.HoldingsValue, s.DailyPL, s.DailyPLPct,
		s.TotalPL, s.TotalPLPct, s.PeakValue, s.Drawdown, s.DrawdownPct, s.NumHoldings,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

// LatestSnapshot returns the most recent snapshot or ErrNotFound.
func (j queries) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	row := j.q.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM portfolio_snapshots
		ORDER BY date DESC, id DESC LIMIT 1`)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot: %w", ErrNotFound)
	}
	return s, err
}

// ListSnapshots returns the newest snapshots first.
func (j queries) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := j.q.QueryContext(ctx, `SELECT `+snapshotColumns+` FROM portfolio_snapshots
		ORDER BY date DESC, id DESC LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
