package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const signalColumns = `id, symbol, action, suggested_price, suggested_quantity, reason, status, urgent,
	created_at, expires_at, sms_sent_at, user_response, responded_at, trade_id, note`

func scanSignal(sc scanner) (Signal, error) {
	var (
		s         Signal
		sent      sql.NullTime
		responded sql.NullTime
		tradeID   sql.NullInt64
	)
	err := sc.Scan(&s.ID, &s.Symbol, &s.Action, &s.SuggestedPrice, &s.SuggestedQuantity,
		&s.Reason, &s.Status, &s.Urgent, &s.CreatedAt, &s.ExpiresAt, &sent,
		&s.UserResponse, &responded, &tradeID, &s.Note)
	if err != nil {
		return Signal{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.SMSSentAt = ptrTime(sent)
	s.RespondedAt = ptrTime(responded)
	s.TradeID = ptrInt64(tradeID)
	return s, nil
}

// CreateSignal inserts s and sets its ID. A zero Status becomes PENDING.
func (j queries) CreateSignal(ctx context.Context, s *Signal) error {
	if s.Status == "" {
		s.Status = Pending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = j.now()
	}
	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("signal %s %s: expires_at is required", s.Action, s.Symbol)
	}

	res, err := j.q.ExecContext(ctx, `
		INSERT INTO signals
		(symbol, action, suggested_price, suggested_quantity, reason, status, urgent, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Symbol, s.Action, s.SuggestedPrice, s.SuggestedQuantity, s.Reason, s.Status,
		s.Urgent, ts(s.CreatedAt), ts(s.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

// GetSignal returns a single signal by ID.
func (j queries) GetSignal(ctx context.Context, id int64) (Signal, error) {
	row := j.q.QueryRowContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = ?`, id)
	s, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Signal{}, fmt.Errorf("signal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Signal{}, fmt.Errorf("signal %d: %w", id, err)
	}
	return s, nil
}

// ListSignals returns signals in creation order, filtered to the given
// statuses when any are passed.
func (j queries) ListSignals(ctx context.Context, st ...Status) ([]Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals`
	var args []any
	if len(st) > 0 {
		marks := make([]string, len(st))
		for i, s := range st {
			marks[i] = "?"
			args = append(args, s)
		}
		query += ` WHERE status IN (` + strings.Join(marks, ",") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	return j.listSignals(ctx, query, args...)
}

// ListExpiredSignals returns PENDING signals whose expires_at is at or before now.
func (j queries) ListExpiredSignals(ctx context.Context, now time.Time) ([]Signal, error) {
	return j.listSignals(ctx, `SELECT `+signalColumns+` FROM signals
		WHERE status = ? AND expires_at <= ?
		ORDER BY id ASC`, Pending, ts(now))
}

func (j queries) listSignals(ctx context.Context, query string, args ...any) ([]Signal, error) {
	rows, err := j.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		s, err := scanSignal(rows)
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

// TransitionSignal moves signal id from one status to another and writes
// the optional update fields. It only succeeds when the stored status is
// still from; otherwise it returns ErrStaleTransition.
func (j queries) TransitionSignal(ctx context.Context, id int64, from, to Status, u SignalUpdate) error {
	if _, err := to.Value(); err != nil {
		return err
	}

	sets := []string{"status = ?"}
	args := []any{to}
	if u.UserResponse != nil {
		sets = append(sets, "user_response = ?")
		args = append(args, *u.UserResponse)
	}
	if u.RespondedAt != nil {
		sets = append(sets, "responded_at = ?")
		args = append(args, ts(*u.RespondedAt))
	}
	if u.TradeID != nil {
		sets = append(sets, "trade_id = ?")
		args = append(args, *u.TradeID)
	}
	if u.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *u.Note)
	}
	args = append(args, id, from)

	res, err := j.q.ExecContext(ctx,
		`UPDATE signals SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return fmt.Errorf("transition signal %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("signal %d %s -> %s: %w", id, from, to, ErrStaleTransition)
	}
	return nil
}

// MarkSignalSent records when the approval request went out. Only the
// first call has an effect.
func (j queries) MarkSignalSent(ctx context.Context, id int64, at time.Time) error {
	_, err := j.q.ExecContext(ctx,
		`UPDATE signals SET sms_sent_at = ? WHERE id = ? AND sms_sent_at IS NULL`, ts(at), id)
	return err
}
