package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Fixed-width UTC layout so that string comparison in SQL matches
// chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

func ts(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func ptrTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func ptrInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func ptrFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// queries holds every read and write so they run the same way against the
// database or inside a transaction.
type queries struct {
	q   querier
	now func() time.Time
}

// SQLite is the persistent store for signals, trades, holdings, snapshots,
// trading state and the audit log.
type SQLite struct {
	queries
	db *sql.DB
}

// Tx is a store transaction handed to WithTx callbacks.
type Tx struct {
	queries
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{queries: queries{q: db, now: time.Now}, db: db}, nil
}

// SetClock replaces the time source used for created_at style columns.
func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}

// DB exposes the underlying handle for tests and ad-hoc queries.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// WithTx runs fn in a transaction. It commits when fn returns nil and
// rolls back on error or panic.
func (s *SQLite) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&Tx{queries{q: sqlTx, now: s.now}}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetState returns the value for key and whether it was set.
func (j queries) GetState(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := j.q.QueryRowContext(ctx, `SELECT value FROM trading_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (j queries) SetState(ctx context.Context, key, value string) error {
	_, err := j.q.ExecContext(ctx, `
		INSERT INTO trading_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, ts(j.now()),
	)
	return err
}

func (j queries) DeleteState(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := j.q.ExecContext(ctx, `DELETE FROM trading_state WHERE key = ?`, k); err != nil {
			return err
		}
	}
	return nil
}

// Audit appends an entry to the audit log. CreatedAt defaults to now.
func (j queries) Audit(ctx context.Context, e AuditEntry) error {
	var extra any
	if len(e.Extra) > 0 {
		b, err := json.Marshal(e.Extra)
		if err != nil {
			return fmt.Errorf("marshal audit extra: %w", err)
		}
		extra = string(b)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}

	_, err := j.q.ExecContext(ctx, `
		INSERT INTO audit_log
		(action_type, symbol, description, trade_id, signal_id, extra_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ActionType, e.Symbol, e.Description, e.TradeID, e.SignalID, extra, ts(e.CreatedAt),
	)
	return err
}

// ListAudit returns the newest entries first.
func (j queries) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := j.q.QueryContext(ctx, `
		SELECT id, action_type, symbol, description, trade_id, signal_id, extra_data, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e        AuditEntry
			tradeID  sql.NullInt64
			signalID sql.NullInt64
			extra    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActionType, &e.Symbol, &e.Description,
			&tradeID, &signalID, &extra, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TradeID = ptrInt64(tradeID)
		e.SignalID = ptrInt64(signalID)
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &e.Extra); err != nil {
				return nil, fmt.Errorf("audit %d extra: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
