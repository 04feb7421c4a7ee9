package risk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/equitrader/config"
	"github.com/rustyeddy/equitrader/journal"
)

var t0 = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *journal.SQLite) {
	t.Helper()

	store, err := journal.NewSQLite(filepath.Join(t.TempDir(), "risk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetClock(func() time.Time { return t0 })

	policy := PolicyFromConfig(config.Default().Trading)
	e := NewEngine(store, policy, Options{
		Location: time.UTC,
		Now:      func() time.Time { return t0 },
	})
	return e, store
}

func buyRequest() Request {
	return Request{
		Action:          journal.Buy,
		Symbol:          "AAPL",
		Quantity:        3,
		Price:           100,
		AvailableCash:   1000,
		CurrentHoldings: 0,
		PortfolioValue:  1000,
		PeakValue:       1000,
	}
}

func TestPolicyFromConfig(t *testing.T) {
	t.Parallel()

	p := PolicyFromConfig(config.Default().Trading)
	assert.InDelta(t, 330, p.MaxPositionValue, 1e-9)
	assert.Equal(t, 2, p.MaxHoldings)
	assert.Equal(t, -15.0, p.MaxDrawdownPct)
	assert.Equal(t, 4, p.MaxDailyTrades)
	assert.Equal(t, 3, p.MaxDayTrades)
}

func TestPreTradeCheckAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, _ := newTestEngine(t)
	d, err := e.PreTradeCheck(ctx, buyRequest())
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Empty(t, d.Violations)
	assert.Equal(t,
		"Drawdown OK: 0.0% | Daily trades OK (0/4) | PDT OK (0/3 day trades) | Holdings OK (0/2) | Position size $300.00 OK",
		d.Reason())
}

func TestPreTradeCheckSellSkipsPositionChecks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, _ := newTestEngine(t)
	r := buyRequest()
	r.Action = journal.Sell
	r.Quantity = 50 // larger than any buy limit
	r.CurrentHoldings = 2
	r.AvailableCash = 0

	d, err := e.PreTradeCheck(ctx, r)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Len(t, d.Passed, 3)
}

func TestPreTradeCheckRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Request)
		code   string
		reason string
	}{
		{
			name:   "max holdings",
			modify: func(r *Request) { r.CurrentHoldings = 2 },
			code:   CodeMaxHoldings,
			reason: "At max holdings (2/2)",
		},
		{
			name:   "position too large",
			modify: func(r *Request) { r.Quantity = 4 },
			code:   CodePositionTooLarge,
			reason: "Position $400.00 exceeds max $330.00",
		},
		{
			name:   "insufficient cash",
			modify: func(r *Request) { r.AvailableCash = 250 },
			code:   CodeInsufficientCash,
			reason: "Position $300.00 exceeds available cash $250.00",
		},
		{
			name:   "invalid quantity",
			modify: func(r *Request) { r.Quantity = 0 },
			code:   CodeInvalidOrder,
			reason: "Invalid order: 0 @ $100.00",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, _ := newTestEngine(t)
			r := buyRequest()
			tt.modify(&r)

			d, err := e.PreTradeCheck(context.Background(), r)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, tt.code, d.Code())
			assert.Equal(t, tt.reason, d.Reason())
		})
	}
}

func TestPreTradeCheckNoPeakPasses(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	r := buyRequest()
	r.PeakValue = 0

	d, err := e.PreTradeCheck(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "No peak value recorded", d.Passed[0])
}

func TestDrawdownBreakerStaysPaused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, store := newTestEngine(t)
	r := buyRequest()
	r.PortfolioValue = 1000
	r.PeakValue = 1200

	d, err := e.PreTradeCheck(ctx, r)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.Paused)
	assert.Equal(t, CodeMaxDrawdown, d.Code())
	assert.Equal(t, "Max drawdown reached: -16.7% (limit: -15%)", d.Reason())
	assert.InDelta(t, -16.667, d.DrawdownPct, 0.001)

	paused, reason, err := e.IsPaused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, d.Reason(), reason)

	// A healthy portfolio is still blocked until Resume.
	d, err = e.PreTradeCheck(ctx, buyRequest())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeTradingPaused, d.Code())
	assert.Equal(t, "Trading paused: Max drawdown reached: -16.7% (limit: -15%)", d.Reason())

	require.NoError(t, e.Resume(ctx))

	d, err = e.PreTradeCheck(ctx, buyRequest())
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	entries, err := store.ListAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.AuditTradingResumed, entries[0].ActionType)
	assert.Equal(t, journal.AuditTradingPaused, entries[1].ActionType)
	assert.Equal(t, "Trading paused: Max drawdown reached: -16.7% (limit: -15%)", entries[1].Description)
}

func TestDailyTradeLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, store := newTestEngine(t)
	// yesterday does not count
	insertTradeAt(t, store, "MSFT", journal.Buy, t0.Add(-24*time.Hour))
	for i := 0; i < 4; i++ {
		insertTradeAt(t, store, "AAPL", journal.Buy, t0.Add(-time.Duration(i+1)*time.Minute))
	}

	d, err := e.PreTradeCheck(ctx, buyRequest())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeDailyTradeLimit, d.Code())
	assert.Equal(t, "Daily trade limit reached (4/4)", d.Reason())
}

func TestPDTFourthTradeFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, store := newTestEngine(t)
	for day := 1; day <= 3; day++ {
		open := t0.AddDate(0, 0, -day).Add(-2 * time.Hour)
		insertTradeAt(t, store, "AAPL", journal.Buy, open)
		insertTradeAt(t, store, "AAPL", journal.Sell, open.Add(time.Hour))
	}

	d, err := e.PreTradeCheck(ctx, buyRequest())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodePDTLimit, d.Code())
	assert.Equal(t, "PDT limit reached (3/3 day trades in 5 days)", d.Reason())
}

func TestPDTIgnoresTradesOutsideWindow(t *testing.T) {
	t.Parallel()

	e, store := newTestEngine(t)
	for day := 8; day <= 10; day++ {
		open := t0.AddDate(0, 0, -day)
		insertTradeAt(t, store, "AAPL", journal.Buy, open)
		insertTradeAt(t, store, "AAPL", journal.Sell, open.Add(time.Hour))
	}

	d, err := e.PreTradeCheck(context.Background(), buyRequest())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, _ := newTestEngine(t)

	s, err := e.Status(ctx, 1000, 1200, 1)
	require.NoError(t, err)
	assert.False(t, s.Paused)
	assert.False(t, s.DrawdownOK)
	assert.True(t, s.DailyOK)
	assert.True(t, s.PDTOK)
	assert.True(t, s.HoldingsOK)
	assert.Equal(t, "Holdings OK (1/2)", s.Holdings)
	assert.False(t, s.CanTrade)

	// Status never pauses.
	paused, _, err := e.IsPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	require.NoError(t, e.Pause(ctx, "manual"))
	s, err = e.Status(ctx, 1000, 1000, 0)
	require.NoError(t, err)
	assert.True(t, s.Paused)
	assert.Equal(t, "manual", s.PauseReason)
	require.NotNil(t, s.PausedAt)
	assert.True(t, s.PausedAt.Equal(t0))
	assert.False(t, s.CanTrade)
}

func TestPauseRollsBackWithoutAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, store := newTestEngine(t)
	_, err := store.DB().Exec(`DROP TABLE audit_log`)
	require.NoError(t, err)

	require.Error(t, e.Pause(ctx, "manual"))

	paused, reason, err := e.IsPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)
	assert.Empty(t, reason)
	_, ok, err := store.GetState(ctx, journal.StatePauseReason)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResumeRollsBackWithoutAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, store := newTestEngine(t)
	require.NoError(t, e.Pause(ctx, "manual"))
	_, err := store.DB().Exec(`DROP TABLE audit_log`)
	require.NoError(t, err)

	require.Error(t, e.Resume(ctx))

	paused, reason, err := e.IsPaused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, "manual", reason)
}

func insertTradeAt(t *testing.T, store *journal.SQLite, symbol string, action journal.Action, at time.Time) {
	t.Helper()

	tr := &journal.Trade{
		Symbol:     symbol,
		Action:     action,
		Quantity:   1,
		Price:      100,
		TotalValue: 100,
		ExecutedAt: at,
	}
	require.NoError(t, store.InsertTrade(context.Background(), tr))
}
