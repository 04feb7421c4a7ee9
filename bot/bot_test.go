package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/equitrader/approval"
	"github.com/rustyeddy/equitrader/config"
	"github.com/rustyeddy/equitrader/executor"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/market"
	"github.com/rustyeddy/equitrader/monitoring"
	"github.com/rustyeddy/equitrader/notify"
	"github.com/rustyeddy/equitrader/portfolio"
	"github.com/rustyeddy/equitrader/risk"
	"github.com/rustyeddy/equitrader/signals"
	"github.com/rustyeddy/equitrader/strategy"
)

const chatID = "1"

var (
	// Wednesday 11:00 in New York
	marketOpen = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	// Wednesday 17:00 in New York
	afterClose = time.Date(2024, 3, 13, 21, 0, 0, 0, time.UTC)
	// Saturday
	weekend = time.Date(2024, 3, 16, 15, 0, 0, 0, time.UTC)
)

type harness struct {
	scanner *Scanner
	quotes  *market.QuoteStore
	channel *notify.Memory
	deps    Deps
}

// newHarness wires the whole pipeline on paper. Every approval request is
// answered with reply. Clocks are real except the scanner's, which is at.
func newHarness(t *testing.T, at time.Time, reply string, src strategy.Source) *harness {
	t.Helper()

	store, err := journal.NewSQLite(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	hours, err := cfg.Market.Hours()
	require.NoError(t, err)

	quotes := market.NewQuoteStore()
	ch := notify.NewMemory()
	ch.OnSend = func(text string) {
		if strings.HasPrefix(text, "*TRADE APPROVAL") {
			ch.Reply(chatID, reply)
		}
	}

	sl := signals.NewLedger(store, cfg.Trading, signals.Options{})
	pf := portfolio.New(store, quotes, cfg.Trading, portfolio.Options{})
	re := risk.NewEngine(store, risk.PolicyFromConfig(cfg.Trading), risk.Options{Location: hours.Location()})
	sd := strategy.Deps{Store: store, Signals: sl, Portfolio: pf, Risk: re, Trading: cfg.Trading}

	d := Deps{
		Hours:     hours,
		Risk:      re,
		Portfolio: pf,
		Buy:       strategy.NewBuyGenerator(sd, src),
		Sell:      strategy.NewSellGenerator(sd),
		StopLoss:  strategy.NewStopLossMonitor(sd, ch),
		Approval:  approval.NewCoordinator(ch, sl, approval.Options{ChatID: chatID, PollInterval: 10 * time.Millisecond}),
		Executor: executor.New(sl, pf, re, nil, ch, executor.Options{
			StopLossPct:   cfg.Trading.StopLossPct,
			TakeProfitPct: cfg.Trading.TakeProfitPct,
		}),
		Channel: ch,
		Health:  monitoring.NewHealth(),
		Now:     func() time.Time { return at },
	}
	return &harness{
		scanner: NewScanner(d, Options{ScanInterval: 20 * time.Millisecond, QuickInterval: time.Hour, DailySummary: true}),
		quotes:  quotes,
		channel: ch,
		deps:    d,
	}
}

func TestScanFullCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newHarness(t, marketOpen, "Y", strategy.StaticSource{{Symbol: "MSFT", Price: 200, Score: 90}})
	_, err := h.deps.Portfolio.RecordBuy(ctx, portfolio.Fill{Symbol: "AAPL", Quantity: 3, Price: 100})
	require.NoError(t, err)
	h.quotes.Set("AAPL", 94)
	h.quotes.Set("MSFT", 200)

	r, err := h.scanner.Scan(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, r.Skipped)
	assert.NoError(t, r.Err())
	assert.NotEmpty(t, r.ScanID)

	require.Len(t, r.Sells, 1)
	assert.Equal(t, "AAPL", r.Sells[0].Symbol)
	require.Len(t, r.Buys, 1)
	assert.Equal(t, "MSFT", r.Buys[0].Symbol)
	assert.Equal(t, 2, r.Approvals.Approved)
	assert.Equal(t, 2, r.Executed())

	// 1000 - 300 + 282 - 200
	assert.InDelta(t, 782, h.deps.Portfolio.Cash(), 1e-9)
	require.NotNil(t, r.Snapshot)
	assert.InDelta(t, 982, r.Snapshot.TotalValue, 1e-9)
	assert.Equal(t, 1, r.Snapshot.NumHoldings)
}

func TestScanRejectedSignalsAreNotExecuted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newHarness(t, marketOpen, "N", strategy.StaticSource{{Symbol: "MSFT", Price: 200, Score: 90}})

	r, err := h.scanner.Scan(ctx, false)
	require.NoError(t, err)
	require.Len(t, r.Buys, 1)
	assert.Equal(t, 1, r.Approvals.Rejected)
	assert.Zero(t, r.Executed())
	assert.InDelta(t, 1000, h.deps.Portfolio.Cash(), 1e-9)
}

func TestScanSkips(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, weekend, "Y", strategy.StaticSource{})
		r, err := h.scanner.Scan(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "Outside market hours", r.Skipped)
	})

	t.Run("forced", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, weekend, "Y", strategy.StaticSource{})
		r, err := h.scanner.Scan(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, r.Skipped)
		assert.NotNil(t, r.Snapshot)
	})

	t.Run("paused", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, marketOpen, "Y", strategy.StaticSource{})
		require.NoError(t, h.deps.Risk.Pause(ctx, "operator"))
		r, err := h.scanner.Scan(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, "Trading paused: operator", r.Skipped)
		assert.Equal(t, "paused", h.deps.Health.Status().Status)
	})
}

func TestScanStepErrorDoesNotAbort(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	missing := strategy.FileSource{Path: filepath.Join(t.TempDir(), "none.yaml")}
	h := newHarness(t, marketOpen, "Y", missing)

	r, err := h.scanner.Scan(ctx, false)
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	assert.ErrorContains(t, r.Err(), "buy signals")
	assert.NotNil(t, r.Snapshot)
	assert.Equal(t, "degraded", h.deps.Health.Status().Status)
}

func TestQuickCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newHarness(t, marketOpen, "Y", strategy.StaticSource{})
	_, err := h.deps.Portfolio.RecordBuy(ctx, portfolio.Fill{Symbol: "AAPL", Quantity: 3, Price: 100})
	require.NoError(t, err)
	h.quotes.Set("AAPL", 90)

	r, err := h.scanner.QuickCheck(ctx, false)
	require.NoError(t, err)
	require.Len(t, r.Sells, 1)
	assert.Equal(t, 1, r.Executed())

	sent := h.channel.Sent()
	require.NotEmpty(t, sent)
	assert.Contains(t, sent[0], "*STOP-LOSS TRIGGERED*")
}

func TestDailySummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newHarness(t, afterClose, "Y", strategy.StaticSource{})
	require.NoError(t, h.scanner.DailySummary(ctx))

	sent := h.channel.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "*DAILY SUMMARY*")
	assert.Contains(t, sent[0], "Total Value: $1,000.00")
}

func TestRunSendsOneSummaryAfterClose(t *testing.T) {
	t.Parallel()

	h := newHarness(t, afterClose, "Y", strategy.StaticSource{})
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	require.NoError(t, h.scanner.Run(ctx))

	var startup, summaries int
	for _, m := range h.channel.Sent() {
		switch {
		case strings.HasPrefix(m, "*TRADER STARTED*"):
			startup++
		case strings.HasPrefix(m, "*DAILY SUMMARY*"):
			summaries++
		}
	}
	assert.Equal(t, 1, startup)
	assert.Equal(t, 1, summaries)
}
