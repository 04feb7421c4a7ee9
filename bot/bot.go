// Package bot schedules the scan cycle: exits first, then entries, each
// followed by approval and execution.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rustyeddy/equitrader/approval"
	"github.com/rustyeddy/equitrader/executor"
	"github.com/rustyeddy/equitrader/id"
	"github.com/rustyeddy/equitrader/internal/logger"
	itrace "github.com/rustyeddy/equitrader/internal/trace"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/market"
	"github.com/rustyeddy/equitrader/monitoring"
	"github.com/rustyeddy/equitrader/notify"
	"github.com/rustyeddy/equitrader/portfolio"
	"github.com/rustyeddy/equitrader/risk"
	"github.com/rustyeddy/equitrader/strategy"
)

const (
	DefaultScanInterval  = 15 * time.Minute
	DefaultQuickInterval = 5 * time.Minute
)

// Deps is every component the scanner drives. It is built once at startup.
type Deps struct {
	Hours     *market.Hours
	Risk      *risk.Engine
	Portfolio *portfolio.Ledger
	Buy       *strategy.BuyGenerator
	Sell      *strategy.SellGenerator
	StopLoss  *strategy.StopLossMonitor
	Approval  *approval.Coordinator
	Executor  *executor.Executor
	Channel   notify.Channel

	Health  *monitoring.Health
	Metrics *monitoring.Metrics
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Now     func() time.Time
}

type Options struct {
	ScanInterval  time.Duration
	QuickInterval time.Duration // stop-loss checks between scans
	DailySummary  bool
}

// Report is what one scan did.
type Report struct {
	ScanID    string
	Skipped   string
	Sells     []journal.Signal
	Buys      []journal.Signal
	Approvals approval.Counts
	Results   []executor.Result
	Snapshot  *journal.Snapshot
	Errors    []error
}

// Executed counts successful fills.
func (r Report) Executed() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

type Scanner struct {
	Deps
	opts Options

	lastSummary string // exchange date of the last daily summary
}

func NewScanner(d Deps, opts Options) *Scanner {
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Tracer == nil {
		d.Tracer = itrace.Noop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	if opts.QuickInterval <= 0 {
		opts.QuickInterval = DefaultQuickInterval
	}
	return &Scanner{Deps: d, opts: opts}
}

// Scan runs one full cycle. It is skipped outside market hours unless
// forced, and while trading is paused. A failing step is logged and
// recorded in the report; later steps still run.
func (s *Scanner) Scan(ctx context.Context, force bool) (Report, error) {
	r := Report{ScanID: id.New()}
	ctx, span := s.Tracer.Start(ctx, "bot.scan", trace.WithAttributes(
		attribute.String("scan.id", r.ScanID),
		attribute.Bool("force", force),
	))
	defer span.End()

	log := s.Logger.With(slog.String("scan_id", r.ScanID))
	timer := logger.StartOperation(ctx, log, "scan")
	defer timer.Stop(ctx)

	if reason, skip, err := s.skip(ctx, force); err != nil || skip {
		r.Skipped = reason
		if skip {
			log.InfoContext(ctx, "scan skipped", slog.String("reason", reason))
			s.Metrics.ScanCompleted("skipped")
		}
		return r, err
	}

	sells, err := s.Sell.Generate(ctx)
	s.step(ctx, log, &r, "sell signals", err)
	r.Sells = sells
	s.process(ctx, log, &r)

	buys, err := s.Buy.Generate(ctx)
	s.step(ctx, log, &r, "buy signals", err)
	r.Buys = buys
	s.process(ctx, log, &r)

	snap, err := s.Portfolio.TakeSnapshot(ctx)
	s.step(ctx, log, &r, "snapshot", err)
	if err == nil {
		r.Snapshot = &snap
	}

	outcome := "ok"
	if len(r.Errors) > 0 {
		outcome = "errors"
	}
	s.Metrics.ScanCompleted(outcome)
	s.Health.ScanFinished(s.Now(), r.Err())
	span.SetAttributes(
		attribute.Int("signals.sell", len(r.Sells)),
		attribute.Int("signals.buy", len(r.Buys)),
		attribute.Int("executed", r.Executed()),
	)
	log.InfoContext(ctx, "scan complete",
		slog.Int("sells", len(r.Sells)), slog.Int("buys", len(r.Buys)),
		slog.Int("executed", r.Executed()), slog.Int("errors", len(r.Errors)))
	return r, nil
}

// QuickCheck runs the stop-loss monitor and pushes any triggers through
// approval and execution.
func (s *Scanner) QuickCheck(ctx context.Context, force bool) (Report, error) {
	r := Report{ScanID: id.New()}
	ctx, span := s.Tracer.Start(ctx, "bot.quick_check")
	defer span.End()

	log := s.Logger.With(slog.String("scan_id", r.ScanID))
	if reason, skip, err := s.skip(ctx, force); err != nil || skip {
		r.Skipped = reason
		return r, err
	}

	sells, err := s.StopLoss.Check(ctx)
	s.step(ctx, log, &r, "stop-loss check", err)
	r.Sells = sells
	if len(sells) > 0 {
		s.process(ctx, log, &r)
	}
	return r, nil
}

// DailySummary snapshots the portfolio and sends the day's numbers.
func (s *Scanner) DailySummary(ctx context.Context) error {
	snap, err := s.Portfolio.TakeSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("daily summary: %w", err)
	}

	msg := notify.FormatDailySummary(notify.Summary{
		TotalValue:  snap.TotalValue,
		Cash:        snap.CashBalance,
		NumHoldings: snap.NumHoldings,
		DailyPL:     snap.DailyPL,
		DailyPLPct:  snap.DailyPLPct,
		TotalPL:     snap.TotalPL,
		TotalPLPct:  snap.TotalPLPct,
	})
	err = s.Channel.Send(ctx, msg)
	s.Metrics.NotificationSent(err)
	if err != nil {
		return fmt.Errorf("send daily summary: %w", err)
	}
	s.Logger.InfoContext(ctx, "daily summary sent", slog.Float64("total_value", snap.TotalValue))
	return nil
}

// Run scans every scan interval and checks stop-losses every quick
// interval until ctx is cancelled. All work happens on this goroutine.
func (s *Scanner) Run(ctx context.Context) error {
	s.startup(ctx)

	scan := time.NewTicker(s.opts.ScanInterval)
	defer scan.Stop()
	quick := time.NewTicker(s.opts.QuickInterval)
	defer quick.Stop()

	s.runScan(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Logger.InfoContext(ctx, "scanner stopped")
			return nil
		case <-scan.C:
			s.runScan(ctx)
		case <-quick.C:
			if _, err := s.QuickCheck(ctx, false); err != nil {
				logger.ErrorWithErr(ctx, s.Logger, "quick check", err)
			}
		}
	}
}

func (s *Scanner) runScan(ctx context.Context) {
	if _, err := s.Scan(ctx, false); err != nil {
		logger.ErrorWithErr(ctx, s.Logger, "scan", err)
		s.Health.ScanFinished(s.Now(), err)
	}
	s.maybeSummary(ctx)
}

// maybeSummary sends the daily summary once per trading day after close.
func (s *Scanner) maybeSummary(ctx context.Context) {
	now := s.Now()
	if !s.opts.DailySummary || !s.Hours.AfterClose(now) {
		return
	}
	day := now.In(s.Hours.Location()).Format(time.DateOnly)
	if day == s.lastSummary {
		return
	}
	if err := s.DailySummary(ctx); err != nil {
		logger.ErrorWithErr(ctx, s.Logger, "daily summary", err)
		return
	}
	s.lastSummary = day
}

func (s *Scanner) startup(ctx context.Context) {
	mode := "LIVE"
	if s.Executor.Paper() {
		mode = "PAPER"
	}
	n, err := s.Portfolio.HoldingCount(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, s.Logger, "count holdings", err)
	}
	now := s.Now().In(s.Hours.Location())
	err = s.Channel.Send(ctx, notify.FormatStartup(mode, s.Portfolio.Cash(), n, now))
	s.Metrics.NotificationSent(err)
	if err != nil {
		logger.ErrorWithErr(ctx, s.Logger, "send startup notice", err)
	}
	s.Logger.InfoContext(ctx, "scanner started",
		slog.String("mode", mode),
		slog.Duration("scan_interval", s.opts.ScanInterval),
		slog.Duration("quick_interval", s.opts.QuickInterval))
}

// skip reports why a cycle should not run.
func (s *Scanner) skip(ctx context.Context, force bool) (string, bool, error) {
	if !force && !s.Hours.IsOpen(s.Now()) {
		return "Outside market hours", true, nil
	}
	paused, reason, err := s.Risk.IsPaused(ctx)
	if err != nil {
		return "", false, err
	}
	s.Health.SetPaused(paused)
	if paused {
		return "Trading paused: " + reason, true, nil
	}
	return "", false, nil
}

// process asks for approval on pending signals and executes the approved
// ones.
func (s *Scanner) process(ctx context.Context, log *slog.Logger, r *Report) {
	n, err := s.Approval.ProcessPending(ctx)
	s.step(ctx, log, r, "approvals", err)
	r.Approvals.Approved += n.Approved
	r.Approvals.Rejected += n.Rejected
	r.Approvals.Expired += n.Expired
	r.Approvals.Modified += n.Modified
	r.Approvals.Errors += n.Errors

	results, err := s.Executor.ExecuteApproved(ctx)
	s.step(ctx, log, r, "execute", err)
	for _, res := range results {
		if res.Success {
			log.InfoContext(ctx, "trade executed", slog.Int64("signal_id", res.SignalID), slog.String("message", res.Message))
		} else {
			log.WarnContext(ctx, "trade not executed", slog.Int64("signal_id", res.SignalID), slog.String("message", res.Message))
		}
	}
	r.Results = append(r.Results, results...)
}

func (s *Scanner) step(ctx context.Context, log *slog.Logger, r *Report, name string, err error) {
	if err == nil {
		return
	}
	logger.ErrorWithErr(ctx, log, name+" failed", err)
	r.Errors = append(r.Errors, fmt.Errorf("%s: %w", name, err))
}
