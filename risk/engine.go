package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/monitoring"
)

// Store is the slice of the journal the engine reads and writes.
type Store interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
	DeleteState(ctx context.Context, keys ...string) error
	Audit(ctx context.Context, e journal.AuditEntry) error
	CountTradesSince(ctx context.Context, since time.Time) (int, error)
	ListTradesSince(ctx context.Context, since time.Time) ([]journal.Trade, error)
	WithTx(ctx context.Context, fn func(tx *journal.Tx) error) error
}

// Engine gates every trade against the policy and owns the persisted
// trading pause.
type Engine struct {
	store   Store
	policy  Policy
	loc     *time.Location
	log     *slog.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

type Options struct {
	Location *time.Location // exchange timezone for day boundaries
	Logger   *slog.Logger
	Metrics  *monitoring.Metrics
	Now      func() time.Time
}

func NewEngine(store Store, policy Policy, opts Options) *Engine {
	e := &Engine{
		store:   store,
		policy:  policy,
		loc:     opts.Location,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) Policy() Policy { return e.policy }

// PreTradeCheck runs the checks in order and stops at the first failure.
// A drawdown breach persists the pause before rejecting.
func (e *Engine) PreTradeCheck(ctx context.Context, r Request) (Decision, error) {
	d := Decision{Allowed: true}

	paused, reason, err := e.IsPaused(ctx)
	if err != nil {
		return d, err
	}
	if paused {
		d.add(CodeTradingPaused, "Trading paused: "+reason)
		return e.rejected(ctx, r, d), nil
	}

	if r.Quantity <= 0 || r.Price <= 0 {
		d.add(CodeInvalidOrder, fmt.Sprintf("Invalid order: %d @ $%.2f", r.Quantity, r.Price))
		return e.rejected(ctx, r, d), nil
	}

	ok, pct, msg := checkDrawdown(e.policy, r.PortfolioValue, r.PeakValue)
	d.DrawdownPct = pct
	if !ok {
		if err := e.Pause(ctx, msg); err != nil {
			return d, err
		}
		d.Paused = true
		d.add(CodeMaxDrawdown, msg)
		return e.rejected(ctx, r, d), nil
	}
	d.pass(msg)

	today, err := e.store.CountTradesSince(ctx, e.startOfDay())
	if err != nil {
		return d, fmt.Errorf("count daily trades: %w", err)
	}
	ok, msg = checkDailyTrades(e.policy, today)
	if !ok {
		d.add(CodeDailyTradeLimit, msg)
		return e.rejected(ctx, r, d), nil
	}
	d.pass(msg)

	dayTrades, err := e.dayTrades(ctx)
	if err != nil {
		return d, err
	}
	ok, msg = checkDayTrades(e.policy, dayTrades)
	if !ok {
		d.add(CodePDTLimit, msg)
		return e.rejected(ctx, r, d), nil
	}
	d.pass(msg)

	if r.Action == journal.Buy {
		ok, msg = checkHoldings(e.policy, r.CurrentHoldings)
		if !ok {
			d.add(CodeMaxHoldings, msg)
			return e.rejected(ctx, r, d), nil
		}
		d.pass(msg)

		var code string
		code, msg = checkPositionSize(e.policy, r.Price, r.Quantity, r.AvailableCash)
		if code != "" {
			d.add(code, msg)
			return e.rejected(ctx, r, d), nil
		}
		d.pass(msg)
	}

	return d, nil
}

func (e *Engine) rejected(ctx context.Context, r Request, d Decision) Decision {
	e.metrics.RiskRejected(d.Code())
	logger.Risk(ctx, e.log, r.Symbol, "rejected",
		slog.String("action", string(r.Action)),
		slog.String("code", d.Code()),
		slog.String("reason", d.Reason()),
	)
	return d
}

// Pause persists the trading pause. It stays set until Resume. The flag,
// its reason and the audit row commit together.
func (e *Engine) Pause(ctx context.Context, reason string) error {
	now := e.now()
	err := e.store.WithTx(ctx, func(tx *journal.Tx) error {
		if err := tx.SetState(ctx, journal.StateTradingPaused, "true"); err != nil {
			return fmt.Errorf("set pause flag: %w", err)
		}
		if err := tx.SetState(ctx, journal.StatePauseReason, reason); err != nil {
			return fmt.Errorf("set pause reason: %w", err)
		}
		if err := tx.SetState(ctx, journal.StatePausedAt, now.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("set paused at: %w", err)
		}
		return tx.Audit(ctx, journal.AuditEntry{
			ActionType:  journal.AuditTradingPaused,
			Description: "Trading paused: " + reason,
		})
	})
	if err != nil {
		return fmt.Errorf("pause trading: %w", err)
	}

	e.metrics.SetPaused(true)
	logger.Risk(ctx, e.log, "", "paused", slog.String("reason", reason))
	return nil
}

// Resume clears the pause.
func (e *Engine) Resume(ctx context.Context) error {
	err := e.store.WithTx(ctx, func(tx *journal.Tx) error {
		if err := tx.SetState(ctx, journal.StateTradingPaused, "false"); err != nil {
			return fmt.Errorf("clear pause flag: %w", err)
		}
		if err := tx.DeleteState(ctx, journal.StatePauseReason, journal.StatePausedAt); err != nil {
			return fmt.Errorf("clear pause reason: %w", err)
		}
		return tx.Audit(ctx, journal.AuditEntry{
			ActionType:  journal.AuditTradingResumed,
			Description: "Trading resumed",
		})
	})
	if err != nil {
		return fmt.Errorf("resume trading: %w", err)
	}

	e.metrics.SetPaused(false)
	e.log.InfoContext(ctx, "trading resumed")
	return nil
}

// IsPaused reports the persisted pause flag and its reason.
func (e *Engine) IsPaused(ctx context.Context) (bool, string, error) {
	v, ok, err := e.store.GetState(ctx, journal.StateTradingPaused)
	if err != nil {
		return false, "", fmt.Errorf("read pause flag: %w", err)
	}
	if !ok {
		return false, "", nil
	}
	paused, err := strconv.ParseBool(v)
	if err != nil || !paused {
		return false, "", nil
	}

	reason, _, err := e.store.GetState(ctx, journal.StatePauseReason)
	if err != nil {
		return true, "", fmt.Errorf("read pause reason: %w", err)
	}
	return true, reason, nil
}

// Status is a read-only summary of every check.
type Status struct {
	Paused      bool
	PauseReason string
	PausedAt    *time.Time

	DrawdownOK  bool
	Drawdown    string
	DailyOK     bool
	DailyTrades string
	PDTOK       bool
	PDT         string
	HoldingsOK  bool
	Holdings    string

	CanTrade bool
}

// Status evaluates the checks without side effects. A drawdown breach is
// reported but does not pause.
func (e *Engine) Status(ctx context.Context, value, peak float64, holdings int) (Status, error) {
	var s Status

	paused, reason, err := e.IsPaused(ctx)
	if err != nil {
		return s, err
	}
	s.Paused, s.PauseReason = paused, reason
	if v, ok, err := e.store.GetState(ctx, journal.StatePausedAt); err == nil && ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			s.PausedAt = &t
		}
	}

	s.DrawdownOK, _, s.Drawdown = checkDrawdown(e.policy, value, peak)

	today, err := e.store.CountTradesSince(ctx, e.startOfDay())
	if err != nil {
		return s, fmt.Errorf("count daily trades: %w", err)
	}
	s.DailyOK, s.DailyTrades = checkDailyTrades(e.policy, today)

	dayTrades, err := e.dayTrades(ctx)
	if err != nil {
		return s, err
	}
	s.PDTOK, s.PDT = checkDayTrades(e.policy, dayTrades)
	s.HoldingsOK, s.Holdings = checkHoldings(e.policy, holdings)

	s.CanTrade = !s.Paused && s.DrawdownOK && s.DailyOK && s.PDTOK
	return s, nil
}

func (e *Engine) startOfDay() time.Time {
	y, m, d := e.now().In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

func (e *Engine) dayTrades(ctx context.Context) (int, error) {
	days := e.policy.DayTradeWindowDays
	if days <= 0 {
		days = 7
	}
	trades, err := e.store.ListTradesSince(ctx, e.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("list recent trades: %w", err)
	}
	return CountDayTrades(trades, e.loc), nil
}
