// Package signals owns the signal lifecycle. Every status change goes
// through the transition table and is audited in the same transaction.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/equitrader/config"
	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/monitoring"
)

var ErrIllegalTransition = errors.New("illegal signal transition")

var transitions = map[journal.Status][]journal.Status{
	journal.Pending:  {journal.Approved, journal.Rejected, journal.Expired},
	journal.Approved: {journal.Executed, journal.Cancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to journal.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// writer is satisfied by both *journal.SQLite and *journal.Tx.
type writer interface {
	TransitionSignal(ctx context.Context, id int64, from, to journal.Status, u journal.SignalUpdate) error
	Audit(ctx context.Context, e journal.AuditEntry) error
}

// NewSignal is a proposed trade from a generator.
type NewSignal struct {
	Symbol   string
	Action   journal.Action
	Price    float64
	Quantity int
	Reason   string
	Urgent   bool
}

type Ledger struct {
	store   *journal.SQLite
	trading config.TradingConfig
	log     *slog.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

type Options struct {
	Logger  *slog.Logger
	Metrics *monitoring.Metrics
	Now     func() time.Time
}

func NewLedger(store *journal.SQLite, trading config.TradingConfig, opts Options) *Ledger {
	l := &Ledger{
		store:   store,
		trading: trading,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if l.log == nil {
		l.log = logger.Discard()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Create stores a PENDING signal whose expiry is fixed at creation.
func (l *Ledger) Create(ctx context.Context, ns NewSignal) (journal.Signal, error) {
	if ns.Quantity <= 0 || ns.Price <= 0 {
		return journal.Signal{}, fmt.Errorf("signal %s %s: invalid quantity %d or price %.2f",
			ns.Action, ns.Symbol, ns.Quantity, ns.Price)
	}

	now := l.now()
	s := journal.Signal{
		Symbol:            ns.Symbol,
		Action:            ns.Action,
		SuggestedPrice:    ns.Price,
		SuggestedQuantity: ns.Quantity,
		Reason:            ns.Reason,
		Status:            journal.Pending,
		Urgent:            ns.Urgent,
		CreatedAt:         now,
		ExpiresAt:         now.Add(l.trading.ApprovalTimeout(ns.Urgent)),
	}

	desc := fmt.Sprintf("%s %d x %s @ $%.2f", s.Action, s.SuggestedQuantity, s.Symbol, s.SuggestedPrice)
	err := l.store.WithTx(ctx, func(tx *journal.Tx) error {
		if err := tx.CreateSignal(ctx, &s); err != nil {
			return err
		}
		return tx.Audit(ctx, journal.AuditEntry{
			ActionType:  journal.AuditSignalCreated,
			Symbol:      s.Symbol,
			Description: desc,
			SignalID:    &s.ID,
			Extra:       map[string]any{"reason": s.Reason, "urgent": s.Urgent},
		})
	})
	if err != nil {
		return journal.Signal{}, fmt.Errorf("create signal: %w", err)
	}

	l.metrics.SignalCreated(string(s.Action))
	logger.Signal(ctx, l.log, s.ID, s.Symbol, string(s.Status),
		slog.String("action", string(s.Action)),
		slog.Time("expires_at", s.ExpiresAt),
	)
	return s, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (journal.Signal, error) {
	return l.store.GetSignal(ctx, id)
}

func (l *Ledger) List(ctx context.Context, st ...journal.Status) ([]journal.Signal, error) {
	return l.store.ListSignals(ctx, st...)
}

func (l *Ledger) Pending(ctx context.Context) ([]journal.Signal, error) {
	return l.store.ListSignals(ctx, journal.Pending)
}

func (l *Ledger) Approved(ctx context.Context) ([]journal.Signal, error) {
	return l.store.ListSignals(ctx, journal.Approved)
}

// HasPending reports whether symbol already has a PENDING signal for action.
func (l *Ledger) HasPending(ctx context.Context, symbol string, action journal.Action) (bool, error) {
	pending, err := l.Pending(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range pending {
		if s.Symbol == symbol && s.Action == action {
			return true, nil
		}
	}
	return false, nil
}

// Approve records a YES response.
func (l *Ledger) Approve(ctx context.Context, id int64, response string) (journal.Signal, error) {
	now := l.now()
	return l.transition(ctx, id, journal.Approved, journal.SignalUpdate{
		UserResponse: &response,
		RespondedAt:  &now,
	})
}

// Reject records a NO response.
func (l *Ledger) Reject(ctx context.Context, id int64, response string) (journal.Signal, error) {
	now := l.now()
	return l.transition(ctx, id, journal.Rejected, journal.SignalUpdate{
		UserResponse: &response,
		RespondedAt:  &now,
	})
}

// Expire times out a PENDING signal. Expiring an EXPIRED signal is a no-op.
func (l *Ledger) Expire(ctx context.Context, id int64) error {
	s, err := l.store.GetSignal(ctx, id)
	if err != nil {
		return err
	}
	if s.Status == journal.Expired {
		return nil
	}

	note := "No response before deadline"
	_, err = l.transition(ctx, id, journal.Expired, journal.SignalUpdate{Note: &note})
	if errors.Is(err, journal.ErrStaleTransition) {
		// lost a race; fine if the winner also expired it
		if s, gerr := l.store.GetSignal(ctx, id); gerr == nil && s.Status == journal.Expired {
			return nil
		}
	}
	return err
}

// ExpireDue expires every PENDING signal past its deadline and returns
// how many it expired.
func (l *Ledger) ExpireDue(ctx context.Context) (int, error) {
	due, err := l.store.ListExpiredSignals(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("list expired signals: %w", err)
	}

	n := 0
	for _, s := range due {
		if err := l.Expire(ctx, s.ID); err != nil {
			logger.ErrorWithErr(ctx, l.log, "expire signal", err, slog.Int64("signal_id", s.ID))
			continue
		}
		n++
	}
	return n, nil
}

// Cancel moves an APPROVED signal to CANCELLED with note.
func (l *Ledger) Cancel(ctx context.Context, id int64, note string) (journal.Signal, error) {
	return l.transition(ctx, id, journal.Cancelled, journal.SignalUpdate{Note: &note})
}

// MarkExecuted links the trade and moves the signal to EXECUTED.
func (l *Ledger) MarkExecuted(ctx context.Context, id, tradeID int64) (journal.Signal, error) {
	return l.transition(ctx, id, journal.Executed, journal.SignalUpdate{TradeID: &tradeID})
}

// MarkExecutedTx is MarkExecuted inside an existing transaction, so the
// trade and the status change commit together.
func (l *Ledger) MarkExecutedTx(ctx context.Context, tx *journal.Tx, id, tradeID int64) error {
	s, err := tx.GetSignal(ctx, id)
	if err != nil {
		return err
	}
	return l.apply(ctx, tx, s, journal.Executed, journal.SignalUpdate{TradeID: &tradeID})
}

// MarkSent stamps sms_sent_at once.
func (l *Ledger) MarkSent(ctx context.Context, id int64) error {
	return l.store.MarkSignalSent(ctx, id, l.now())
}

func (l *Ledger) transition(ctx context.Context, id int64, to journal.Status, u journal.SignalUpdate) (journal.Signal, error) {
	s, err := l.store.GetSignal(ctx, id)
	if err != nil {
		return journal.Signal{}, err
	}

	err = l.store.WithTx(ctx, func(tx *journal.Tx) error {
		return l.apply(ctx, tx, s, to, u)
	})
	if err != nil {
		return s, err
	}
	return l.store.GetSignal(ctx, id)
}

// apply checks the table, performs the conditional update and audits it.
func (l *Ledger) apply(ctx context.Context, w writer, s journal.Signal, to journal.Status, u journal.SignalUpdate) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("signal %d %s -> %s: %w", s.ID, s.Status, to, ErrIllegalTransition)
	}
	if err := w.TransitionSignal(ctx, s.ID, s.Status, to, u); err != nil {
		return err
	}

	extra := map[string]any{"from": string(s.Status), "to": string(to)}
	if u.UserResponse != nil {
		extra["response"] = *u.UserResponse
	}
	if u.Note != nil {
		extra["note"] = *u.Note
	}
	if u.TradeID != nil {
		extra["trade_id"] = *u.TradeID
	}
	err := w.Audit(ctx, journal.AuditEntry{
		ActionType:  journal.AuditSignalStatusUpdated,
		Symbol:      s.Symbol,
		Description: fmt.Sprintf("Signal #%d: %s -> %s", s.ID, s.Status, to),
		SignalID:    &s.ID,
		TradeID:     u.TradeID,
		Extra:       extra,
	})
	if err != nil {
		return err
	}

	l.metrics.SignalTransition(string(to))
	logger.Signal(ctx, l.log, s.ID, s.Symbol, string(to), slog.String("from", string(s.Status)))
	return nil
}
