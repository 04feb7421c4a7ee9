// Package executor turns approved signals into booked trades, on paper or
// through a live venue.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rustyeddy/equitrader/broker"
	"github.com/rustyeddy/equitrader/id"
	terr "github.com/rustyeddy/equitrader/internal/errors"
	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/internal/poll"
	itrace "github.com/rustyeddy/equitrader/internal/trace"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/monitoring"
	"github.com/rustyeddy/equitrader/notify"
	"github.com/rustyeddy/equitrader/portfolio"
	"github.com/rustyeddy/equitrader/risk"
	"github.com/rustyeddy/equitrader/signals"
)

const (
	DefaultFillPoll    = 2 * time.Second
	DefaultFillTimeout = 60 * time.Second
)

// Result is the outcome of executing one signal.
type Result struct {
	SignalID  int64
	Success   bool
	FillPrice float64
	TradeID   int64
	OrderID   string
	Message   string
}

// Executor executes APPROVED signals. With a nil venue it fills on paper
// at the suggested price.
type Executor struct {
	signals   *signals.Ledger
	portfolio *portfolio.Ledger
	risk      *risk.Engine
	venue     broker.Venue
	channel   notify.Channel

	stopLossPct   float64
	takeProfitPct float64
	fillPoll      time.Duration
	fillTimeout   time.Duration

	log     *slog.Logger
	metrics *monitoring.Metrics
	tracer  trace.Tracer
}

type Options struct {
	// StopLossPct and TakeProfitPct are quoted in buy confirmations.
	StopLossPct   float64
	TakeProfitPct float64
	FillPoll      time.Duration
	FillTimeout   time.Duration
	Logger        *slog.Logger
	Metrics       *monitoring.Metrics
	Tracer        trace.Tracer
}

func New(sl *signals.Ledger, pf *portfolio.Ledger, re *risk.Engine, venue broker.Venue, ch notify.Channel, opts Options) *Executor {
	e := &Executor{
		signals:       sl,
		portfolio:     pf,
		risk:          re,
		venue:         venue,
		channel:       ch,
		stopLossPct:   opts.StopLossPct,
		takeProfitPct: opts.TakeProfitPct,
		fillPoll:      opts.FillPoll,
		fillTimeout:   opts.FillTimeout,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		tracer:        opts.Tracer,
	}
	if e.fillPoll <= 0 {
		e.fillPoll = DefaultFillPoll
	}
	if e.fillTimeout <= 0 {
		e.fillTimeout = DefaultFillTimeout
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	if e.tracer == nil {
		e.tracer = itrace.Noop()
	}
	return e
}

// Paper reports whether fills are simulated.
func (e *Executor) Paper() bool {
	return e.venue == nil
}

// ExecuteSignal runs the risk re-check, fills the order and books the
// trade. The trade and the EXECUTED transition commit together, so a
// signal is executed at most once.
func (e *Executor) ExecuteSignal(ctx context.Context, signalID int64) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "executor.execute", trace.WithAttributes(
		attribute.Int64("signal.id", signalID),
		attribute.Bool("paper", e.Paper()),
	))
	defer span.End()

	res, err := e.execute(ctx, signalID)
	span.SetAttributes(attribute.Bool("success", res.Success))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Message)
	}
	return res, err
}

func (e *Executor) execute(ctx context.Context, signalID int64) (Result, error) {
	res := Result{SignalID: signalID}

	sig, err := e.signals.Get(ctx, signalID)
	if err != nil {
		res.Message = err.Error()
		return res, err
	}
	if sig.Status != journal.Approved {
		res.Message = fmt.Sprintf("Signal not approved (status: %s)", sig.Status)
		return res, nil
	}

	v, err := e.portfolio.Value(ctx)
	if err != nil {
		return e.cancel(ctx, res, sig, err.Error(), err)
	}
	peak, err := e.portfolio.Peak(ctx, v.TotalValue)
	if err != nil {
		return e.cancel(ctx, res, sig, err.Error(), err)
	}

	d, err := e.risk.PreTradeCheck(ctx, risk.Request{
		Action:          sig.Action,
		Symbol:          sig.Symbol,
		Quantity:        sig.SuggestedQuantity,
		Price:           sig.SuggestedPrice,
		AvailableCash:   e.portfolio.Cash(),
		CurrentHoldings: v.NumHoldings,
		PortfolioValue:  v.TotalValue,
		PeakValue:       peak,
	})
	if err != nil {
		return e.cancel(ctx, res, sig, err.Error(), err)
	}
	if !d.Allowed {
		return e.cancel(ctx, res, sig, d.Reason(), nil)
	}

	var (
		price = sig.SuggestedPrice
		qty   = sig.SuggestedQuantity
	)
	if e.Paper() {
		res.OrderID = id.WithPrefix("PAPER")
	} else {
		f, reason, err := e.fillLive(ctx, sig)
		res.OrderID = f.orderID
		if reason != "" {
			return e.cancel(ctx, res, sig, reason, err)
		}
		price, qty = f.price, f.qty
	}
	res.FillPrice = price

	// Shares are filled from here on, so the booking outlives ctx.
	ctx = context.WithoutCancel(ctx)

	fill := portfolio.Fill{
		Symbol:   sig.Symbol,
		Quantity: qty,
		Price:    price,
		OrderID:  res.OrderID,
		SignalID: &sig.ID,
		Venue:    !e.Paper(),
	}
	markExecuted := func(ctx context.Context, tx *journal.Tx, t journal.Trade) error {
		return e.signals.MarkExecutedTx(ctx, tx, sig.ID, t.ID)
	}

	var trade journal.Trade
	if sig.Action == journal.Buy {
		trade, err = e.portfolio.RecordBuy(ctx, fill, markExecuted)
	} else {
		trade, err = e.portfolio.RecordSell(ctx, fill, markExecuted)
	}
	if err != nil {
		if errors.Is(err, journal.ErrStaleTransition) || errors.Is(err, signals.ErrIllegalTransition) {
			// another executor got here first
			res.Message = fmt.Sprintf("Signal #%d already handled", sig.ID)
			return res, err
		}
		if !e.Paper() {
			logger.ErrorWithErr(ctx, e.log, "venue fill not booked", err,
				slog.Int64("signal_id", sig.ID), slog.String("order_id", res.OrderID))
		}
		return e.cancel(ctx, res, sig, err.Error(), err)
	}

	res.Success = true
	res.TradeID = trade.ID
	res.Message = fmt.Sprintf("%s %d x %s @ $%.2f", sig.Action, trade.Quantity, sig.Symbol, price)
	if qty < sig.SuggestedQuantity {
		res.Message += fmt.Sprintf(" (partial fill %d/%d)", qty, sig.SuggestedQuantity)
	}

	e.confirm(ctx, trade)
	return res, nil
}

// liveFill is what the venue filled for one order.
type liveFill struct {
	orderID string
	price   float64
	qty     int
}

// cleanupTimeout bounds the venue calls made after the caller's ctx is gone.
const cleanupTimeout = 10 * time.Second

// fillLive places a DAY limit order and waits for it to resolve. Any
// filled quantity, partial or not, is returned for booking. A non-empty
// reason means nothing filled and the signal must be cancelled.
func (e *Executor) fillLive(ctx context.Context, sig journal.Signal) (liveFill, string, error) {
	if err := e.venue.Login(ctx); err != nil {
		return liveFill{}, "Venue login failed", terr.Wrap(err, terr.ExecutionFailure, "executor", "login", "venue login")
	}

	limit := broker.LimitPrice(sig.Action, sig.SuggestedPrice)
	ack, err := e.venue.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:      sig.Symbol,
		Action:      sig.Action,
		Quantity:    sig.SuggestedQuantity,
		Type:        broker.Limit,
		Price:       limit,
		TimeInForce: broker.DayOrder,
	})
	if err != nil {
		return liveFill{}, "Order placement failed", terr.Wrap(err, terr.ExecutionFailure, "executor", "place_order", "order placement failed")
	}
	e.log.InfoContext(ctx, "order placed",
		slog.String("order_id", ack.ID), slog.Int64("signal_id", sig.ID), slog.Float64("limit", limit))

	f := liveFill{orderID: ack.ID}
	placed := time.Now()
	var st broker.OrderState
	err = poll.Until(ctx, placed.Add(e.fillTimeout), e.fillPoll, func(ctx context.Context) (bool, error) {
		s, err := e.venue.OrderStatus(ctx, ack.ID)
		if err != nil {
			e.log.WarnContext(ctx, "order status", slog.String("order_id", ack.ID), slog.Any("error", err))
			return false, nil
		}
		st = s
		return s.Status.Done(), nil
	})
	e.metrics.OrderFillWait(time.Since(placed))

	if err != nil {
		// timed out or interrupted with the order possibly still working
		st = e.cancelOrder(ctx, ack.ID, st)
	}

	if st.FilledQty > 0 || st.Status == broker.Filled {
		f.qty = st.FilledQty
		if f.qty <= 0 || f.qty > sig.SuggestedQuantity {
			f.qty = sig.SuggestedQuantity
		}
		f.price = st.AvgFillPrice
		if f.price <= 0 {
			f.price = limit
		}
		if f.qty < sig.SuggestedQuantity {
			e.log.WarnContext(ctx, "partial fill",
				slog.String("order_id", ack.ID), slog.String("status", string(st.Status)),
				slog.Int("filled", f.qty), slog.Int("ordered", sig.SuggestedQuantity))
		}
		return f, "", nil
	}

	switch {
	case errors.Is(err, poll.ErrDeadline):
		return f, "Timeout - not filled",
			terr.New(terr.ExecutionFailure, "executor", "fill", fmt.Sprintf("order %s not filled in %s", ack.ID, e.fillTimeout))
	case err != nil:
		return f, "Interrupted - order cancelled",
			terr.Wrap(err, terr.ExecutionFailure, "executor", "fill", "fill wait interrupted")
	}
	msg := fmt.Sprintf("Order %s", st.Status)
	return f, msg, terr.New(terr.ExecutionFailure, "executor", "fill", msg)
}

// cancelOrder cancels a possibly working order even when ctx is done and
// returns the venue's state afterwards, which can still show a fill that
// raced the cancel. last is returned when the state cannot be read.
func (e *Executor) cancelOrder(ctx context.Context, orderID string, last broker.OrderState) broker.OrderState {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := e.venue.CancelOrder(ctx, orderID); err != nil {
		logger.ErrorWithErr(ctx, e.log, "cancel unfilled order", err, slog.String("order_id", orderID))
	}
	st, err := e.venue.OrderStatus(ctx, orderID)
	if err != nil {
		logger.ErrorWithErr(ctx, e.log, "order status after cancel", err, slog.String("order_id", orderID))
		return last
	}
	return st
}

// cancel moves the signal to CANCELLED with reason and returns a failed
// result, even after ctx is done. cause, when set, is logged; the returned error is only set when
// the signal could not be cancelled.
func (e *Executor) cancel(ctx context.Context, res Result, sig journal.Signal, reason string, cause error) (Result, error) {
	res.Message = reason
	if cause != nil {
		logger.ErrorWithErr(ctx, e.log, "execution failed", cause,
			slog.Int64("signal_id", sig.ID), slog.String("symbol", sig.Symbol))
	}
	if _, err := e.signals.Cancel(context.WithoutCancel(ctx), sig.ID, reason); err != nil {
		return res, fmt.Errorf("cancel signal %d: %w", sig.ID, err)
	}
	return res, nil
}

// confirm sends the execution message. A failed send does not undo the
// fill.
func (e *Executor) confirm(ctx context.Context, t journal.Trade) {
	if e.channel == nil {
		return
	}

	x := notify.Execution{
		Symbol:   t.Symbol,
		Action:   t.Action,
		Quantity: t.Quantity,
		Price:    t.Price,
		PnL:      t.ProfitLoss,
		PnLPct:   t.ProfitLossPct,
	}
	if t.Action == journal.Buy {
		x.StopLoss = risk.Level(t.Price, e.stopLossPct)
		x.StopLossPct = e.stopLossPct
		x.TakeProfit = risk.Level(t.Price, e.takeProfitPct)
		x.TakeProfitPct = e.takeProfitPct
	}

	err := e.channel.Send(ctx, notify.FormatExecution(x))
	e.metrics.NotificationSent(err)
	if err != nil {
		logger.ErrorWithErr(ctx, e.log, "send execution notice", err, slog.Int64("trade_id", t.ID))
	}
}

// ExecuteApproved executes every APPROVED signal. A failure on one signal
// does not stop the others.
func (e *Executor) ExecuteApproved(ctx context.Context) ([]Result, error) {
	approved, err := e.signals.Approved(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(approved))
	for _, s := range approved {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := e.ExecuteSignal(ctx, s.ID)
		if err != nil {
			logger.ErrorWithErr(ctx, e.log, "execute signal", err, slog.Int64("signal_id", s.ID))
		}
		out = append(out, res)
	}
	return out, nil
}
