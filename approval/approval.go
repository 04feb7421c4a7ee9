// Package approval asks the operator to approve each signal and waits for
// the reply under the signal's deadline.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	terr "github.com/rustyeddy/equitrader/internal/errors"
	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/internal/poll"
	itrace "github.com/rustyeddy/equitrader/internal/trace"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/monitoring"
	"github.com/rustyeddy/equitrader/notify"
	"github.com/rustyeddy/equitrader/signals"
)

// Response is the outcome of one approval request.
type Response string

const (
	Approve Response = "APPROVE"
	Reject  Response = "REJECT"
	Modify  Response = "MODIFY"
	Timeout Response = "TIMEOUT"
)

var ErrNotPending = errors.New("signal is not pending")

const DefaultPollInterval = 5 * time.Second

// ParseResponse recognizes reply tokens, ignoring case and surrounding
// space. Anything else is not a response.
func ParseResponse(text string) (Response, bool) {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "Y", "YES", "APPROVE":
		return Approve, true
	case "N", "NO", "REJECT":
		return Reject, true
	case "M", "MOD", "MODIFY":
		return Modify, true
	}
	return "", false
}

type Coordinator struct {
	channel  notify.Channel
	signals  *signals.Ledger
	chatID   string
	interval time.Duration
	log      *slog.Logger
	metrics  *monitoring.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

type Options struct {
	// ChatID is the only sender whose replies count. Empty accepts any
	// sender.
	ChatID       string
	PollInterval time.Duration
	Logger       *slog.Logger
	Metrics      *monitoring.Metrics
	Tracer       trace.Tracer
	Now          func() time.Time
}

func NewCoordinator(ch notify.Channel, sl *signals.Ledger, opts Options) *Coordinator {
	c := &Coordinator{
		channel:  ch,
		signals:  sl,
		chatID:   opts.ChatID,
		interval: opts.PollInterval,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		now:      opts.Now,
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	if c.tracer == nil {
		c.tracer = itrace.Noop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// RequestApproval sends the approval message once and polls for a reply
// until the signal expires. Only one signal is awaited at a time; replies
// bind to it by arrival order.
func (c *Coordinator) RequestApproval(ctx context.Context, sig journal.Signal) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "approval.request", trace.WithAttributes(
		attribute.Int64("signal.id", sig.ID),
		attribute.String("signal.symbol", sig.Symbol),
	))
	defer span.End()

	resp, err := c.request(ctx, sig)
	span.SetAttributes(attribute.String("approval.response", string(resp)))
	if err != nil && !terr.Is(err, terr.ApprovalTimeout) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "approval failed")
	}
	return resp, err
}

func (c *Coordinator) request(ctx context.Context, sig journal.Signal) (Response, error) {
	sig, err := c.signals.Get(ctx, sig.ID)
	if err != nil {
		return "", err
	}
	if sig.Status != journal.Pending {
		return "", fmt.Errorf("signal #%d is %s: %w", sig.ID, sig.Status, ErrNotPending)
	}

	start := c.now()
	if !start.Before(sig.ExpiresAt) {
		return c.timeout(ctx, sig, start)
	}

	offset, err := c.channel.Offset(ctx)
	if err != nil {
		return "", terr.Wrap(err, terr.DataUnavailable, "approval", "offset", "read channel offset")
	}

	minutes := int(math.Ceil(sig.ExpiresAt.Sub(start).Minutes()))
	err = c.channel.Send(ctx, notify.FormatApproval(sig, minutes))
	c.metrics.NotificationSent(err)
	if err != nil {
		return "", terr.Wrap(err, terr.DataUnavailable, "approval", "send", fmt.Sprintf("send approval request #%d", sig.ID))
	}
	if err := c.signals.MarkSent(ctx, sig.ID); err != nil {
		logger.ErrorWithErr(ctx, c.log, "mark signal sent", err, slog.Int64("signal_id", sig.ID))
	}
	logger.Signal(ctx, c.log, sig.ID, sig.Symbol, "AWAITING_APPROVAL", slog.Int("minutes", minutes))

	var got Response
	err = poll.Until(ctx, sig.ExpiresAt, c.interval, func(ctx context.Context) (bool, error) {
		msgs, err := c.channel.Poll(ctx, offset)
		if err != nil {
			// transient; try again next interval
			c.log.WarnContext(ctx, "poll channel", slog.Any("error", err))
			return false, nil
		}
		for _, m := range msgs {
			if m.UpdateID >= offset {
				offset = m.UpdateID + 1
			}
			if c.chatID != "" && m.SenderID != c.chatID {
				continue
			}
			if r, ok := ParseResponse(m.Text); ok {
				got = r
				return true, nil
			}
		}
		return false, nil
	})

	switch {
	case errors.Is(err, poll.ErrDeadline):
		return c.timeout(ctx, sig, start)
	case err != nil:
		return "", err
	}

	c.metrics.ApprovalResponse(string(got), c.now().Sub(start))
	switch got {
	case Approve:
		if _, err := c.signals.Approve(ctx, sig.ID, "Y"); err != nil {
			return "", err
		}
	case Reject:
		if _, err := c.signals.Reject(ctx, sig.ID, "N"); err != nil {
			return "", err
		}
	case Modify:
		c.log.InfoContext(ctx, "modify requested", slog.Int64("signal_id", sig.ID))
	}
	return got, nil
}

func (c *Coordinator) timeout(ctx context.Context, sig journal.Signal, start time.Time) (Response, error) {
	if err := c.signals.Expire(ctx, sig.ID); err != nil {
		return "", err
	}
	c.metrics.ApprovalResponse(string(Timeout), c.now().Sub(start))
	return Timeout, terr.New(terr.ApprovalTimeout, "approval", "request",
		fmt.Sprintf("signal #%d expired without a response", sig.ID))
}

// Counts tallies one ProcessPending pass.
type Counts struct {
	Approved int
	Rejected int
	Expired  int
	Modified int
	Errors   int
}

// ProcessPending expires overdue signals, then requests approval for every
// PENDING signal that has not been sent yet, one at a time. A failed send
// leaves the signal PENDING for the next pass.
func (c *Coordinator) ProcessPending(ctx context.Context) (Counts, error) {
	var n Counts

	expired, err := c.signals.ExpireDue(ctx)
	if err != nil {
		return n, err
	}
	n.Expired += expired

	pending, err := c.signals.Pending(ctx)
	if err != nil {
		return n, err
	}

	for _, sig := range pending {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if sig.SMSSentAt != nil {
			continue
		}

		resp, err := c.RequestApproval(ctx, sig)
		switch {
		case resp == Timeout:
			n.Expired++
		case err != nil:
			n.Errors++
			logger.ErrorWithErr(ctx, c.log, "request approval", err, slog.Int64("signal_id", sig.ID))
		case resp == Approve:
			n.Approved++
		case resp == Reject:
			n.Rejected++
		case resp == Modify:
			n.Modified++
		}
	}
	return n, nil
}
