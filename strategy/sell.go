package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/notify"
	"github.com/rustyeddy/equitrader/portfolio"
	"github.com/rustyeddy/equitrader/signals"
)

// SellGenerator proposes exits for open positions at the stop-loss or
// take-profit levels.
type SellGenerator struct {
	Deps
}

func NewSellGenerator(d Deps) *SellGenerator {
	return &SellGenerator{Deps: d}
}

// exit is the sell decision for one priced holding. ok is false when the
// position should be kept.
func (d Deps) exit(ph portfolio.PricedHolding) (reason string, urgent, ok bool) {
	switch {
	case ph.PLPct <= d.Trading.StopLossPct:
		return fmt.Sprintf("URGENT: Stop-loss triggered (%.1f%%)", ph.PLPct), true, true
	case ph.PLPct >= d.Trading.TakeProfitPct:
		return fmt.Sprintf("Take-profit target reached (%+.1f%%)", ph.PLPct), false, true
	}
	return "", false, false
}

// Generate reprices every holding and creates SELL signals for those that
// crossed a level. Stop-losses skip the minimum hold period and use the
// urgent approval window.
func (g *SellGenerator) Generate(ctx context.Context) ([]journal.Signal, error) {
	log := g.log()

	v, err := g.Portfolio.Value(ctx)
	if err != nil {
		return nil, err
	}

	var created []journal.Signal
	for _, ph := range v.Holdings {
		if ph.Stale {
			log.WarnContext(ctx, "no price, skipping", slog.String("symbol", ph.Symbol))
			continue
		}

		reason, urgent, ok := g.exit(ph)
		if !ok {
			continue
		}
		if !urgent && ph.DaysHeld < g.Trading.MinHoldDays {
			log.InfoContext(ctx, "min hold period not met",
				slog.String("symbol", ph.Symbol), slog.Int("days", ph.DaysHeld), slog.Int("min", g.Trading.MinHoldDays))
			continue
		}
		if !urgent {
			reason = strings.Join([]string{reason, fmt.Sprintf("Held for %d days", ph.DaysHeld)}, " | ")
		}

		s, err := g.sell(ctx, ph, reason, urgent)
		if err != nil {
			return created, err
		}
		if s != nil {
			created = append(created, *s)
		}
	}

	g.generated(ctx, "sell", created)
	return created, nil
}

// sell creates the SELL signal unless one is already pending for the
// symbol.
func (d Deps) sell(ctx context.Context, ph portfolio.PricedHolding, reason string, urgent bool) (*journal.Signal, error) {
	pending, err := d.Signals.HasPending(ctx, ph.Symbol, journal.Sell)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, nil
	}

	s, err := d.Signals.Create(ctx, signals.NewSignal{
		Symbol:   ph.Symbol,
		Action:   journal.Sell,
		Price:    ph.Price,
		Quantity: ph.Quantity,
		Reason:   reason,
		Urgent:   urgent,
	})
	if err != nil {
		return nil, err
	}
	d.log().InfoContext(ctx, "sell signal",
		slog.String("symbol", ph.Symbol), slog.Float64("pl", ph.PL), slog.Float64("pl_pct", ph.PLPct), slog.String("reason", reason))
	return &s, nil
}

// StopLossMonitor is the quick check run between full scans. It only
// looks at the stop-loss level and alerts the operator for each trigger.
type StopLossMonitor struct {
	Deps
	channel notify.Channel
}

func NewStopLossMonitor(d Deps, ch notify.Channel) *StopLossMonitor {
	return &StopLossMonitor{Deps: d, channel: ch}
}

func (m *StopLossMonitor) Check(ctx context.Context) ([]journal.Signal, error) {
	v, err := m.Portfolio.Value(ctx)
	if err != nil {
		return nil, err
	}

	var created []journal.Signal
	for _, ph := range v.Holdings {
		if ph.Stale {
			continue
		}
		reason, urgent, ok := m.exit(ph)
		if !ok || !urgent {
			continue
		}

		s, err := m.sell(ctx, ph, reason, true)
		if err != nil {
			return created, err
		}
		if s == nil {
			continue
		}
		created = append(created, *s)
		m.log().WarnContext(ctx, "stop-loss", slog.String("symbol", ph.Symbol), slog.Float64("pl_pct", ph.PLPct))

		if m.channel != nil {
			if err := m.channel.Send(ctx, notify.FormatStopLossAlert(ph.Symbol, ph.Price, ph.PLPct)); err != nil {
				logger.ErrorWithErr(ctx, m.log(), "send stop-loss alert", err, slog.String("symbol", ph.Symbol))
			}
		}
	}

	m.generated(ctx, "stop-loss", created)
	return created, nil
}
