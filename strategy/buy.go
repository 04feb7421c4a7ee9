package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/risk"
	"github.com/rustyeddy/equitrader/signals"
)

// BuyGenerator fills free holding slots from the opportunity source.
type BuyGenerator struct {
	Deps
	source Source
}

func NewBuyGenerator(d Deps, src Source) *BuyGenerator {
	return &BuyGenerator{Deps: d, source: src}
}

// Generate creates BUY signals while slots and budget remain. It does
// nothing while trading is paused.
func (g *BuyGenerator) Generate(ctx context.Context) ([]journal.Signal, error) {
	log := g.log()

	paused, reason, err := g.Risk.IsPaused(ctx)
	if err != nil {
		return nil, err
	}
	if paused {
		log.InfoContext(ctx, "buy signals skipped", slog.String("reason", "trading paused: "+reason))
		return nil, nil
	}

	holdings, err := g.Portfolio.Holdings(ctx)
	if err != nil {
		return nil, err
	}
	slots := g.Trading.MaxHoldings - len(holdings)
	if slots <= 0 {
		log.InfoContext(ctx, "buy signals skipped",
			slog.String("reason", fmt.Sprintf("at max holdings (%d/%d)", len(holdings), g.Trading.MaxHoldings)))
		return nil, nil
	}

	held := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		held[h.Symbol] = true
	}

	ops, err := g.source.Opportunities(ctx)
	if err != nil {
		return nil, err
	}

	budget := math.Min(g.Portfolio.Cash(), g.Trading.MaxPositionValue())
	var created []journal.Signal

	for _, o := range ops {
		if len(created) >= slots || budget < g.Trading.MinStockPrice {
			break
		}
		if held[o.Symbol] {
			continue
		}
		pending, err := g.Signals.HasPending(ctx, o.Symbol, journal.Buy)
		if err != nil {
			return created, err
		}
		if pending {
			continue
		}

		price := g.price(ctx, o)
		if price <= 0 || price < g.Trading.MinStockPrice {
			continue
		}
		qty := risk.SizeQuantity(budget, price)
		if qty < 1 {
			log.InfoContext(ctx, "insufficient funds",
				slog.String("symbol", o.Symbol), slog.Float64("price", price), slog.Float64("budget", budget))
			continue
		}

		s, err := g.Signals.Create(ctx, signals.NewSignal{
			Symbol:   o.Symbol,
			Action:   journal.Buy,
			Price:    price,
			Quantity: qty,
			Reason:   buyReason(o),
		})
		if err != nil {
			return created, err
		}
		created = append(created, s)
		budget -= s.Total()
	}

	g.generated(ctx, "buy", created)
	return created, nil
}

// price prefers a live quote over the screener's price.
func (g *BuyGenerator) price(ctx context.Context, o Opportunity) float64 {
	if g.Prices == nil {
		return o.Price
	}
	p, err := g.Prices.CurrentPrice(ctx, o.Symbol)
	if err != nil {
		g.log().WarnContext(ctx, "candidate price", slog.String("symbol", o.Symbol), slog.Any("error", err))
		return o.Price
	}
	if p <= 0 {
		return o.Price
	}
	return p
}

func buyReason(o Opportunity) string {
	parts := append([]string{fmt.Sprintf("Score: %.0f", o.Score)}, o.Reasons...)
	return strings.Join(parts, " | ")
}
