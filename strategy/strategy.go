package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/equitrader/config"
	"github.com/rustyeddy/equitrader/internal/logger"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/market"
	"github.com/rustyeddy/equitrader/portfolio"
	"github.com/rustyeddy/equitrader/risk"
	"github.com/rustyeddy/equitrader/signals"
)

// Deps are the collaborators shared by the generators.
type Deps struct {
	Store     *journal.SQLite
	Signals   *signals.Ledger
	Portfolio *portfolio.Ledger
	Risk      *risk.Engine
	Prices    market.Provider // optional; refreshes candidate prices
	Trading   config.TradingConfig
	Logger    *slog.Logger
}

func (d Deps) log() *slog.Logger {
	if d.Logger == nil {
		return logger.Discard()
	}
	return d.Logger
}

// generated audits a batch of new signals.
func (d Deps) generated(ctx context.Context, kind string, created []journal.Signal) {
	if len(created) == 0 {
		return
	}
	symbols := make([]string, len(created))
	for i, s := range created {
		symbols[i] = s.Symbol
	}
	err := d.Store.Audit(ctx, journal.AuditEntry{
		ActionType:  journal.AuditSignalsGenerated,
		Description: fmt.Sprintf("Generated %d %s signals", len(created), kind),
		Extra:       map[string]any{"symbols": symbols},
	})
	if err != nil {
		logger.ErrorWithErr(ctx, d.log(), "audit generated signals", err)
	}
}
