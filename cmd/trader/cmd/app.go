package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/equitrader/approval"
	"github.com/rustyeddy/equitrader/bot"
	"github.com/rustyeddy/equitrader/broker"
	"github.com/rustyeddy/equitrader/broker/kite"
	"github.com/rustyeddy/equitrader/broker/sim"
	"github.com/rustyeddy/equitrader/config"
	"github.com/rustyeddy/equitrader/executor"
	"github.com/rustyeddy/equitrader/internal/logger"
	itrace "github.com/rustyeddy/equitrader/internal/trace"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/market"
	"github.com/rustyeddy/equitrader/monitoring"
	"github.com/rustyeddy/equitrader/notify"
	"github.com/rustyeddy/equitrader/portfolio"
	"github.com/rustyeddy/equitrader/risk"
	"github.com/rustyeddy/equitrader/signals"
	"github.com/rustyeddy/equitrader/strategy"
)

// app is the process-wide wiring shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *journal.SQLite
	registry *prometheus.Registry
	health   *monitoring.Health
	tracing  *itrace.Provider

	signals   *signals.Ledger
	portfolio *portfolio.Ledger
	risk      *risk.Engine
	approval  *approval.Coordinator
	executor  *executor.Executor
	channel   notify.Channel
	scanner   *bot.Scanner
}

// appOptions tune the wiring for tests and offline commands.
type appOptions struct {
	logOut  io.Writer
	channel notify.Channel // overrides the configured channel
	prices  market.Provider
	venue   broker.Venue
}

// newApp builds every component from cfg. Missing credentials are fatal.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	creds := config.LoadCredentials(files...)
	if opts.channel == nil {
		if err := creds.Require(cfg); err != nil {
			return nil, err
		}
	}

	if opts.logOut == nil {
		opts.logOut = os.Stderr
	}
	log := logger.New(logger.FromEnv(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}), opts.logOut)

	tp, err := itrace.New(ctx, cfg.Log.Tracing, opts.logOut, version)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	store, err := journal.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	hours, err := cfg.Market.Hours()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("market hours: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: prometheus.NewRegistry(),
		health:   monitoring.NewHealth(),
		tracing:  tp,
	}
	metrics := monitoring.NewMetrics(a.registry)

	prices := opts.prices
	if prices == nil {
		prices = market.NewYahoo(cfg.Market.QuoteURL)
	}

	a.channel = opts.channel
	if a.channel == nil {
		if cfg.Notify.Telegram {
			a.channel = notify.NewTelegram(creds.TelegramToken, creds.TelegramChatID, cfg.Notify.APIURL)
		} else {
			a.channel = notify.NewLog(log.With(slog.String("component", "notify")))
		}
	}

	venue := opts.venue
	if venue == nil && !cfg.Paper.Enabled {
		venue = newVenue(cfg.Venue, creds)
	}

	a.signals = signals.NewLedger(store, cfg.Trading, signals.Options{Logger: log, Metrics: metrics})
	a.portfolio = portfolio.New(store, prices, cfg.Trading, portfolio.Options{Logger: log, Metrics: metrics})
	if cfg.Trading.ReconstructCash {
		if _, err := a.portfolio.ReconstructCash(ctx); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
	}
	a.risk = risk.NewEngine(store, risk.PolicyFromConfig(cfg.Trading), risk.Options{
		Location: hours.Location(),
		Logger:   log,
		Metrics:  metrics,
	})
	if paused, _, err := a.risk.IsPaused(ctx); err == nil {
		metrics.SetPaused(paused)
	}

	a.approval = approval.NewCoordinator(a.channel, a.signals, approval.Options{
		ChatID:       creds.TelegramChatID,
		PollInterval: config.Duration(cfg.Notify.PollInterval, approval.DefaultPollInterval),
		Logger:       log,
		Metrics:      metrics,
		Tracer:       tp.Tracer("approval"),
	})
	a.executor = executor.New(a.signals, a.portfolio, a.risk, venue, a.channel, executor.Options{
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		FillPoll:      config.Duration(cfg.Venue.FillPoll, executor.DefaultFillPoll),
		FillTimeout:   config.Duration(cfg.Venue.FillTimeout, executor.DefaultFillTimeout),
		Logger:        log,
		Metrics:       metrics,
		Tracer:        tp.Tracer("executor"),
	})

	sd := strategy.Deps{
		Store:     store,
		Signals:   a.signals,
		Portfolio: a.portfolio,
		Risk:      a.risk,
		Prices:    prices,
		Trading:   cfg.Trading,
		Logger:    log,
	}
	var src strategy.Source = strategy.StaticSource{}
	if cfg.Sources.OpportunitiesFile != "" {
		src = strategy.FileSource{Path: cfg.Sources.OpportunitiesFile}
	}

	a.scanner = bot.NewScanner(bot.Deps{
		Hours:     hours,
		Risk:      a.risk,
		Portfolio: a.portfolio,
		Buy:       strategy.NewBuyGenerator(sd, src),
		Sell:      strategy.NewSellGenerator(sd),
		StopLoss:  strategy.NewStopLossMonitor(sd, a.channel),
		Approval:  a.approval,
		Executor:  a.executor,
		Channel:   a.channel,
		Health:    a.health,
		Metrics:   metrics,
		Logger:    log,
		Tracer:    tp.Tracer("bot"),
	}, bot.Options{
		ScanInterval: minutes(cfg.Market.ScanIntervalMinutes),
		DailySummary: cfg.Notify.DailySummary,
	})
	return a, nil
}

func newVenue(vc config.VenueConfig, creds config.Credentials) broker.Venue {
	if vc.Kind == "kite" {
		return kite.New(kite.Params{
			APIKey:      creds.KiteAPIKey,
			AccessToken: creds.KiteToken,
			Exchange:    vc.Exchange,
			Product:     vc.Product,
		})
	}
	return sim.NewEngine(sim.Options{FillAfter: vc.SimFillAfter})
}

// Close flushes spans and closes the store.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.tracing.Shutdown(ctx), a.store.Close())
}

// withApp loads the config, builds the app, runs fn and tears down.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, testAppOptions)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

// testAppOptions lets tests run commands against in-memory collaborators.
var testAppOptions appOptions
