// Package logger builds the structured logger shared by the trading
// services and offers helpers for the recurring event shapes.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// FromEnv overrides cfg with LOG_LEVEL and LOG_FORMAT when they are set.
func FromEnv(cfg Config) Config {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	return cfg
}

// New returns a logger writing to w. Trace and span ids of the active span
// are attached to every record.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(traceHandler{h})
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}

// ErrorWithErr logs err and records it on the active span.
func ErrorWithErr(ctx context.Context, l *slog.Logger, msg string, err error, args ...any) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
	}
	l.ErrorContext(ctx, msg, append(args, slog.Any("error", err))...)
}

// Trade logs an executed trade.
func Trade(ctx context.Context, l *slog.Logger, action, symbol string, qty int, price float64, args ...any) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("trade.action", action),
		attribute.String("trade.symbol", symbol),
	)
	l.InfoContext(ctx, "trade executed", append([]any{
		slog.Group("trade",
			slog.String("action", action),
			slog.String("symbol", symbol),
			slog.Int("quantity", qty),
			slog.Float64("price", price),
			slog.Float64("total", float64(qty)*price),
		),
	}, args...)...)
}

// Risk logs a risk engine event such as a rejection or a pause.
func Risk(ctx context.Context, l *slog.Logger, symbol, event string, args ...any) {
	l.WarnContext(ctx, "risk event", append([]any{
		slog.Group("risk",
			slog.String("symbol", symbol),
			slog.String("event", event),
		),
	}, args...)...)
}

// Signal logs a signal lifecycle change.
func Signal(ctx context.Context, l *slog.Logger, id int64, symbol, status string, args ...any) {
	l.InfoContext(ctx, "signal", append([]any{
		slog.Group("signal",
			slog.Int64("id", id),
			slog.String("symbol", symbol),
			slog.String("status", status),
		),
	}, args...)...)
}

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	l     *slog.Logger
	op    string
	start time.Time
}

// StartOperation begins timing op.
func StartOperation(ctx context.Context, l *slog.Logger, op string) *Timer {
	l.DebugContext(ctx, "operation started", slog.String("operation", op))
	return &Timer{l: l, op: op, start: time.Now()}
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop(ctx context.Context) time.Duration {
	d := time.Since(t.start)
	t.l.DebugContext(ctx, "operation finished",
		slog.String("operation", t.op),
		slog.Duration("duration", d),
	)
	return d
}
