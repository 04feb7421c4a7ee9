package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "equitrader"

// Metrics groups every collector the pipeline reports to. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	signalsCreated    *prometheus.CounterVec
	signalTransitions *prometheus.CounterVec
	riskRejections    *prometheus.CounterVec
	trades            *prometheus.CounterVec
	approvalResponses *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	scans             *prometheus.CounterVec

	cash          prometheus.Gauge
	portfolio     prometheus.Gauge
	drawdownPct   prometheus.Gauge
	holdings      prometheus.Gauge
	tradingPaused prometheus.Gauge

	approvalWait prometheus.Histogram
	fillWait     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signalsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_created_total",
			Help:      "Signals created by action",
		}, []string{"action"}),
		signalTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_transitions_total",
			Help:      "Signal status transitions by target status",
		}, []string{"status"}),
		riskRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_rejections_total",
			Help:      "Pre-trade checks that failed, by violation code",
		}, []string{"code"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades recorded in the ledger",
		}, []string{"action"}),
		approvalResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_responses_total",
			Help:      "Approval outcomes",
		}, []string{"response"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by result",
		}, []string{"result"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan cycles by outcome",
		}, []string{"outcome"}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash_balance",
			Help:      "In-memory cash balance",
		}),
		portfolio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Total portfolio value",
		}),
		drawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drawdown_pct",
			Help:      "Drawdown from the peak watermark in percent",
		}),
		holdings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "holdings",
			Help:      "Number of open positions",
		}),
		tradingPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trading_paused",
			Help:      "1 when the drawdown breaker or an operator paused trading",
		}),
		approvalWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "approval_wait_seconds",
			Help:      "Time from approval request to response or timeout",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900},
		}),
		fillWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_fill_wait_seconds",
			Help:      "Time from order placement to fill, cancel or timeout",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60},
		}),
	}

	reg.MustRegister(
		m.signalsCreated, m.signalTransitions, m.riskRejections, m.trades,
		m.approvalResponses, m.notifications, m.scans,
		m.cash, m.portfolio, m.drawdownPct, m.holdings, m.tradingPaused,
		m.approvalWait, m.fillWait,
	)
	return m
}

func (m *Metrics) SignalCreated(action string) {
	if m == nil {
		return
	}
	m.signalsCreated.WithLabelValues(action).Inc()
}

func (m *Metrics) SignalTransition(status string) {
	if m == nil {
		return
	}
	m.signalTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RiskRejected(code string) {
	if m == nil {
		return
	}
	m.riskRejections.WithLabelValues(code).Inc()
}

func (m *Metrics) TradeRecorded(action string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(action).Inc()
}

func (m *Metrics) ApprovalResponse(response string, waited time.Duration) {
	if m == nil {
		return
	}
	m.approvalResponses.WithLabelValues(response).Inc()
	m.approvalWait.Observe(waited.Seconds())
}

func (m *Metrics) OrderFillWait(d time.Duration) {
	if m == nil {
		return
	}
	m.fillWait.Observe(d.Seconds())
}

func (m *Metrics) NotificationSent(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notifications.WithLabelValues("failed").Inc()
		return
	}
	m.notifications.WithLabelValues("sent").Inc()
}

func (m *Metrics) ScanCompleted(outcome string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.tradingPaused.Set(1)
	} else {
		m.tradingPaused.Set(0)
	}
}

func (m *Metrics) SetCash(cash float64) {
	if m == nil {
		return
	}
	m.cash.Set(cash)
}

// SetPortfolio updates the valuation gauges.
func (m *Metrics) SetPortfolio(total, drawdownPct float64, holdings int) {
	if m == nil {
		return
	}
	m.portfolio.Set(total)
	m.drawdownPct.Set(drawdownPct)
	m.holdings.Set(float64(holdings))
}
