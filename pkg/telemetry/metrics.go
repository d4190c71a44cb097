package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOrdersCheckedTotal  = "riskgate_orders_checked_total"
	MetricOrdersAdmittedTotal = "riskgate_orders_admitted_total"
	MetricOrdersRejectedTotal = "riskgate_orders_rejected_total"
	MetricFillsAppliedTotal   = "riskgate_fills_applied_total"
	MetricRealizedPnLTotal    = "riskgate_realized_pnl_total"
	MetricExitSignalsTotal    = "riskgate_exit_signals_total"
	MetricOpenPositions       = "riskgate_open_positions"
	MetricEquity              = "riskgate_equity"
	MetricPeakEquity          = "riskgate_peak_equity"
	MetricKillSwitchActive    = "riskgate_kill_switch_active"
)

// Metrics holds the initialized instruments. It is constructed once during
// bootstrap and passed to the components that report on it; there is no
// process-wide singleton.
type Metrics struct {
	ordersChecked  metric.Int64Counter
	ordersAdmitted metric.Int64Counter
	ordersRejected metric.Int64Counter
	fillsApplied   metric.Int64Counter
	realizedPnL    metric.Float64UpDownCounter
	exitSignals    metric.Int64Counter

	// State for observable gauges
	mu            sync.RWMutex
	openPositions int64
	equity        float64
	peakEquity    float64
	killSwitch    int64
}

// NewMetrics registers all instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ordersChecked, err = meter.Int64Counter(MetricOrdersCheckedTotal,
		metric.WithDescription("Total order intents evaluated by the pre-trade gate"))
	if err != nil {
		return nil, err
	}

	m.ordersAdmitted, err = meter.Int64Counter(MetricOrdersAdmittedTotal,
		metric.WithDescription("Order intents admitted with no violations"))
	if err != nil {
		return nil, err
	}

	m.ordersRejected, err = meter.Int64Counter(MetricOrdersRejectedTotal,
		metric.WithDescription("Order intents rejected with at least one violation"))
	if err != nil {
		return nil, err
	}

	m.fillsApplied, err = meter.Int64Counter(MetricFillsAppliedTotal,
		metric.WithDescription("Fills applied to tracked positions"))
	if err != nil {
		return nil, err
	}

	m.realizedPnL, err = meter.Float64UpDownCounter(MetricRealizedPnLTotal,
		metric.WithDescription("Cumulative realized profit/loss across all positions"))
	if err != nil {
		return nil, err
	}

	m.exitSignals, err = meter.Int64Counter(MetricExitSignalsTotal,
		metric.WithDescription("Exit zone signals emitted by the evaluator"))
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(MetricOpenPositions,
		metric.WithDescription("Number of currently open positions"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.openPositions)
			return nil
		}))
	if err != nil {
		return nil, err
	}

	_, err = meter.Float64ObservableGauge(MetricEquity,
		metric.WithDescription("Last reported account equity"),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.equity)
			return nil
		}))
	if err != nil {
		return nil, err
	}

	_, err = meter.Float64ObservableGauge(MetricPeakEquity,
		metric.WithDescription("Running peak account equity"),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.peakEquity)
			return nil
		}))
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(MetricKillSwitchActive,
		metric.WithDescription("Kill switch state (1=engaged, 0=normal)"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.killSwitch)
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCheck counts one gate evaluation and its outcome
func (m *Metrics) RecordCheck(ctx context.Context, admitted bool) {
	if m == nil {
		return
	}
	m.ordersChecked.Add(ctx, 1)
	if admitted {
		m.ordersAdmitted.Add(ctx, 1)
	} else {
		m.ordersRejected.Add(ctx, 1)
	}
}

// RecordFill counts one applied fill and its realized P&L contribution
func (m *Metrics) RecordFill(ctx context.Context, symbol string, realizedPnL float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("symbol", symbol))
	m.fillsApplied.Add(ctx, 1, attrs)
	m.realizedPnL.Add(ctx, realizedPnL, attrs)
}

// RecordExitSignal counts one emitted exit signal, labeled by zone
func (m *Metrics) RecordExitSignal(ctx context.Context, zone string) {
	if m == nil {
		return
	}
	m.exitSignals.Add(ctx, 1, metric.WithAttributes(attribute.String("zone", zone)))
}

func (m *Metrics) SetOpenPositions(count int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions = int64(count)
}

func (m *Metrics) SetEquity(equity, peak float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = equity
	m.peakEquity = peak
}

func (m *Metrics) SetKillSwitch(engaged bool) {
	if m == nil {
		return
	}
	val := int64(0)
	if engaged {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitch = val
}
