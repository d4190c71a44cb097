package risk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"riskgate/internal/core"
	"riskgate/pkg/telemetry"
)

// rateWindow is the sliding window for the order-rate limit
const rateWindow = time.Minute

var hundred = decimal.NewFromInt(100)

// Manager is the stateful pre-trade gate. Check is the hot path: it performs
// no I/O, reads the limits snapshot through an atomic pointer, and keeps a
// single short mutex section for the equity fields and the order-rate window
// so concurrent checks account each admitted order exactly once.
type Manager struct {
	logger    core.ILogger
	metrics   *telemetry.Metrics
	positions core.IPositionSource

	limits atomic.Pointer[Limits]
	killed atomic.Bool

	mu                  sync.Mutex
	recentOrders        []time.Time
	dailyStartingEquity decimal.Decimal
	peakEquity          decimal.Decimal
	lastEquity          decimal.Decimal
	onKill              func(engaged bool)
	onReject            func(intent core.OrderIntent, violations []string)

	now func() time.Time
}

// NewManager creates a risk manager with an initial limits snapshot.
// metrics may be nil.
func NewManager(limits *Limits, positions core.IPositionSource, logger core.ILogger, metrics *telemetry.Metrics) *Manager {
	m := &Manager{
		logger:    logger.WithField("component", "risk_manager"),
		metrics:   metrics,
		positions: positions,
		now:       time.Now,
	}
	m.limits.Store(limits)
	return m
}

// Check evaluates an order intent against the current limits and returns the
// list of violation reasons; an empty list admits the order. The kill switch
// short-circuits before the reduce-only bypass, so an engaged kill switch
// blocks even position-closing orders. A reduce-only intent (kill switch
// clear) is admitted without any further checks or rate accounting. All
// remaining rules are evaluated independently so a single call can report
// every simultaneous problem.
func (m *Manager) Check(intent core.OrderIntent, account core.AccountState, positionSizeUSD decimal.Decimal) []string {
	if m.killed.Load() {
		m.metrics.RecordCheck(context.Background(), false)
		return []string{"kill switch engaged: all new orders blocked"}
	}

	if intent.ReduceOnly {
		m.metrics.RecordCheck(context.Background(), true)
		return nil
	}

	limits := m.limits.Load()
	var violations []string

	if positionSizeUSD.GreaterThan(limits.MaxPositionSizeUSD) {
		violations = append(violations, fmt.Sprintf(
			"position size %s USD exceeds limit %s USD",
			positionSizeUSD.String(), limits.MaxPositionSizeUSD.String()))
	}

	if open := m.positions.OpenPositionCount(); open >= limits.MaxOpenPositions {
		violations = append(violations, fmt.Sprintf(
			"open positions %d at limit %d", open, limits.MaxOpenPositions))
	}

	if !limits.SymbolAllowed(intent.Symbol) {
		violations = append(violations, fmt.Sprintf(
			"symbol %s not in allowed list", intent.Symbol))
	}

	now := m.now()

	m.mu.Lock()
	if m.dailyStartingEquity.IsPositive() {
		lossPct := m.dailyStartingEquity.Sub(account.Equity).Div(m.dailyStartingEquity).Mul(hundred)
		if lossPct.GreaterThanOrEqual(limits.MaxDailyLossPercent) {
			violations = append(violations, fmt.Sprintf(
				"daily loss %s%% at limit %s%%",
				lossPct.StringFixed(2), limits.MaxDailyLossPercent.String()))
		}
	}

	if m.peakEquity.IsPositive() {
		drawdownPct := m.peakEquity.Sub(account.Equity).Div(m.peakEquity).Mul(hundred)
		if drawdownPct.GreaterThanOrEqual(limits.MaxDrawdownPercent) {
			violations = append(violations, fmt.Sprintf(
				"drawdown %s%% at limit %s%%",
				drawdownPct.StringFixed(2), limits.MaxDrawdownPercent.String()))
		}
	}

	cutoff := now.Add(-rateWindow)
	recent := m.recentOrders
	for len(recent) > 0 && recent[0].Before(cutoff) {
		recent = recent[1:]
	}
	m.recentOrders = recent
	if len(m.recentOrders) >= limits.MaxOrdersPerMinute {
		violations = append(violations, fmt.Sprintf(
			"order rate %d per minute at limit %d",
			len(m.recentOrders), limits.MaxOrdersPerMinute))
	}

	if len(violations) == 0 {
		// The only state mutation on the happy path
		m.recentOrders = append(m.recentOrders, now)
	}
	onReject := m.onReject
	m.mu.Unlock()

	if len(violations) > 0 {
		m.logger.Warn("Order rejected by risk gate",
			"symbol", intent.Symbol,
			"side", intent.Side.String(),
			"violations", violations)
		if onReject != nil {
			onReject(intent, violations)
		}
	}

	m.metrics.RecordCheck(context.Background(), len(violations) == 0)
	return violations
}

// UpdateEquity feeds an equity tick. The first tick seeds the daily starting
// equity; every tick raises the running peak.
func (m *Manager) UpdateEquity(equity decimal.Decimal) {
	m.mu.Lock()
	if m.dailyStartingEquity.IsZero() {
		m.dailyStartingEquity = equity
	}
	if equity.GreaterThan(m.peakEquity) {
		m.peakEquity = equity
	}
	m.lastEquity = equity
	peak := m.peakEquity
	m.mu.Unlock()

	m.metrics.SetEquity(equity.InexactFloat64(), peak.InexactFloat64())
}

// ResetDaily re-anchors the daily starting equity and clears the order-rate
// window. Invoked once per trading day by the scheduler. Peak equity is
// deliberately left untouched; drawdown tracks the all-time peak.
func (m *Manager) ResetDaily(equity decimal.Decimal) {
	m.mu.Lock()
	m.dailyStartingEquity = equity
	m.recentOrders = m.recentOrders[:0]
	m.mu.Unlock()

	m.logger.Info("Daily risk state reset", "starting_equity", equity.String())
}

// LastEquity returns the most recently observed equity
func (m *Manager) LastEquity() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastEquity
}

// OnKillSwitch registers a callback invoked on every kill switch transition.
// Register before the manager is shared across goroutines.
func (m *Manager) OnKillSwitch(fn func(engaged bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onKill = fn
}

// OnRejection registers a callback invoked after every rejected check.
// Register before the manager is shared across goroutines; the callback runs
// on the checking goroutine and must not block.
func (m *Manager) OnRejection(fn func(intent core.OrderIntent, violations []string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReject = fn
}

// SetKilled engages or clears the manual kill switch
func (m *Manager) SetKilled(killed bool) {
	m.killed.Store(killed)
	m.metrics.SetKillSwitch(killed)
	if killed {
		m.logger.Warn("Kill switch ENGAGED: all new orders will be rejected")
	} else {
		m.logger.Info("Kill switch cleared")
	}

	m.mu.Lock()
	fn := m.onKill
	m.mu.Unlock()
	if fn != nil {
		fn(killed)
	}
}

// IsKilled reports the kill switch state
func (m *Manager) IsKilled() bool {
	return m.killed.Load()
}

// UpdateLimits atomically swaps in a new limits snapshot. In-flight checks
// finish against the snapshot they loaded; the rate window and equity state
// carry over undisturbed.
func (m *Manager) UpdateLimits(limits *Limits) {
	m.limits.Store(limits)
	m.logger.Info("Risk limits updated",
		"max_position_size_usd", limits.MaxPositionSizeUSD.String(),
		"max_open_positions", limits.MaxOpenPositions,
		"max_orders_per_minute", limits.MaxOrdersPerMinute)
}

// GetLimits returns the current limits snapshot
func (m *Manager) GetLimits() *Limits {
	return m.limits.Load()
}
