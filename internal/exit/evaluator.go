package exit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"riskgate/internal/core"
	"riskgate/internal/position"
	"riskgate/pkg/concurrency"
	"riskgate/pkg/telemetry"
)

// Signal is one exit-zone classification result published to subscribers
type Signal struct {
	ID         uuid.UUID
	StrategyID string
	Symbol     string
	Zone       string
	PnLPercent decimal.Decimal
	BarsInZone int
	// ExitEligible reports that the zone's dwell requirement is met, or that
	// the zone demands an immediate exit regardless of dwell
	ExitEligible bool
	Timestamp    time.Time
}

// zoneState tracks consecutive evaluation ticks a position has spent in the
// same zone. Leaving the zone resets the count.
type zoneState struct {
	zone string
	bars int
}

type subscriber func(Signal)

// Evaluator periodically classifies every open position against the zone set
// using the latest mark price and fans out signals to subscribers.
type Evaluator struct {
	tracker  *position.Tracker
	zones    *ZoneSet
	logger   core.ILogger
	metrics  *telemetry.Metrics
	pool     *concurrency.WorkerPool
	interval time.Duration

	mu          sync.Mutex
	marks       map[string]decimal.Decimal
	states      map[core.PositionKey]zoneState
	subscribers []subscriber

	now func() time.Time
}

// NewEvaluator wires the evaluator. metrics may be nil; pool owns signal
// delivery so slow subscribers never stall the evaluation loop.
func NewEvaluator(
	tracker *position.Tracker,
	zones *ZoneSet,
	interval time.Duration,
	pool *concurrency.WorkerPool,
	logger core.ILogger,
	metrics *telemetry.Metrics,
) *Evaluator {
	return &Evaluator{
		tracker:  tracker,
		zones:    zones,
		logger:   logger.WithField("component", "exit_evaluator"),
		metrics:  metrics,
		pool:     pool,
		interval: interval,
		marks:    make(map[string]decimal.Decimal),
		states:   make(map[core.PositionKey]zoneState),
		now:      time.Now,
	}
}

// OnPrice records the latest mark price for a symbol
func (e *Evaluator) OnPrice(symbol string, price decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marks[symbol] = price
}

// Subscribe registers a callback invoked for every emitted signal. Callbacks
// run on the worker pool, not on the evaluation goroutine.
func (e *Evaluator) Subscribe(fn func(Signal)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// Run evaluates on the configured interval until the context is cancelled
func (e *Evaluator) Run(ctx context.Context) error {
	e.logger.Info("Exit evaluator started", "interval", e.interval.String())
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Exit evaluator stopped")
			return nil
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one evaluation pass over all open positions. Positions whose
// symbol has no mark price yet are skipped; closed positions have their dwell
// state dropped.
func (e *Evaluator) Tick() []Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var signals []Signal
	live := make(map[core.PositionKey]struct{})

	for _, pos := range e.tracker.Positions() {
		if pos.IsClosed() {
			continue
		}
		key := pos.Key()
		live[key] = struct{}{}

		mark, ok := e.marks[key.Symbol]
		if !ok {
			continue
		}

		pnlPct := pnlPercent(pos, mark)
		zone := e.zones.Classify(pnlPct)

		state := e.states[key]
		if state.zone == zone.Name {
			state.bars++
		} else {
			state = zoneState{zone: zone.Name, bars: 1}
		}
		e.states[key] = state

		sig := Signal{
			ID:           uuid.New(),
			StrategyID:   key.StrategyID,
			Symbol:       key.Symbol,
			Zone:         zone.Name,
			PnLPercent:   pnlPct,
			BarsInZone:   state.bars,
			ExitEligible: zone.ExitImmediately || state.bars >= zone.MinBarsBeforeExit,
			Timestamp:    now,
		}
		signals = append(signals, sig)
		e.publish(sig)
	}

	for key := range e.states {
		if _, ok := live[key]; !ok {
			delete(e.states, key)
		}
	}

	return signals
}

// publish fans one signal out to every subscriber. Caller holds e.mu.
func (e *Evaluator) publish(sig Signal) {
	e.metrics.RecordExitSignal(context.Background(), sig.Zone)

	if sig.ExitEligible {
		e.logger.Info("Exit-eligible position",
			"strategy", sig.StrategyID,
			"symbol", sig.Symbol,
			"zone", sig.Zone,
			"pnl_pct", sig.PnLPercent.String(),
			"bars", sig.BarsInZone)
	}

	for _, fn := range e.subscribers {
		fn := fn
		if e.pool != nil {
			_ = e.pool.Submit(func() { fn(sig) })
		} else {
			fn(sig)
		}
	}
}

// pnlPercent computes unrealized P&L as a percentage of entry notional
func pnlPercent(pos *position.Position, mark decimal.Decimal) decimal.Decimal {
	entryNotional := pos.AvgEntryPrice().Mul(pos.Quantity())
	if entryNotional.IsZero() {
		return decimal.Zero
	}
	return pos.UnrealizedPnL(mark).Div(entryNotional).Mul(decimal.NewFromInt(100))
}
