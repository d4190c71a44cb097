package position

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"riskgate/internal/core"
	"riskgate/pkg/telemetry"
)

// Tracker owns the full set of open positions keyed by (strategyID, symbol).
// Fill ordering per key is preserved by the per-position mutex: the fill
// delivery context applies fills for one key sequentially, while fills for
// different keys proceed concurrently.
type Tracker struct {
	logger  core.ILogger
	metrics *telemetry.Metrics

	mu        sync.RWMutex
	positions map[core.PositionKey]*Position
}

// NewTracker creates an empty tracker. metrics may be nil.
func NewTracker(logger core.ILogger, metrics *telemetry.Metrics) *Tracker {
	return &Tracker{
		logger:    logger.WithField("component", "position_tracker"),
		metrics:   metrics,
		positions: make(map[core.PositionKey]*Position),
	}
}

// ApplyFill dispatches one fill to the position for the key, creating the
// position on first contact. Returns the realized P&L of this fill.
func (t *Tracker) ApplyFill(key core.PositionKey, fill core.Fill) decimal.Decimal {
	pos := t.getOrCreate(key, fill.Timestamp)
	realized := pos.ApplyFill(fill)

	if !realized.IsZero() {
		t.logger.Info("Realized P&L on fill",
			"strategy", key.StrategyID,
			"symbol", key.Symbol,
			"pnl", realized.String())
	}

	t.metrics.RecordFill(context.Background(), key.Symbol, realized.InexactFloat64())
	t.metrics.SetOpenPositions(t.OpenPositionCount())
	return realized
}

// Get returns the position for a key if it exists
func (t *Tracker) Get(key core.PositionKey) (*Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[key]
	return pos, ok
}

// OpenPositionCount reports positions with quantity > 0 across all
// strategies. The risk gate consults this on every check, so it reflects the
// latest applied fill rather than a cached snapshot.
func (t *Tracker) OpenPositionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, pos := range t.positions {
		if !pos.IsClosed() {
			count++
		}
	}
	return count
}

// Positions returns the current position set. Closed positions that have not
// been swept yet are included.
func (t *Tracker) Positions() []*Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := make([]*Position, 0, len(t.positions))
	for _, pos := range t.positions {
		res = append(res, pos)
	}
	return res
}

// RemoveClosed sweeps fully-reduced positions out of the map and returns how
// many were removed. Sweeping lazily is a tracker policy; counts stay correct
// either way because closed positions are excluded from OpenPositionCount.
func (t *Tracker) RemoveClosed() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, pos := range t.positions {
		if pos.IsClosed() {
			delete(t.positions, key)
			removed++
		}
	}
	if removed > 0 {
		t.logger.Debug("Swept closed positions", "count", removed)
	}
	return removed
}

// Snapshot returns a persistable view of all tracked positions
func (t *Tracker) Snapshot() *core.TrackerSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := &core.TrackerSnapshot{
		Positions: make([]core.PositionSnapshot, 0, len(t.positions)),
		TakenAt:   time.Now().UnixNano(),
	}
	for _, pos := range t.positions {
		snap.Positions = append(snap.Positions, pos.Snapshot())
	}
	return snap
}

// Restore replaces the tracked set from a snapshot
func (t *Tracker) Restore(snap *core.TrackerSnapshot) error {
	if snap == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.positions = make(map[core.PositionKey]*Position, len(snap.Positions))
	for _, ps := range snap.Positions {
		key := core.PositionKey{StrategyID: ps.StrategyID, Symbol: ps.Symbol}
		pos := NewPosition(key, ps.Leverage, ps.MarginMode, ps.OpenedAt)
		if err := pos.restore(ps); err != nil {
			return err
		}
		t.positions[key] = pos
	}

	t.logger.Info("Restored positions from snapshot", "count", len(snap.Positions))
	return nil
}

func (t *Tracker) getOrCreate(key core.PositionKey, openedAt time.Time) *Position {
	t.mu.RLock()
	pos, ok := t.positions[key]
	t.mu.RUnlock()
	if ok {
		return pos
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if pos, ok = t.positions[key]; ok {
		return pos
	}
	pos = NewPosition(key, 1, core.MarginCross, openedAt)
	t.positions[key] = pos
	return pos
}
