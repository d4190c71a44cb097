package position

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/core"
	"riskgate/pkg/logging"
)

func newTestTracker() *Tracker {
	return NewTracker(logging.NewNopLogger(), nil)
}

func TestTracker_CreatesPositionOnFirstFill(t *testing.T) {
	tracker := newTestTracker()
	key := core.PositionKey{StrategyID: "grid-1", Symbol: "BTCUSDT"}

	tracker.ApplyFill(key, fill(core.SideLong, 1, 100))

	pos, ok := tracker.Get(key)
	require.True(t, ok)
	assert.True(t, pos.Quantity().Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 1, tracker.OpenPositionCount())
}

func TestTracker_IndependentKeys(t *testing.T) {
	tracker := newTestTracker()
	k1 := core.PositionKey{StrategyID: "grid-1", Symbol: "BTCUSDT"}
	k2 := core.PositionKey{StrategyID: "grid-1", Symbol: "ETHUSDT"}
	k3 := core.PositionKey{StrategyID: "momentum", Symbol: "BTCUSDT"}

	tracker.ApplyFill(k1, fill(core.SideLong, 1, 100))
	tracker.ApplyFill(k2, fill(core.SideShort, 2, 50))
	tracker.ApplyFill(k3, fill(core.SideLong, 3, 100))

	assert.Equal(t, 3, tracker.OpenPositionCount())

	// Same symbol under a different strategy is a distinct position
	p1, _ := tracker.Get(k1)
	p3, _ := tracker.Get(k3)
	assert.True(t, p1.Quantity().Equal(decimal.NewFromInt(1)))
	assert.True(t, p3.Quantity().Equal(decimal.NewFromInt(3)))
}

func TestTracker_ClosedPositionsNotCounted(t *testing.T) {
	tracker := newTestTracker()
	key := core.PositionKey{StrategyID: "grid-1", Symbol: "BTCUSDT"}

	tracker.ApplyFill(key, fill(core.SideLong, 1, 100))
	realized := tracker.ApplyFill(key, fill(core.SideShort, 1, 110))

	assert.True(t, realized.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 0, tracker.OpenPositionCount())

	// Closed but not swept: still retrievable
	_, ok := tracker.Get(key)
	assert.True(t, ok)

	assert.Equal(t, 1, tracker.RemoveClosed())
	_, ok = tracker.Get(key)
	assert.False(t, ok)
}

func TestTracker_ConcurrentFillsAcrossKeys(t *testing.T) {
	tracker := newTestTracker()
	const fillsPerKey = 100

	keys := []core.PositionKey{
		{StrategyID: "a", Symbol: "BTCUSDT"},
		{StrategyID: "b", Symbol: "ETHUSDT"},
		{StrategyID: "c", Symbol: "SOLUSDT"},
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(k core.PositionKey) {
			defer wg.Done()
			for i := 0; i < fillsPerKey; i++ {
				tracker.ApplyFill(k, fill(core.SideLong, 1, 100))
			}
		}(key)
	}
	wg.Wait()

	for _, key := range keys {
		pos, ok := tracker.Get(key)
		require.True(t, ok)
		assert.True(t, pos.Quantity().Equal(decimal.NewFromInt(fillsPerKey)),
			"key %s qty = %s", key, pos.Quantity())
	}
}

func TestTracker_SnapshotRestore(t *testing.T) {
	tracker := newTestTracker()
	k1 := core.PositionKey{StrategyID: "grid-1", Symbol: "BTCUSDT"}
	k2 := core.PositionKey{StrategyID: "grid-1", Symbol: "ETHUSDT"}

	tracker.ApplyFill(k1, fill(core.SideLong, 2, 100))
	tracker.ApplyFill(k2, fill(core.SideShort, 1, 3000))
	tracker.ApplyFill(k1, fill(core.SideShort, 1, 120))

	snap := tracker.Snapshot()
	require.Len(t, snap.Positions, 2)
	assert.NotZero(t, snap.TakenAt)

	fresh := newTestTracker()
	require.NoError(t, fresh.Restore(snap))

	p1, ok := fresh.Get(k1)
	require.True(t, ok)
	assert.True(t, p1.Quantity().Equal(decimal.NewFromInt(1)))
	assert.True(t, p1.RealizedPnL().Equal(decimal.NewFromInt(20)))

	p2, ok := fresh.Get(k2)
	require.True(t, ok)
	assert.Equal(t, core.SideShort, p2.Side())
}

func TestTracker_RestoreNilSnapshotIsNoop(t *testing.T) {
	tracker := newTestTracker()
	require.NoError(t, tracker.Restore(nil))
	assert.Equal(t, 0, tracker.OpenPositionCount())
}

func TestTracker_FillOrderingPerKey(t *testing.T) {
	tracker := newTestTracker()
	key := core.PositionKey{StrategyID: "grid-1", Symbol: "BTCUSDT"}
	base := time.Now()

	// In-order delivery: open, add, reduce
	tracker.ApplyFill(key, core.Fill{Side: core.SideLong, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), Timestamp: base})
	tracker.ApplyFill(key, core.Fill{Side: core.SideLong, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(200), Timestamp: base.Add(time.Second)})
	realized := tracker.ApplyFill(key, core.Fill{Side: core.SideShort, Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(150), Timestamp: base.Add(2 * time.Second)})

	assert.True(t, realized.IsZero(), "selling 2 at the blended entry realizes nothing, got %s", realized)
}
