package position

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/core"
)

func testKey() core.PositionKey {
	return core.PositionKey{StrategyID: "grid-1", Symbol: "BTCUSDT"}
}

func newTestPosition() *Position {
	return NewPosition(testKey(), 1, core.MarginCross, time.Now())
}

func fill(side core.Side, qty, price float64) core.Fill {
	return core.Fill{
		Side:      side,
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		Timestamp: time.Now(),
	}
}

func TestPosition_SameSideFillReweightsAverage(t *testing.T) {
	pos := newTestPosition()

	realized := pos.ApplyFill(fill(core.SideLong, 1, 100))
	assert.True(t, realized.IsZero())

	realized = pos.ApplyFill(fill(core.SideLong, 1, 200))
	assert.True(t, realized.IsZero())

	assert.True(t, pos.Quantity().Equal(decimal.NewFromInt(2)), "qty = %s", pos.Quantity())
	assert.True(t, pos.AvgEntryPrice().Equal(decimal.NewFromInt(150)), "avg = %s", pos.AvgEntryPrice())
	assert.True(t, pos.RealizedPnL().IsZero())
}

func TestPosition_ReduceRealizesPnL(t *testing.T) {
	pos := newTestPosition()
	pos.ApplyFill(fill(core.SideLong, 1, 100))
	pos.ApplyFill(fill(core.SideLong, 1, 200))

	realized := pos.ApplyFill(fill(core.SideShort, 1, 200))

	// (200 - 150) * 1 on the long side
	assert.True(t, realized.Equal(decimal.NewFromInt(50)), "realized = %s", realized)
	assert.True(t, pos.Quantity().Equal(decimal.NewFromInt(1)))
	assert.True(t, pos.AvgEntryPrice().Equal(decimal.NewFromInt(150)), "reduce must not move avg entry")
	assert.Equal(t, core.SideLong, pos.Side())
}

func TestPosition_OverfillFlipsSide(t *testing.T) {
	pos := newTestPosition()
	pos.ApplyFill(fill(core.SideLong, 1, 150))

	realized := pos.ApplyFill(fill(core.SideShort, 3, 200))

	// Realizes (200-150)*1 on the long leg, then opens short 2 @ 200
	assert.True(t, realized.Equal(decimal.NewFromInt(50)), "realized = %s", realized)
	assert.Equal(t, core.SideShort, pos.Side())
	assert.True(t, pos.Quantity().Equal(decimal.NewFromInt(2)), "qty = %s", pos.Quantity())
	assert.True(t, pos.AvgEntryPrice().Equal(decimal.NewFromInt(200)))
}

func TestPosition_ShortSideRealization(t *testing.T) {
	pos := newTestPosition()
	pos.ApplyFill(fill(core.SideShort, 2, 100))

	// Covering half at a lower price profits a short
	realized := pos.ApplyFill(fill(core.SideLong, 1, 90))
	assert.True(t, realized.Equal(decimal.NewFromInt(10)), "realized = %s", realized)

	// Covering the rest at a higher price loses
	realized = pos.ApplyFill(fill(core.SideLong, 1, 110))
	assert.True(t, realized.Equal(decimal.NewFromInt(-10)), "realized = %s", realized)

	assert.True(t, pos.IsClosed())
	assert.True(t, pos.RealizedPnL().IsZero())
}

func TestPosition_ExactCloseThenReopen(t *testing.T) {
	pos := newTestPosition()
	pos.ApplyFill(fill(core.SideLong, 1, 100))

	realized := pos.ApplyFill(fill(core.SideShort, 1, 120))
	assert.True(t, realized.Equal(decimal.NewFromInt(20)))
	assert.True(t, pos.IsClosed())

	// A fresh fill on a flat position opens at the fill price with no
	// residue from the prior average entry
	realized = pos.ApplyFill(fill(core.SideShort, 1, 80))
	assert.True(t, realized.IsZero())
	assert.Equal(t, core.SideShort, pos.Side())
	assert.True(t, pos.AvgEntryPrice().Equal(decimal.NewFromInt(80)), "avg = %s", pos.AvgEntryPrice())
}

func TestPosition_UnrealizedPnL(t *testing.T) {
	pos := newTestPosition()
	pos.ApplyFill(fill(core.SideLong, 2, 100))

	unreal := pos.UnrealizedPnL(decimal.NewFromInt(110))
	assert.True(t, unreal.Equal(decimal.NewFromInt(20)), "unrealized = %s", unreal)

	short := newTestPosition()
	short.ApplyFill(fill(core.SideShort, 2, 100))
	unreal = short.UnrealizedPnL(decimal.NewFromInt(110))
	assert.True(t, unreal.Equal(decimal.NewFromInt(-20)), "unrealized = %s", unreal)
}

func TestPosition_NotionalValue(t *testing.T) {
	pos := newTestPosition()
	pos.ApplyFill(fill(core.SideShort, 3, 100))

	notional := pos.NotionalValue(decimal.NewFromInt(200))
	assert.True(t, notional.Equal(decimal.NewFromInt(600)), "notional = %s", notional)
}

func TestPosition_SnapshotRoundTrip(t *testing.T) {
	pos := newTestPosition()
	pos.ApplyFill(fill(core.SideLong, 2, 100))
	pos.ApplyFill(fill(core.SideShort, 1, 130))

	snap := pos.Snapshot()
	assert.Equal(t, "grid-1", snap.StrategyID)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, "long", snap.Side)

	restored := NewPosition(testKey(), snap.Leverage, snap.MarginMode, snap.OpenedAt)
	require.NoError(t, restored.restore(snap))

	assert.True(t, restored.Quantity().Equal(pos.Quantity()))
	assert.True(t, restored.AvgEntryPrice().Equal(pos.AvgEntryPrice()))
	assert.True(t, restored.RealizedPnL().Equal(pos.RealizedPnL()))
	assert.Equal(t, pos.Side(), restored.Side())
}

func TestPosition_RestoreRejectsBadSide(t *testing.T) {
	snap := core.PositionSnapshot{Side: "sideways"}
	pos := newTestPosition()
	require.Error(t, pos.restore(snap))
}
