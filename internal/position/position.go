// Package position owns per-strategy position state and fill application
package position

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"riskgate/internal/core"
)

// Position is a single strategy+symbol position. It owns its quantity,
// average entry price and cumulative realized P&L, and mutates in place as
// fills arrive. Quantity never goes negative; a short is a positive quantity
// with side short.
type Position struct {
	mu sync.Mutex

	key        core.PositionKey
	side       core.Side
	quantity   decimal.Decimal
	avgEntry   decimal.Decimal
	realized   decimal.Decimal
	leverage   int
	marginMode core.MarginMode
	openedAt   time.Time
	updatedAt  time.Time
}

// NewPosition creates an empty position for a key. The first applied fill
// determines the side.
func NewPosition(key core.PositionKey, leverage int, marginMode core.MarginMode, openedAt time.Time) *Position {
	return &Position{
		key:        key,
		leverage:   leverage,
		marginMode: marginMode,
		openedAt:   openedAt,
		updatedAt:  openedAt,
	}
}

// ApplyFill mutates the position with one fill and returns the realized P&L
// of this fill alone. A same-side fill reweights the average entry price and
// realizes nothing. An opposite-side fill reduces the position, realizing
// (fillPrice - avgEntry) * reducedQty signed by the original side; if the
// fill quantity exceeds the held quantity the position flips to the fill's
// side with the remainder at the fill price.
//
// Fill.Quantity <= 0 is a caller contract violation and must be rejected
// upstream.
func (p *Position) ApplyFill(f core.Fill) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.updatedAt = f.Timestamp

	if f.Side == p.side {
		newQty := p.quantity.Add(f.Quantity)
		notional := p.avgEntry.Mul(p.quantity).Add(f.Price.Mul(f.Quantity))
		p.avgEntry = notional.Div(newQty)
		p.quantity = newQty
		return decimal.Zero
	}

	reduceQty := decimal.Min(f.Quantity, p.quantity)
	pnl := f.Price.Sub(p.avgEntry).Mul(reduceQty).Mul(p.side.Direction())
	p.realized = p.realized.Add(pnl)
	p.quantity = p.quantity.Sub(reduceQty)

	if f.Quantity.GreaterThan(reduceQty) {
		// Flip: the overshoot opens a fresh position on the fill's side
		p.side = f.Side
		p.quantity = f.Quantity.Sub(reduceQty)
		p.avgEntry = f.Price
	}

	return pnl
}

// UnrealizedPnL returns the mark-to-market P&L at the given price
func (p *Position) UnrealizedPnL(markPrice decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return markPrice.Sub(p.avgEntry).Mul(p.quantity).Mul(p.side.Direction())
}

// NotionalValue returns the position size in quote currency at the given price
func (p *Position) NotionalValue(markPrice decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quantity.Abs().Mul(markPrice)
}

// IsClosed reports whether the position has been fully reduced
func (p *Position) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quantity.IsZero()
}

func (p *Position) Key() core.PositionKey { return p.key }

func (p *Position) Side() core.Side {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.side
}

func (p *Position) Quantity() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quantity
}

func (p *Position) AvgEntryPrice() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.avgEntry
}

func (p *Position) RealizedPnL() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

// Snapshot returns a consistent persistable view of the position
func (p *Position) Snapshot() core.PositionSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.PositionSnapshot{
		StrategyID:    p.key.StrategyID,
		Symbol:        p.key.Symbol,
		Side:          p.side.String(),
		Quantity:      p.quantity,
		AvgEntryPrice: p.avgEntry,
		RealizedPnL:   p.realized,
		Leverage:      p.leverage,
		MarginMode:    p.marginMode,
		OpenedAt:      p.openedAt,
		UpdatedAt:     p.updatedAt,
	}
}

// restore overwrites the position state from a snapshot
func (p *Position) restore(snap core.PositionSnapshot) error {
	side, err := core.ParseSide(snap.Side)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.side = side
	p.quantity = snap.Quantity
	p.avgEntry = snap.AvgEntryPrice
	p.realized = snap.RealizedPnL
	p.leverage = snap.Leverage
	p.marginMode = snap.MarginMode
	p.openedAt = snap.OpenedAt
	p.updatedAt = snap.UpdatedAt
	return nil
}
