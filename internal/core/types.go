// Package core defines the shared value types and interfaces for the risk gate
package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position or fill
type Side int8

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	if s == SideShort {
		return "short"
	}
	return "long"
}

// Opposite returns the opposing side
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Direction returns +1 for long, -1 for short, as a decimal multiplier for P&L math
func (s Side) Direction() decimal.Decimal {
	if s == SideShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// ParseSide parses a side string ("long"/"buy" or "short"/"sell")
func ParseSide(v string) (Side, error) {
	switch v {
	case "long", "buy", "LONG", "BUY":
		return SideLong, nil
	case "short", "sell", "SHORT", "SELL":
		return SideShort, nil
	}
	return SideLong, fmt.Errorf("invalid side: %q", v)
}

// MarginMode is the margin mode a position was opened with
type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
)

// PositionKey identifies a position by owning strategy and symbol
type PositionKey struct {
	StrategyID string
	Symbol     string
}

func (k PositionKey) String() string {
	return k.StrategyID + ":" + k.Symbol
}

// OrderIntent is a proposed order as seen by the pre-trade gate.
// The gate only reads Symbol, Side and ReduceOnly; everything else the
// order carries stays with the submission path.
type OrderIntent struct {
	Symbol        string
	Side          Side
	ReduceOnly    bool
	ClientOrderID string
}

// AccountState is the account snapshot supplied by the caller on every check
type AccountState struct {
	Equity decimal.Decimal
}

// Fill is a confirmed execution delivered by the exchange connector.
// Quantity must be positive; enforcing that is the connector's contract.
type Fill struct {
	Side      Side
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}

// PositionSnapshot is the persistable view of a single position
type PositionSnapshot struct {
	StrategyID    string          `json:"strategy_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Leverage      int             `json:"leverage"`
	MarginMode    MarginMode      `json:"margin_mode"`
	OpenedAt      time.Time       `json:"opened_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TrackerSnapshot is the persistable view of the whole position set
type TrackerSnapshot struct {
	Positions []PositionSnapshot `json:"positions"`
	TakenAt   int64              `json:"taken_at"`
}
