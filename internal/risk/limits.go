// Package risk provides the pre-trade risk gate and its limit configuration
package risk

import (
	"github.com/shopspring/decimal"

	"riskgate/internal/config"
)

// Limits is an immutable snapshot of the configurable risk thresholds.
// It is replaced wholesale on update, never mutated field by field, so
// concurrent readers always see a coherent set.
type Limits struct {
	MaxPositionSizeUSD  decimal.Decimal
	MaxOpenPositions    int
	MaxDailyLossPercent decimal.Decimal
	MaxDrawdownPercent  decimal.Decimal
	MaxOrdersPerMinute  int
	AllowedSymbols      []string // empty = no whitelist restriction
}

// DefaultLimits returns the hard-coded default thresholds
func DefaultLimits() *Limits {
	return &Limits{
		MaxPositionSizeUSD:  decimal.NewFromInt(10000),
		MaxOpenPositions:    5,
		MaxDailyLossPercent: decimal.NewFromFloat(5.0),
		MaxDrawdownPercent:  decimal.NewFromFloat(15.0),
		MaxOrdersPerMinute:  10,
	}
}

// LimitsFromConfig builds a limits snapshot from loaded configuration
func LimitsFromConfig(cfg config.RiskLimitsConfig) *Limits {
	allowed := make([]string, len(cfg.AllowedSymbols))
	copy(allowed, cfg.AllowedSymbols)

	return &Limits{
		MaxPositionSizeUSD:  decimal.NewFromFloat(cfg.MaxPositionSizeUSD),
		MaxOpenPositions:    cfg.MaxOpenPositions,
		MaxDailyLossPercent: decimal.NewFromFloat(cfg.MaxDailyLossPercent),
		MaxDrawdownPercent:  decimal.NewFromFloat(cfg.MaxDrawdownPercent),
		MaxOrdersPerMinute:  cfg.MaxOrdersPerMinute,
		AllowedSymbols:      allowed,
	}
}

// SymbolAllowed reports whether the symbol passes the whitelist. An empty
// whitelist admits every symbol.
func (l *Limits) SymbolAllowed(symbol string) bool {
	if len(l.AllowedSymbols) == 0 {
		return true
	}
	for _, s := range l.AllowedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}
