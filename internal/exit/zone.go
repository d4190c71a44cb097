// Package exit classifies position P&L into configured exit zones
package exit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"riskgate/internal/config"
	apperrors "riskgate/pkg/errors"
)

// Exit policy types carried by a zone. Execution of the policy is the
// exit-execution layer's concern; the classifier only carries it.
const (
	PolicyNone            = "none"
	PolicyFixedPercent    = "fixed_percent"
	PolicyTrailingPercent = "trailing_percent"
	PolicyATR             = "atr"
)

// Policy describes a stop-loss or take-profit policy attached to a zone
type Policy struct {
	Type  string
	Value decimal.NullDecimal
}

// Zone is one configured P&L band. Bounds form the half-open interval
// [min, max); an invalid (absent) bound is unbounded on that end, so a zone
// with both bounds absent matches every value.
type Zone struct {
	Name              string
	MinPnLPercent     decimal.NullDecimal
	MaxPnLPercent     decimal.NullDecimal
	StopLoss          Policy
	TakeProfit        Policy
	ExitImmediately   bool
	MinBarsBeforeExit int
}

// ZoneConfig is the validated construction surface for a Zone
type ZoneConfig struct {
	Name              string
	MinPnLPercent     decimal.NullDecimal
	MaxPnLPercent     decimal.NullDecimal
	StopLoss          Policy
	TakeProfit        Policy
	ExitImmediately   bool
	MinBarsBeforeExit int
}

// NewZone validates the configuration and returns an immutable zone value
func NewZone(cfg ZoneConfig) (Zone, error) {
	if cfg.Name == "" {
		return Zone{}, fmt.Errorf("zone name is required")
	}
	if cfg.MinPnLPercent.Valid && cfg.MaxPnLPercent.Valid &&
		cfg.MinPnLPercent.Decimal.GreaterThanOrEqual(cfg.MaxPnLPercent.Decimal) {
		return Zone{}, fmt.Errorf("zone %q: %w: min %s must be below max %s",
			cfg.Name, apperrors.ErrInvalidZoneBounds,
			cfg.MinPnLPercent.Decimal.String(), cfg.MaxPnLPercent.Decimal.String())
	}
	if cfg.MinBarsBeforeExit < 0 {
		return Zone{}, fmt.Errorf("zone %q: min bars before exit must not be negative", cfg.Name)
	}
	for _, policy := range []Policy{cfg.StopLoss, cfg.TakeProfit} {
		switch policy.Type {
		case "", PolicyNone, PolicyFixedPercent, PolicyTrailingPercent, PolicyATR:
		default:
			return Zone{}, fmt.Errorf("zone %q: %w: %q", cfg.Name, apperrors.ErrUnknownPolicyType, policy.Type)
		}
	}

	return Zone{
		Name:              cfg.Name,
		MinPnLPercent:     cfg.MinPnLPercent,
		MaxPnLPercent:     cfg.MaxPnLPercent,
		StopLoss:          cfg.StopLoss,
		TakeProfit:        cfg.TakeProfit,
		ExitImmediately:   cfg.ExitImmediately,
		MinBarsBeforeExit: cfg.MinBarsBeforeExit,
	}, nil
}

// DefaultZone returns the unbounded fallback zone
func DefaultZone() Zone {
	return Zone{Name: "default"}
}

// Matches reports whether the P&L percentage falls inside [min, max)
func (z Zone) Matches(pnlPercent decimal.Decimal) bool {
	if z.MinPnLPercent.Valid && pnlPercent.LessThan(z.MinPnLPercent.Decimal) {
		return false
	}
	if z.MaxPnLPercent.Valid && pnlPercent.GreaterThanOrEqual(z.MaxPnLPercent.Decimal) {
		return false
	}
	return true
}

// ZoneSet evaluates an ordered zone list with first-match-wins semantics.
// Supplying zones whose intervals partition the real line without gaps or
// overlaps is the caller's obligation; anything unmatched falls through to
// the default zone.
type ZoneSet struct {
	zones    []Zone
	fallback Zone
}

// NewZoneSet builds a set over the caller-supplied ordered zone list
func NewZoneSet(zones []Zone) *ZoneSet {
	owned := make([]Zone, len(zones))
	copy(owned, zones)
	return &ZoneSet{
		zones:    owned,
		fallback: DefaultZone(),
	}
}

// Classify returns the first matching zone, or the default zone if none match
func (s *ZoneSet) Classify(pnlPercent decimal.Decimal) Zone {
	for _, z := range s.zones {
		if z.Matches(pnlPercent) {
			return z
		}
	}
	return s.fallback
}

// Zones returns a copy of the configured zone list
func (s *ZoneSet) Zones() []Zone {
	res := make([]Zone, len(s.zones))
	copy(res, s.zones)
	return res
}

// ZonesFromConfig converts and validates the loaded zone configuration
func ZonesFromConfig(cfgs []config.ZoneConfig) ([]Zone, error) {
	zones := make([]Zone, 0, len(cfgs))
	for _, c := range cfgs {
		zone, err := NewZone(ZoneConfig{
			Name:              c.Name,
			MinPnLPercent:     nullDecimal(c.MinPnLPercent),
			MaxPnLPercent:     nullDecimal(c.MaxPnLPercent),
			StopLoss:          Policy{Type: c.StopLoss.Type, Value: nullDecimal(c.StopLoss.Value)},
			TakeProfit:        Policy{Type: c.TakeProfit.Type, Value: nullDecimal(c.TakeProfit.Value)},
			ExitImmediately:   c.ExitImmediately,
			MinBarsBeforeExit: c.MinBarsBeforeExit,
		})
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(*v), Valid: true}
}
