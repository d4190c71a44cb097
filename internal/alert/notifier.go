package alert

import (
	"context"
	"fmt"
	"strings"

	"riskgate/internal/core"
	"riskgate/internal/exit"
)

// Notifier translates risk events into alerts. All methods are safe on a
// nil receiver so callers can wire alerting conditionally.
type Notifier struct {
	manager *Manager
}

func NewNotifier(manager *Manager) *Notifier {
	return &Notifier{manager: manager}
}

// KillSwitch reports a kill switch transition
func (n *Notifier) KillSwitch(engaged bool) {
	if n == nil {
		return
	}
	if engaged {
		n.manager.Alert(context.Background(), "Kill switch engaged",
			"All order flow is blocked until the kill switch is released.",
			Critical, nil)
		return
	}
	n.manager.Alert(context.Background(), "Kill switch released",
		"Order flow has resumed.", Info, nil)
}

// OrderRejected reports a pre-trade gate rejection with its violations
func (n *Notifier) OrderRejected(intent core.OrderIntent, violations []string) {
	if n == nil {
		return
	}
	n.manager.Alert(context.Background(), "Order rejected",
		strings.Join(violations, "; "),
		Warning, map[string]string{
			"symbol": intent.Symbol,
			"side":   intent.Side.String(),
		})
}

// ExitEligible reports a position whose exit zone dwell requirement is met
func (n *Notifier) ExitEligible(sig exit.Signal) {
	if n == nil {
		return
	}
	n.manager.Alert(context.Background(), "Position exit eligible",
		fmt.Sprintf("Position %s/%s is in zone %q and eligible for exit.",
			sig.StrategyID, sig.Symbol, sig.Zone),
		Warning, map[string]string{
			"strategy": sig.StrategyID,
			"symbol":   sig.Symbol,
			"zone":     sig.Zone,
			"pnl_pct":  sig.PnLPercent.StringFixed(4),
			"bars":     fmt.Sprintf("%d", sig.BarsInZone),
		})
}
