package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"riskgate/internal/core"
	"riskgate/internal/exit"
	"riskgate/pkg/logging"

	"github.com/shopspring/decimal"
)

type mockChannel struct {
	name     string
	sent     []Payload
	sendFunc func(ctx context.Context, alert Payload) error
	mu       sync.Mutex
}

func (m *mockChannel) Name() string {
	return m.name
}

func (m *mockChannel) Send(ctx context.Context, alert Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, alert)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, alert)
	}
	return nil
}

func (m *mockChannel) getSent() []Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Payload, len(m.sent))
	copy(res, m.sent)
	return res
}

func TestManager_Alert(t *testing.T) {
	am := NewManager(logging.NewNopLogger())

	ch1 := &mockChannel{name: "mock1"}
	ch2 := &mockChannel{name: "mock2"}

	am.AddChannel(ch1)
	am.AddChannel(ch2)

	am.Alert(context.Background(), "Test Alert", "This is a test", Info, map[string]string{"key": "value"})

	// Wait for goroutines (Alert is async)
	time.Sleep(100 * time.Millisecond)

	sent1 := ch1.getSent()
	sent2 := ch2.getSent()

	if len(sent1) != 1 {
		t.Errorf("Expected ch1 to receive 1 alert, got %d", len(sent1))
	}
	if len(sent2) != 1 {
		t.Errorf("Expected ch2 to receive 1 alert, got %d", len(sent2))
	}

	payload := sent1[0]
	if payload.Title != "Test Alert" {
		t.Errorf("Expected title 'Test Alert', got '%s'", payload.Title)
	}
	if payload.Level != Info {
		t.Errorf("Expected level INFO, got %s", payload.Level)
	}
	if payload.Fields["key"] != "value" {
		t.Errorf("Expected field key=value, got %s", payload.Fields["key"])
	}
}

func TestNotifier_NilReceiver(t *testing.T) {
	var n *Notifier

	// Must not panic when alerting is not configured
	n.KillSwitch(true)
	n.OrderRejected(core.OrderIntent{Symbol: "BTCUSDT", Side: core.SideLong}, []string{"x"})
	n.ExitEligible(exit.Signal{})
}

func TestNotifier_KillSwitch(t *testing.T) {
	am := NewManager(logging.NewNopLogger())
	ch := &mockChannel{name: "mock"}
	am.AddChannel(ch)
	n := NewNotifier(am)

	n.KillSwitch(true)
	time.Sleep(100 * time.Millisecond)

	sent := ch.getSent()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(sent))
	}
	if sent[0].Level != Critical {
		t.Errorf("Expected CRITICAL level for kill switch engage, got %s", sent[0].Level)
	}
}

func TestNotifier_ExitEligible(t *testing.T) {
	am := NewManager(logging.NewNopLogger())
	ch := &mockChannel{name: "mock"}
	am.AddChannel(ch)
	n := NewNotifier(am)

	n.ExitEligible(exit.Signal{
		StrategyID: "momentum",
		Symbol:     "ETHUSDT",
		Zone:       "failure",
		PnLPercent: decimal.NewFromFloat(-6.5),
		BarsInZone: 3,
	})
	time.Sleep(100 * time.Millisecond)

	sent := ch.getSent()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(sent))
	}
	if sent[0].Fields["zone"] != "failure" {
		t.Errorf("Expected zone field 'failure', got %q", sent[0].Fields["zone"])
	}
}
