package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-delivery/kite/internal/bus"
	"github.com/opensource-delivery/kite/internal/domain"
	"github.com/opensource-delivery/kite/internal/engine"
	"github.com/opensource-delivery/kite/internal/fraud"
	"github.com/opensource-delivery/kite/internal/history"
	"github.com/opensource-delivery/kite/internal/intel"
	"github.com/opensource-delivery/kite/internal/ml"
	"github.com/opensource-delivery/kite/internal/policy"
)

type stubHistory struct{}

func (s *stubHistory) HistorySnapshot(ctx context.Context, customerID string) (*domain.HistorySnapshot, error) {
	return &domain.HistorySnapshot{}, nil
}

func (s *stubHistory) CustomerSummary(ctx context.Context, customerID string) (*domain.CustomerSummary, error) {
	return &domain.CustomerSummary{}, nil
}

func newOrchestrator(t *testing.T, rules []*domain.PolicyRule) *engine.Orchestrator {
	t.Helper()

	policyEngine, err := policy.NewEngine()
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	policyEngine.LoadRules(rules)

	stub := &stubHistory{}
	return engine.New(
		policyEngine,
		ml.NewAdapter(nil),
		intel.NewAnalyzer(),
		fraud.NewScorer(stub, domain.FraudConfig{}),
		history.NewProfiler(stub, nil, time.Minute),
	)
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	orchestrator := newOrchestrator(t, []*domain.PolicyRule{{
		ID:         "missing-refund",
		Conditions: map[string]interface{}{"order_status": "missing_delivery"},
		Decision:   domain.DecisionRefund,
		Confidence: 0.95,
	}})

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, nil, orchestrator)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicComplaintReceived {
			t.Errorf("expected intake topic, got %s", stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessComplaint", func(t *testing.T) {
		w := NewWorker(eventBus, nil, orchestrator)
		w.Start()
		defer w.Stop()

		var decisionReceived atomic.Bool
		var decisionPayload []byte

		eventBus.Subscribe(context.Background(), domain.TopicComplaintDecision, func(ctx context.Context, msg *domain.Message) error {
			decisionPayload = msg.Payload
			decisionReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := domain.ComplaintRequest{
			OrderID:       "ORD-1",
			CustomerID:    "cust-1",
			ComplaintText: "my order never arrived",
			IssueType:     "missing_delivery",
		}
		payload, _ := json.Marshal(req)
		if err := eventBus.Publish(context.Background(), domain.TopicComplaintReceived, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !decisionReceived.Load() {
			t.Fatal("expected decision to be published")
		}

		var resp domain.Response
		if err := json.Unmarshal(decisionPayload, &resp); err != nil {
			t.Fatalf("failed to parse decision: %v", err)
		}
		if resp.OrderID != "ORD-1" {
			t.Errorf("expected order ORD-1, got %s", resp.OrderID)
		}
		if resp.Decision != domain.DecisionRefund {
			t.Errorf("expected refund from rule, got %s", resp.Decision)
		}
	})

	t.Run("AlertPublished", func(t *testing.T) {
		w := NewWorker(eventBus, nil, orchestrator)
		w.Start()
		defer w.Stop()

		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), domain.TopicComplaintAlert, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Safety complaints classify as critical severity
		req := domain.ComplaintRequest{
			OrderID:       "ORD-2",
			CustomerID:    "cust-2",
			ComplaintText: "I got food poisoning from this order and felt sick all night",
		}
		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), domain.TopicComplaintReceived, payload)

		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Error("expected alert for critical-severity complaint")
		}
	})

	t.Run("BadPayloadIgnored", func(t *testing.T) {
		w := NewWorker(eventBus, nil, orchestrator)
		w.Start()
		defer w.Stop()

		time.Sleep(20 * time.Millisecond)

		if err := eventBus.Publish(context.Background(), domain.TopicComplaintReceived, []byte("{not json")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Worker must survive malformed input
		time.Sleep(50 * time.Millisecond)
		if err := eventBus.Ping(context.Background()); err != nil {
			t.Errorf("bus unhealthy after bad payload: %v", err)
		}
	})
}

func TestShouldAlert(t *testing.T) {
	tests := []struct {
		name string
		resp *domain.Response
		want bool
	}{
		{"nil", nil, false},
		{"normal", &domain.Response{Severity: domain.SeverityMedium, FraudRisk: domain.FraudLabelNormal}, false},
		{"critical severity", &domain.Response{Severity: domain.SeverityCritical, FraudRisk: domain.FraudLabelNormal}, true},
		{"high risk fraud", &domain.Response{Severity: domain.SeverityLow, FraudRisk: domain.FraudLabelHighRisk}, true},
		{"suspicious is not enough", &domain.Response{Severity: domain.SeverityHigh, FraudRisk: domain.FraudLabelSuspicious}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldAlert(tt.resp); got != tt.want {
				t.Errorf("ShouldAlert() = %v, want %v", got, tt.want)
			}
		})
	}
}
