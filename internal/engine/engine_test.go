package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-delivery/kite/internal/domain"
	"github.com/opensource-delivery/kite/internal/fraud"
	"github.com/opensource-delivery/kite/internal/history"
	"github.com/opensource-delivery/kite/internal/intel"
	"github.com/opensource-delivery/kite/internal/ml"
	"github.com/opensource-delivery/kite/internal/policy"
)

type stubClassifier struct {
	label      string
	confidence float64
	err        error
}

func (s *stubClassifier) PredictLabel(f ml.Features) (string, float64, error) {
	return s.label, s.confidence, s.err
}

type stubHistory struct {
	snapshot *domain.HistorySnapshot
	summary  *domain.CustomerSummary
}

func (s *stubHistory) HistorySnapshot(ctx context.Context, customerID string) (*domain.HistorySnapshot, error) {
	if s.snapshot == nil {
		return &domain.HistorySnapshot{}, nil
	}
	return s.snapshot, nil
}

func (s *stubHistory) CustomerSummary(ctx context.Context, customerID string) (*domain.CustomerSummary, error) {
	if s.summary == nil {
		return &domain.CustomerSummary{}, nil
	}
	return s.summary, nil
}

func newOrchestrator(t *testing.T, rules []*domain.PolicyRule, clf ml.Classifier) *Orchestrator {
	t.Helper()

	policyEngine, err := policy.NewEngine()
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	policyEngine.LoadRules(rules)

	stub := &stubHistory{}
	return New(
		policyEngine,
		ml.NewAdapter(clf),
		intel.NewAnalyzer(),
		fraud.NewScorer(stub, domain.FraudConfig{}),
		history.NewProfiler(stub, nil, time.Minute),
	)
}

func testCase() *domain.Case {
	return &domain.Case{
		OrderID:       "ORD-42",
		CustomerID:    "cust-1",
		ComplaintText: "my order never arrived",
		OrderStatus:   "missing_delivery",
		CourierRating: 4.5,
		OrderValue:    20,
	}
}

func TestClassifyDefaultEscalation(t *testing.T) {
	o := newOrchestrator(t, nil, nil)

	resp := o.Classify(context.Background(), testCase())

	if resp.Decision != domain.DecisionEscalate {
		t.Errorf("expected escalate, got %s", resp.Decision)
	}
	if resp.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %.2f", resp.Confidence)
	}
	if resp.Source != domain.SourceSystem {
		t.Errorf("expected system source, got %s", resp.Source)
	}
	if resp.RuleID != "" {
		t.Errorf("expected no rule id, got %q", resp.RuleID)
	}
}

func TestClassifyPolicyWinsOverML(t *testing.T) {
	rules := []*domain.PolicyRule{{
		ID:         "missing-refund",
		Conditions: map[string]interface{}{"order_status": "missing_delivery"},
		Decision:   domain.DecisionRefund,
		Confidence: 0.95,
	}}
	o := newOrchestrator(t, rules, &stubClassifier{label: domain.DecisionDeny, confidence: 0.99})

	resp := o.Classify(context.Background(), testCase())

	if resp.Source != domain.SourcePolicy {
		t.Errorf("expected policy source, got %s", resp.Source)
	}
	if resp.Decision != domain.DecisionRefund {
		t.Errorf("expected refund from rule, got %s", resp.Decision)
	}
	if resp.RuleID != "missing-refund" {
		t.Errorf("expected rule id, got %q", resp.RuleID)
	}
}

func TestClassifyMLFallback(t *testing.T) {
	o := newOrchestrator(t, nil, &stubClassifier{label: domain.DecisionDeny, confidence: 0.77})

	resp := o.Classify(context.Background(), testCase())

	if resp.Source != domain.SourceML {
		t.Errorf("expected ml source, got %s", resp.Source)
	}
	if resp.Decision != domain.DecisionDeny {
		t.Errorf("expected deny from model, got %s", resp.Decision)
	}
}

func TestClassifyMLErrorFallsThrough(t *testing.T) {
	o := newOrchestrator(t, nil, &stubClassifier{err: errors.New("inference failed")})

	resp := o.Classify(context.Background(), testCase())

	if resp.Source != domain.SourceSystem {
		t.Errorf("expected system fallback on ML error, got %s", resp.Source)
	}
	if resp.Decision != domain.DecisionEscalate {
		t.Errorf("expected escalate, got %s", resp.Decision)
	}
}

func TestClassifyDetectsIssueType(t *testing.T) {
	o := newOrchestrator(t, nil, nil)

	c := testCase()
	c.OrderStatus = ""
	c.ComplaintText = "the food arrived an hour late"
	resp := o.Classify(context.Background(), c)

	if c.OrderStatus != "late_delivery" {
		t.Errorf("expected detected issue type on case, got %q", c.OrderStatus)
	}
	if len(resp.Categories) == 0 {
		t.Fatal("categories must never be empty")
	}
}

func TestClassifyResponseCompleteness(t *testing.T) {
	o := newOrchestrator(t, nil, nil)

	resp := o.Classify(context.Background(), testCase())

	if len(resp.ComplaintID) != 12 {
		t.Errorf("expected 12-char complaint id, got %q", resp.ComplaintID)
	}
	if resp.Severity == "" || resp.Sentiment == "" || resp.RootCause == "" {
		t.Errorf("intelligence fields must be set: %+v", resp)
	}
	if resp.SLAMinutes != domain.SLAMinutes(resp.Severity) {
		t.Errorf("SLA minutes %d inconsistent with severity %s", resp.SLAMinutes, resp.Severity)
	}
	want := resp.Timestamp.Add(time.Duration(resp.SLAMinutes) * time.Minute)
	if !resp.SLADeadline.Equal(want) {
		t.Errorf("SLA deadline %v, want %v", resp.SLADeadline, want)
	}
	if resp.Explanation == "" {
		t.Error("explanation must never be empty")
	}
	if resp.CustomerHistory.RiskTier == "" {
		t.Error("customer history tier must be set")
	}
	if resp.FraudFlags == nil {
		t.Error("fraud flags must be a list, not nil")
	}
}

func TestClassifySLATable(t *testing.T) {
	tests := []struct {
		severity string
		want     int
	}{
		{domain.SeverityCritical, 30},
		{domain.SeverityHigh, 120},
		{domain.SeverityMedium, 480},
		{domain.SeverityLow, 1440},
		{"unheard-of", 480},
	}
	for _, tt := range tests {
		if got := domain.SLAMinutes(tt.severity); got != tt.want {
			t.Errorf("SLAMinutes(%s) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}

func TestAgentSummaryAndCopilot(t *testing.T) {
	o := newOrchestrator(t, nil, nil)

	resp := o.Classify(context.Background(), testCase())

	if resp.AgentSummary.Headline != "ESCALATE - MEDIUM priority" {
		t.Errorf("unexpected headline: %q", resp.AgentSummary.Headline)
	}
	if len(resp.AgentSummary.KeyFacts) != 5 {
		t.Errorf("expected 5 key facts, got %v", resp.AgentSummary.KeyFacts)
	}
	if resp.AgentSummary.ConfidenceLevel != "Low" {
		t.Errorf("confidence 0.5 should read Low, got %s", resp.AgentSummary.ConfidenceLevel)
	}

	if len(resp.ResponseTemplates) == 0 {
		t.Fatal("expected response templates")
	}
	if resp.ResponseTemplates[0].ID != "escalate_ack" {
		t.Errorf("expected escalation templates, got %s", resp.ResponseTemplates[0].ID)
	}

	for _, alt := range resp.AlternativeDecisions {
		if alt.Decision == resp.Decision {
			t.Errorf("alternatives must exclude the chosen decision: %v", resp.AlternativeDecisions)
		}
	}
	if len(resp.AlternativeDecisions) != 2 {
		t.Errorf("expected 2 alternatives, got %d", len(resp.AlternativeDecisions))
	}
}

func TestResponseTemplateFallback(t *testing.T) {
	templates := responseTemplates("made-up-decision")
	if len(templates) == 0 || templates[0].ID != "escalate_ack" {
		t.Errorf("unknown decision should fall back to escalate templates, got %v", templates)
	}
}
