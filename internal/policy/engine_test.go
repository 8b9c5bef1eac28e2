package policy

import (
	"testing"

	"github.com/opensource-delivery/kite/internal/domain"
)

func newTestEngine(t *testing.T, rules ...*domain.PolicyRule) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	engine.LoadRules(rules)
	return engine
}

func testCase() *domain.Case {
	return &domain.Case{
		OrderID:          "ORD-1",
		CustomerID:       "cust-1",
		ComplaintText:    "my order never arrived",
		OrderStatus:      "missing_delivery",
		RefundHistory30d: 1,
		HandoffPhoto:     false,
		CourierRating:    4.5,
		OrderValue:       22.50,
	}
}

func TestFirstMatchWins(t *testing.T) {
	engine := newTestEngine(t,
		&domain.PolicyRule{
			ID:         "r1",
			Conditions: map[string]interface{}{"order_status": "missing_delivery"},
			Decision:   domain.DecisionRefund,
			Confidence: 0.9,
			Reason:     "missing orders are refunded",
		},
		&domain.PolicyRule{
			ID:         "r2",
			Conditions: map[string]interface{}{"order_status": "missing_delivery"},
			Decision:   domain.DecisionDeny,
		},
	)

	result := engine.Evaluate(testCase())
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.RuleID != "r1" {
		t.Errorf("expected first rule to win, got %s", result.RuleID)
	}
	if result.Decision != domain.DecisionRefund {
		t.Errorf("expected refund, got %s", result.Decision)
	}
	if result.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %.2f", result.Confidence)
	}
	if result.Source != domain.SourcePolicy {
		t.Errorf("expected policy source, got %s", result.Source)
	}
}

func TestNoMatchReturnsNil(t *testing.T) {
	engine := newTestEngine(t, &domain.PolicyRule{
		ID:         "r1",
		Conditions: map[string]interface{}{"order_status": "late_delivery"},
		Decision:   domain.DecisionRefund,
	})

	if result := engine.Evaluate(testCase()); result != nil {
		t.Errorf("expected nil, got %+v", result)
	}
}

func TestRuleDefaults(t *testing.T) {
	engine := newTestEngine(t, &domain.PolicyRule{
		ID:         "bare",
		Conditions: map[string]interface{}{"order_status": "missing_delivery"},
		Decision:   domain.DecisionRefund,
	})

	result := engine.Evaluate(testCase())
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.Confidence != domain.DefaultRuleConfidence {
		t.Errorf("expected default confidence, got %.2f", result.Confidence)
	}
	if result.Reason != domain.DefaultRuleReason {
		t.Errorf("expected default reason, got %q", result.Reason)
	}
	if result.Category != "missing_delivery" {
		t.Errorf("expected category from case status, got %q", result.Category)
	}
}

func TestOperatorConditions(t *testing.T) {
	tests := []struct {
		name string
		cond map[string]interface{}
		want bool
	}{
		{"eq match", map[string]interface{}{"order_value": map[string]interface{}{"op": "eq", "value": 22.5}}, true},
		{"ne match", map[string]interface{}{"order_status": map[string]interface{}{"op": "ne", "value": "late_delivery"}}, true},
		{"gt match", map[string]interface{}{"order_value": map[string]interface{}{"op": "gt", "value": 20}}, true},
		{"gt no match", map[string]interface{}{"order_value": map[string]interface{}{"op": "gt", "value": 25}}, false},
		{"gte boundary", map[string]interface{}{"refund_history_30d": map[string]interface{}{"op": "gte", "value": 1}}, true},
		{"lt match", map[string]interface{}{"courier_rating": map[string]interface{}{"op": "lt", "value": 5}}, true},
		{"lte no match", map[string]interface{}{"order_value": map[string]interface{}{"op": "lte", "value": 10}}, false},
		{"in match", map[string]interface{}{"order_status": map[string]interface{}{"op": "in", "value": []interface{}{"late_delivery", "missing_delivery"}}}, true},
		{"in no match", map[string]interface{}{"order_status": map[string]interface{}{"op": "in", "value": []interface{}{"overcharge"}}}, false},
		{"contains match", map[string]interface{}{"complaint_text": map[string]interface{}{"op": "contains", "value": "never arrived"}}, true},
		{"contains no match", map[string]interface{}{"complaint_text": map[string]interface{}{"op": "contains", "value": "refund"}}, false},
		{"bool equality", map[string]interface{}{"handoff_photo": false}, true},
		{"int literal vs int field", map[string]interface{}{"refund_history_30d": 1}, true},
		{"json float vs int field", map[string]interface{}{"refund_history_30d": 1.0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, &domain.PolicyRule{
				ID:         "op-rule",
				Conditions: tt.cond,
				Decision:   domain.DecisionRefund,
			})
			got := engine.Evaluate(testCase()) != nil
			if got != tt.want {
				t.Errorf("conditions %v: match = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestNumericComparisonAgainstMissingField(t *testing.T) {
	engine := newTestEngine(t, &domain.PolicyRule{
		ID: "missing-field",
		Conditions: map[string]interface{}{
			"delivery_time_minutes": map[string]interface{}{"op": "gt", "value": 60},
		},
		Decision: domain.DecisionRefund,
	})

	if result := engine.Evaluate(testCase()); result != nil {
		t.Errorf("numeric comparison against missing field must not match, got %+v", result)
	}
}

func TestMalformedConditionSkipsRule(t *testing.T) {
	engine := newTestEngine(t,
		&domain.PolicyRule{
			ID: "malformed",
			Conditions: map[string]interface{}{
				// "in" needs a list; a scalar is malformed
				"order_status": map[string]interface{}{"op": "in", "value": "missing_delivery"},
			},
			Decision: domain.DecisionDeny,
		},
		&domain.PolicyRule{
			ID:         "valid",
			Conditions: map[string]interface{}{"order_status": "missing_delivery"},
			Decision:   domain.DecisionRefund,
		},
	)

	result := engine.Evaluate(testCase())
	if result == nil {
		t.Fatal("expected fallthrough to the valid rule")
	}
	if result.RuleID != "valid" {
		t.Errorf("expected valid rule, got %s", result.RuleID)
	}
}

func TestUnknownOperatorNeverMatches(t *testing.T) {
	engine := newTestEngine(t, &domain.PolicyRule{
		ID: "bad-op",
		Conditions: map[string]interface{}{
			"order_value": map[string]interface{}{"op": "between", "value": 10},
		},
		Decision: domain.DecisionRefund,
	})

	if result := engine.Evaluate(testCase()); result != nil {
		t.Errorf("unknown operator must not match, got %+v", result)
	}
}

func TestEmptyConditionsMatchEverything(t *testing.T) {
	engine := newTestEngine(t, &domain.PolicyRule{
		ID:       "catch-all",
		Decision: domain.DecisionEscalate,
	})

	if result := engine.Evaluate(testCase()); result == nil {
		t.Error("rule with no conditions should match every case")
	}
}

func TestCELRule(t *testing.T) {
	engine := newTestEngine(t, &domain.PolicyRule{
		ID:         "cel-high-value",
		Type:       domain.RuleTypeCEL,
		Expression: `order_value > 20.0 && order_status == "missing_delivery"`,
		Decision:   domain.DecisionEscalate,
		Confidence: 0.8,
	})

	if engine.RulesCount() != 1 {
		t.Fatalf("expected 1 rule, got %d", engine.RulesCount())
	}

	result := engine.Evaluate(testCase())
	if result == nil {
		t.Fatal("expected CEL rule to match")
	}
	if result.RuleID != "cel-high-value" {
		t.Errorf("expected cel-high-value, got %s", result.RuleID)
	}
}

func TestInvalidCELRuleSkippedAtLoad(t *testing.T) {
	engine := newTestEngine(t,
		&domain.PolicyRule{
			ID:         "broken-cel",
			Type:       domain.RuleTypeCEL,
			Expression: "this is not CEL !!!",
			Decision:   domain.DecisionDeny,
		},
		&domain.PolicyRule{
			ID:         "non-bool-cel",
			Type:       domain.RuleTypeCEL,
			Expression: "order_value + 1.0",
			Decision:   domain.DecisionDeny,
		},
	)

	if engine.RulesCount() != 0 {
		t.Errorf("expected both bad CEL rules skipped, have %d", engine.RulesCount())
	}
}

func TestReloadRules(t *testing.T) {
	engine := newTestEngine(t, &domain.PolicyRule{
		ID:         "old",
		Conditions: map[string]interface{}{"order_status": "missing_delivery"},
		Decision:   domain.DecisionRefund,
	})

	engine.ReloadRules([]*domain.PolicyRule{{
		ID:         "new",
		Conditions: map[string]interface{}{"order_status": "missing_delivery"},
		Decision:   domain.DecisionDeny,
	}})

	if engine.RulesCount() != 1 {
		t.Fatalf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
	result := engine.Evaluate(testCase())
	if result == nil || result.RuleID != "new" {
		t.Errorf("expected reloaded rule to win, got %+v", result)
	}
}
