package intel

import (
	"strings"
	"testing"

	"github.com/opensource-delivery/kite/internal/domain"
)

func TestDetectIssuesMultiLabel(t *testing.T) {
	a := NewAnalyzer()

	issues := a.DetectIssues("my order was an hour late and driver was rude")

	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %v", len(issues), issues)
	}
	if issues[0] != "late_delivery" {
		t.Errorf("expected late_delivery first, got %s", issues[0])
	}
	if issues[1] != "driver_issue" {
		t.Errorf("expected driver_issue second, got %s", issues[1])
	}
}

func TestDetectIssuesFallback(t *testing.T) {
	a := NewAnalyzer()

	issues := a.DetectIssues("something something")
	if len(issues) != 1 || issues[0] != domain.CategoryGeneralComplaint {
		t.Errorf("expected general_complaint fallback, got %v", issues)
	}
}

func TestDetectIssuesDeclarationOrder(t *testing.T) {
	a := NewAnalyzer()

	// Both issue types present; order must follow the pattern table, not
	// the order of appearance in the text.
	issues := a.DetectIssues("the driver was rude and the food arrived late")
	if issues[0] != "late_delivery" {
		t.Errorf("expected late_delivery first, got %v", issues)
	}
}

func TestDetectIssueTypePrimary(t *testing.T) {
	a := NewAnalyzer()

	if got := a.DetectIssueType("I NEVER RECEIVED my order"); got != "missing_delivery" {
		t.Errorf("expected missing_delivery, got %s", got)
	}
	if got := a.DetectIssueType(""); got != domain.CategoryGeneralComplaint {
		t.Errorf("expected general_complaint for empty text, got %s", got)
	}
}

func TestSeverityCriticalShortCircuit(t *testing.T) {
	a := NewAnalyzer()

	got := a.DetectSeverity("i got food poisoning from this meal", &domain.Case{})
	if got != domain.SeverityCritical {
		t.Errorf("expected critical, got %s", got)
	}

	// Critical wins even when low indicators are present
	got = a.DetectSeverity("minor issue but i felt sick afterwards", &domain.Case{})
	if got != domain.SeverityCritical {
		t.Errorf("expected critical, got %s", got)
	}
}

func TestSeverityScoring(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name string
		text string
		c    *domain.Case
		want string
	}{
		{
			name: "base score lands medium",
			text: "the food was not great",
			c:    &domain.Case{RefundHistory30d: 1},
			want: domain.SeverityMedium,
		},
		{
			name: "stacked high indicators",
			text: "i never received my entire order",
			c:    &domain.Case{RefundHistory30d: 1},
			want: domain.SeverityHigh,
		},
		{
			name: "low indicators pull below medium",
			text: "minor issue, food was slightly late",
			c:    &domain.Case{RefundHistory30d: 1},
			want: domain.SeverityLow,
		},
		{
			name: "missing delivery status bumps score",
			text: "where is my food",
			c:    &domain.Case{OrderStatus: "missing_delivery", RefundHistory30d: 1},
			want: domain.SeverityMedium,
		},
		{
			name: "nil case uses zero context",
			text: "the food was not great",
			c:    nil,
			want: domain.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.DetectSeverity(tt.text, tt.c); got != tt.want {
				t.Errorf("DetectSeverity(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestSeverityOrderValueAdjustment(t *testing.T) {
	a := NewAnalyzer()

	// 50 base + 20 (never received) + 5 (first-time) = 75: medium.
	// An order value above 50 adds 10 and tips it to high.
	text := "never received it"
	if got := a.DetectSeverity(text, &domain.Case{OrderValue: 20}); got != domain.SeverityMedium {
		t.Errorf("expected medium for small order, got %s", got)
	}
	if got := a.DetectSeverity(text, &domain.Case{OrderValue: 80}); got != domain.SeverityHigh {
		t.Errorf("expected high for large order, got %s", got)
	}
}

func TestRootCauseHitCounting(t *testing.T) {
	a := NewAnalyzer()

	// delivery_error gets two hits (driver, dropped), others at most one
	got := a.DetectRootCause("the driver dropped my bag outside")
	if got != "delivery_error" {
		t.Errorf("expected delivery_error, got %s", got)
	}
}

func TestRootCauseTieBreaksFirstDeclared(t *testing.T) {
	a := NewAnalyzer()

	// One hit each for restaurant_error and delivery_error; the
	// first-declared cause wins
	got := a.DetectRootCause("the restaurant and the driver both failed")
	if got != "restaurant_error" {
		t.Errorf("expected restaurant_error on tie, got %s", got)
	}
}

func TestRootCauseUnknown(t *testing.T) {
	a := NewAnalyzer()

	if got := a.DetectRootCause("nothing matches here"); got != domain.RootCauseUnknown {
		t.Errorf("expected unknown, got %s", got)
	}
}

func TestSentiment(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		text string
		want string
	}{
		{"this is terrible service", domain.SentimentVeryNegative},
		{"terrible but thank you good helpful resolved", domain.SentimentVeryNegative},
		{"late and missing items", domain.SentimentNegative},
		{"thank you, very helpful", domain.SentimentPositive},
		{"the order was fine i guess", domain.SentimentNeutral},
		{"", domain.SentimentNeutral},
	}

	for _, tt := range tests {
		if got := a.Sentiment(tt.text); got != tt.want {
			t.Errorf("Sentiment(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestExplanation(t *testing.T) {
	a := NewAnalyzer()

	c := &domain.Case{RefundHistory30d: 4, HandoffPhoto: false}
	got := a.explain("my order is missing", c)

	if !strings.Contains(got, "missing delivery") {
		t.Errorf("explanation should name the issue: %q", got)
	}
	if !strings.Contains(got, "multiple recent refund requests") {
		t.Errorf("explanation should note refund history: %q", got)
	}
	if !strings.Contains(got, "No delivery photo") {
		t.Errorf("explanation should note missing photo: %q", got)
	}
}

func TestSuggestedActions(t *testing.T) {
	a := NewAnalyzer()

	c := &domain.Case{RefundHistory30d: 3, HandoffPhoto: false}
	actions := a.suggestActions("my order is missing and the driver was rude", c)

	want := []string{"request_photo_proof", "review_account", "driver_feedback"}
	if len(actions) != len(want) {
		t.Fatalf("expected %d actions, got %d: %v", len(want), len(actions), actions)
	}
	for i, w := range want {
		if actions[i].Action != w {
			t.Errorf("action[%d] = %s, want %s", i, actions[i].Action, w)
		}
	}
}

func TestSuggestedActionsCritical(t *testing.T) {
	a := NewAnalyzer()

	actions := a.suggestActions("i had an allergic reaction", &domain.Case{})
	if len(actions) == 0 || actions[0].Action != "immediate_escalation" {
		t.Fatalf("expected immediate_escalation first, got %v", actions)
	}
	if actions[0].Priority != "urgent" {
		t.Errorf("expected urgent priority, got %s", actions[0].Priority)
	}
}

func TestAnalyzeComplete(t *testing.T) {
	a := NewAnalyzer()

	c := &domain.Case{OrderValue: 20, RefundHistory30d: 0}
	result := a.Analyze("My order was an hour late and driver was rude", c)

	if len(result.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", result.Categories)
	}
	if !result.IsMultiIssue {
		t.Error("expected multi-issue flag")
	}
	if result.Severity == "" || result.Sentiment == "" {
		t.Error("severity and sentiment must always be set")
	}
	if result.Explanation == "" {
		t.Error("explanation must never be empty")
	}
}
