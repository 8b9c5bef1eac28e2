package engine

import (
	"fmt"
	"strings"

	"github.com/opensource-delivery/kite/internal/domain"
)

// buildAgentSummary assembles the headline block shown to support agents.
func buildAgentSummary(c *domain.Case, decision *domain.DecisionResult, intelResult *domain.IntelligenceResult, assessment *domain.FraudAssessment) domain.AgentSummary {
	photo := "No"
	if c.HandoffPhoto {
		photo = "Yes"
	}

	recommendation := decision.Reason
	if recommendation == "" {
		recommendation = "Review case manually"
	}

	return domain.AgentSummary{
		Headline: fmt.Sprintf("%s - %s priority", strings.ToUpper(decision.Decision), strings.ToUpper(intelResult.Severity)),
		KeyFacts: []string{
			fmt.Sprintf("Order: %s", c.OrderID),
			fmt.Sprintf("Issue: %s", titleCase(c.OrderStatus)),
			fmt.Sprintf("Refund history: %d in 30 days", c.RefundHistory30d),
			fmt.Sprintf("Photo proof: %s", photo),
			fmt.Sprintf("Fraud risk: %s", strings.ToUpper(assessment.Label)),
		},
		Recommendation:  recommendation,
		ConfidenceLevel: confidenceLevel(decision.Confidence),
	}
}

func confidenceLevel(confidence float64) string {
	switch {
	case confidence > 0.8:
		return "High"
	case confidence > 0.6:
		return "Medium"
	default:
		return "Low"
	}
}

// titleCase turns an issue key like "late_delivery" into "Late Delivery".
func titleCase(s string) string {
	if s == "" {
		return "Unknown"
	}
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var decisionTemplates = map[string][]domain.ResponseTemplate{
	domain.DecisionRefund: {
		{ID: "full_refund", Title: "Full Refund", Text: "We apologize for the inconvenience. A full refund of ${amount} has been processed to your original payment method. Please allow 3-5 business days for it to appear."},
		{ID: "partial_refund", Title: "Partial Refund", Text: "We've processed a partial refund of ${amount} for the affected items. The amount will appear in your account within 3-5 business days."},
		{ID: "credit", Title: "Account Credit", Text: "We've added ${amount} in credit to your account as compensation. This credit will be automatically applied to your next order."},
	},
	domain.DecisionDeny: {
		{ID: "policy", Title: "Policy Explanation", Text: "After reviewing your request, we're unable to process a refund at this time as the order was delivered as described. If you have additional information, please share it with us."},
		{ID: "abuse_warning", Title: "Account Warning", Text: "We've noticed multiple refund requests from your account recently. Please note that misuse of our refund policy may result in account restrictions."},
	},
	domain.DecisionEscalate: {
		{ID: "escalate_ack", Title: "Escalation Acknowledgment", Text: "Your case has been escalated to our senior support team for further review. You'll receive an update within 24-48 hours."},
		{ID: "more_info", Title: "Request More Info", Text: "To help us resolve your issue, could you please provide additional details or photos of the problem?"},
	},
}

// responseTemplates returns the one-click replies for a decision. Unknown
// decisions fall back to the escalation set.
func responseTemplates(decision string) []domain.ResponseTemplate {
	if templates, ok := decisionTemplates[decision]; ok {
		return templates
	}
	return decisionTemplates[domain.DecisionEscalate]
}

// alternativeDecisions lists the not-chosen options with their tradeoffs.
func alternativeDecisions(decision string) []domain.AlternativeDecision {
	alternatives := []domain.AlternativeDecision{}

	if decision != domain.DecisionRefund {
		alternatives = append(alternatives, domain.AlternativeDecision{
			Decision:         domain.DecisionRefund,
			Reason:           "Customer has good history and issue seems legitimate",
			ConfidenceImpact: -0.1,
		})
	}
	if decision != domain.DecisionDeny {
		alternatives = append(alternatives, domain.AlternativeDecision{
			Decision:         domain.DecisionDeny,
			Reason:           "Pattern suggests potential abuse or policy violation",
			ConfidenceImpact: -0.15,
		})
	}
	if decision != domain.DecisionEscalate {
		alternatives = append(alternatives, domain.AlternativeDecision{
			Decision:         domain.DecisionEscalate,
			Reason:           "Case complexity requires human review",
			ConfidenceImpact: 0,
		})
	}
	return alternatives
}
