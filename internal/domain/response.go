package domain

import (
	"time"
)

// Response is the complete classification result returned by the API and
// persisted to the audit log. Immutable once built.
type Response struct {
	ComplaintID string    `json:"complaint_id"`
	OrderID     string    `json:"order_id"`
	Timestamp   time.Time `json:"timestamp"`

	// Decision
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	RuleID     string  `json:"rule_id,omitempty"`

	// Intelligence
	Severity         string            `json:"severity"`
	SLADeadline      time.Time         `json:"sla_deadline"`
	SLAMinutes       int               `json:"sla_minutes"`
	Categories       []string          `json:"categories"`
	RootCause        string            `json:"root_cause"`
	Sentiment        string            `json:"sentiment"`
	Explanation      string            `json:"explanation"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`

	// Fraud
	FraudRisk  string      `json:"fraud_risk"`
	FraudScore int         `json:"fraud_score"`
	FraudFlags []FraudFlag `json:"fraud_flags"`

	// Customer context
	CustomerHistory CustomerSummary `json:"customer_history"`

	// Agent copilot
	AgentSummary         AgentSummary          `json:"agent_summary"`
	ResponseTemplates    []ResponseTemplate    `json:"response_templates"`
	AlternativeDecisions []AlternativeDecision `json:"alternative_decisions"`

	EmailSent bool `json:"email_sent"`
}

// AgentSummary is the structured headline block for the support agent.
type AgentSummary struct {
	Headline        string   `json:"headline"`
	KeyFacts        []string `json:"key_facts"`
	Recommendation  string   `json:"recommendation"`
	ConfidenceLevel string   `json:"confidence_level"`
}

// ResponseTemplate is a one-click reply an agent can send.
type ResponseTemplate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// AlternativeDecision is a non-chosen decision option with its tradeoff.
type AlternativeDecision struct {
	Decision         string  `json:"decision"`
	Reason           string  `json:"reason"`
	ConfidenceImpact float64 `json:"confidence_impact"`
}

// SLAMinutes maps severity to the response deadline in minutes.
// Unknown severities get the medium deadline.
func SLAMinutes(severity string) int {
	switch severity {
	case SeverityCritical:
		return 30
	case SeverityHigh:
		return 120
	case SeverityLow:
		return 1440
	default:
		return 480
	}
}

// Feedback is an agent correction of a recorded decision.
type Feedback struct {
	ID                string    `json:"id"`
	ComplaintID       string    `json:"complaint_id"`
	OriginalDecision  string    `json:"original_decision"`
	CorrectedDecision string    `json:"corrected_decision"`
	Reason            string    `json:"reason,omitempty"`
	SubmittedBy       string    `json:"submitted_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
