package domain

// PolicyRule is a declarative decision rule. Rules are evaluated in
// declaration order; the first rule whose conditions all match wins.
type PolicyRule struct {
	ID string `json:"id"`

	// Type selects the matching strategy: "" (default) for declarative
	// conditions, "cel" for a compiled CEL expression.
	Type string `json:"type,omitempty"`

	// Conditions maps a case field to either a literal (equality) or an
	// {op, value} object. A rule with no conditions matches every case.
	Conditions map[string]interface{} `json:"conditions,omitempty"`

	// Expression is the CEL source for type "cel". Must evaluate to bool.
	Expression string `json:"expression,omitempty"`

	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Category   string  `json:"category,omitempty"`
}

// RuleTypeCEL marks a rule matched by CEL expression instead of conditions.
const RuleTypeCEL = "cel"

// Condition operators for {op, value} condition objects.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpIn       = "in"
	OpContains = "contains"
)

// DecisionResult is the outcome of the policy/ML/default cascade.
type DecisionResult struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Reason     string  `json:"reason"`
	RuleID     string  `json:"rule_id,omitempty"`
	Category   string  `json:"category"`
}

// Decision values.
const (
	DecisionRefund   = "refund"
	DecisionDeny     = "deny"
	DecisionEscalate = "escalate"
)

// Decision sources. Exactly one of these appears on every result.
const (
	SourcePolicy = "policy"
	SourceML     = "ml"
	SourceSystem = "system"
)

// Defaults applied when a matched rule omits optional fields.
const (
	DefaultRuleConfidence = 0.85
	DefaultRuleReason     = "Policy rule applied"
)

// DefaultEscalateReason is the reason attached when neither a policy rule
// nor the model produced a decision.
const DefaultEscalateReason = "No matching rule or model prediction - escalating for review"
