package domain

// CustomerSummary is the quick customer context attached to every decision.
type CustomerSummary struct {
	CustomerID       string  `json:"customer_id,omitempty"`
	TotalComplaints  int     `json:"total_complaints"`
	RecentComplaints int     `json:"recent_complaints"`
	RefundRate       float64 `json:"refund_rate"`
	LifetimeValue    float64 `json:"lifetime_value"`
	RiskTier         string  `json:"risk_tier"`
}

// Risk tiers ordered roughly best to worst.
const (
	TierVIP     = "vip"
	TierTrusted = "trusted"
	TierNormal  = "normal"
	TierWatch   = "watch"
	TierFlagged = "flagged"
	TierUnknown = "unknown"
)

// TopComplainer is one row of the repeat-complainer leaderboard.
type TopComplainer struct {
	CustomerID string  `json:"customer_id"`
	Complaints int     `json:"complaints"`
	Refunds    int     `json:"refunds"`
	RefundRate float64 `json:"refund_rate"`
	FraudFlags int     `json:"fraud_flags"`
}
