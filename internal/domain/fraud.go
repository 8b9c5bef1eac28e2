package domain

// FraudAssessment is the abuse-scoring result for a complaint.
type FraudAssessment struct {
	// Score is the additive rule score clamped to [0, 100].
	Score int `json:"score"`

	// Label buckets the score: high_risk, suspicious, watch, normal.
	Label string `json:"label"`

	Flags   []FraudFlag      `json:"flags"`
	History *HistorySnapshot `json:"history,omitempty"`
}

// FraudFlag records a single triggered scoring rule.
type FraudFlag struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Fraud labels ordered by increasing risk.
const (
	FraudLabelNormal     = "normal"
	FraudLabelWatch      = "watch"
	FraudLabelSuspicious = "suspicious"
	FraudLabelHighRisk   = "high_risk"
)

// Fraud flag types.
const (
	FlagExcessiveComplaints = "excessive_complaints"
	FlagBurstActivity       = "burst_activity"
	FlagHighRefundRate      = "high_refund_rate"
	FlagVeryNewAccount      = "very_new_account"
	FlagHighValueOrder      = "high_value_order"
)

// HistorySnapshot is the point-in-time customer history read used as
// fraud-scoring input. Zero values are the documented degraded state when
// the repository is unavailable.
type HistorySnapshot struct {
	TotalComplaints int     `json:"total_complaints"`
	TotalRefunds    int     `json:"total_refunds"`
	Complaints30d   int     `json:"complaints_30d"`
	Complaints24h   int     `json:"complaints_24h"`
	RefundRate      float64 `json:"refund_rate"`
	AccountAgeDays  int     `json:"account_age_days"`
	FirstSeen       string  `json:"first_seen,omitempty"`
}

// FraudConfig holds the scoring thresholds and rule weights.
type FraudConfig struct {
	Complaints30dThreshold int     `json:"complaints30dThreshold" yaml:"complaints_30d_threshold"`
	Complaints24hThreshold int     `json:"complaints24hThreshold" yaml:"complaints_24h_threshold"`
	RefundRateThreshold    float64 `json:"refundRateThreshold" yaml:"refund_rate_threshold"`
	MinAccountAgeDays      int     `json:"minAccountAgeDays" yaml:"min_account_age_days"`
	HighValueThreshold     float64 `json:"highValueThreshold" yaml:"high_value_threshold"`

	WeightExcessiveComplaints int `json:"weightExcessiveComplaints" yaml:"weight_excessive_complaints"`
	WeightBurstActivity       int `json:"weightBurstActivity" yaml:"weight_burst_activity"`
	WeightHighRefundRate      int `json:"weightHighRefundRate" yaml:"weight_high_refund_rate"`
	WeightVeryNewAccount      int `json:"weightVeryNewAccount" yaml:"weight_very_new_account"`
	WeightHighValuePattern    int `json:"weightHighValuePattern" yaml:"weight_high_value_pattern"`
}

// DefaultFraudConfig returns the standard thresholds and weights.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		Complaints30dThreshold: 3,
		Complaints24hThreshold: 2,
		RefundRateThreshold:    0.6,
		MinAccountAgeDays:      7,
		HighValueThreshold:     50,

		WeightExcessiveComplaints: 25,
		WeightBurstActivity:       20,
		WeightHighRefundRate:      25,
		WeightVeryNewAccount:      15,
		WeightHighValuePattern:    15,
	}
}
