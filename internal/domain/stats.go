package domain

// OverviewStats is the aggregate analytics block for the dashboard.
type OverviewStats struct {
	TotalComplaints int                `json:"total_complaints"`
	ByDecision      map[string]int     `json:"by_decision"`
	BySeverity      map[string]int     `json:"by_severity"`
	BySource        map[string]int     `json:"by_source"`
	AvgConfidence   float64            `json:"avg_confidence"`
	FraudFlagged    int                `json:"fraud_flagged"`
	DailyTrend      []DailyTrendPoint  `json:"daily_trend"`
}

// DailyTrendPoint is one day of complaint volume.
type DailyTrendPoint struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// RootCauseStat aggregates decisions per detected root cause.
type RootCauseStat struct {
	RootCause string  `json:"root_cause"`
	Count     int     `json:"count"`
	Refunds   int     `json:"refunds"`
	AvgScore  float64 `json:"avg_fraud_score"`
}
