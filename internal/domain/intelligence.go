package domain

// IntelligenceResult is the output of text analysis over a complaint.
type IntelligenceResult struct {
	// Categories holds every detected issue type in pattern declaration
	// order. Never empty: falls back to ["general_complaint"].
	Categories []string `json:"categories"`

	Severity     string `json:"severity"`
	RootCause    string `json:"root_cause"`
	Sentiment    string `json:"sentiment"`
	IsMultiIssue bool   `json:"is_multi_issue"`
	Explanation  string `json:"explanation"`

	SuggestedActions []SuggestedAction `json:"suggested_actions"`
}

// SuggestedAction is a recommended operational follow-up.
type SuggestedAction struct {
	Action      string `json:"action"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// Severity levels.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Sentiment classes.
const (
	SentimentVeryNegative = "very_negative"
	SentimentNegative     = "negative"
	SentimentNeutral      = "neutral"
	SentimentPositive     = "positive"
)

// CategoryGeneralComplaint is the fallback issue type when no pattern hits.
const CategoryGeneralComplaint = "general_complaint"

// RootCauseUnknown is returned when no root-cause pattern matches.
const RootCauseUnknown = "unknown"

// RewriteResult is the output of complaint text normalization.
type RewriteResult struct {
	Original     string   `json:"original"`
	Rewritten    string   `json:"rewritten"`
	Improvements []string `json:"improvements"`
}
