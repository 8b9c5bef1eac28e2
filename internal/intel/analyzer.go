// Package intel provides pattern-based complaint analysis: issue
// detection, severity scoring, root cause identification, sentiment, and
// complaint rewriting. All analysis is deterministic and side-effect free.
package intel

import (
	"fmt"
	"strings"

	"github.com/opensource-delivery/kite/internal/domain"
)

// Analyzer runs the full text-analysis pass over a complaint.
// Safe for concurrent use; the pattern tables are immutable.
type Analyzer struct{}

// NewAnalyzer creates a complaint analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze runs every analysis stage over the complaint text.
// Never fails; empty text degrades to the documented fallbacks.
func (a *Analyzer) Analyze(text string, c *domain.Case) *domain.IntelligenceResult {
	lower := strings.ToLower(text)
	categories := a.DetectIssues(lower)

	return &domain.IntelligenceResult{
		Categories:       categories,
		Severity:         a.DetectSeverity(lower, c),
		RootCause:        a.DetectRootCause(lower),
		Sentiment:        a.Sentiment(lower),
		IsMultiIssue:     len(categories) > 1,
		Explanation:      a.explain(lower, c),
		SuggestedActions: a.suggestActions(lower, c),
	}
}

// DetectIssueType returns the primary issue type for the text.
func (a *Analyzer) DetectIssueType(text string) string {
	return a.DetectIssues(strings.ToLower(text))[0]
}

// DetectIssues returns every detected issue type in pattern declaration
// order. At most one hit is recorded per issue type. Falls back to
// ["general_complaint"] when nothing matches.
func (a *Analyzer) DetectIssues(text string) []string {
	var detected []string
	for _, set := range issuePatterns {
		for _, p := range set.patterns {
			if p.MatchString(text) {
				detected = append(detected, set.name)
				break
			}
		}
	}
	if len(detected) == 0 {
		return []string{domain.CategoryGeneralComplaint}
	}
	return detected
}

// DetectSeverity classifies the complaint as critical, high, medium, or
// low. Any critical keyword short-circuits; otherwise an additive score
// starting at 50 is adjusted by pattern hits and case context.
func (a *Analyzer) DetectSeverity(text string, c *domain.Case) string {
	if c == nil {
		c = &domain.Case{}
	}

	for _, p := range criticalPatterns {
		if p.MatchString(text) {
			return domain.SeverityCritical
		}
	}

	score := 50

	for _, p := range highPatterns {
		if p.MatchString(text) {
			score += 20
		}
	}
	for _, p := range mediumPatterns {
		if p.MatchString(text) {
			score += 5
		}
	}
	for _, p := range lowPatterns {
		if p.MatchString(text) {
			score -= 15
		}
	}

	// Case-based adjustments
	if c.OrderValue > 50 {
		score += 10
	} else if c.OrderValue > 30 {
		score += 5
	}
	if c.OrderStatus == "missing_delivery" {
		score += 15
	}
	// First-time complainer gets priority
	if c.RefundHistory30d == 0 {
		score += 5
	}

	switch {
	case score >= 80:
		return domain.SeverityHigh
	case score >= 50:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// DetectRootCause identifies the most likely root cause by counting
// pattern hits per cause. Ties resolve to the first-declared cause;
// zero hits yields "unknown".
func (a *Analyzer) DetectRootCause(text string) string {
	best := domain.RootCauseUnknown
	bestHits := 0

	for _, set := range rootCausePatterns {
		hits := 0
		for _, p := range set.patterns {
			if p.MatchString(text) {
				hits++
			}
		}
		if hits > bestHits {
			best = set.name
			bestHits = hits
		}
	}
	return best
}

// Sentiment classifies the overall tone from token membership counts.
// A single very-negative word dominates everything else.
func (a *Analyzer) Sentiment(text string) string {
	var veryNeg, neg, pos int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		switch {
		case veryNegativeWords[word]:
			veryNeg++
		case negativeWords[word]:
			neg++
		case positiveWords[word]:
			pos++
		}
	}

	switch {
	case veryNeg > 0:
		return domain.SentimentVeryNegative
	case neg > pos:
		return domain.SentimentNegative
	case pos > neg:
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

func (a *Analyzer) explain(text string, c *domain.Case) string {
	if c == nil {
		c = &domain.Case{}
	}

	issues := a.DetectIssues(text)
	severity := a.DetectSeverity(text, c)
	rootCause := a.DetectRootCause(text)

	readable := make([]string, len(issues))
	for i, issue := range issues {
		readable[i] = strings.ReplaceAll(issue, "_", " ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "This is a %s severity complaint about %s.", severity, strings.Join(readable, ", "))

	if rootCause != domain.RootCauseUnknown {
		fmt.Fprintf(&b, " The root cause appears to be %s.", strings.ReplaceAll(rootCause, "_", " "))
	}
	if c.RefundHistory30d >= 3 {
		b.WriteString(" Note: Customer has multiple recent refund requests.")
	}
	if !c.HandoffPhoto && strings.Contains(text, "missing") {
		b.WriteString(" No delivery photo is available to verify delivery.")
	}

	return b.String()
}

func (a *Analyzer) suggestActions(text string, c *domain.Case) []domain.SuggestedAction {
	if c == nil {
		c = &domain.Case{}
	}

	actions := []domain.SuggestedAction{}
	issues := a.DetectIssues(text)
	severity := a.DetectSeverity(text, c)

	if severity == domain.SeverityCritical {
		actions = append(actions, domain.SuggestedAction{
			Action:      "immediate_escalation",
			Priority:    "urgent",
			Description: "Escalate to supervisor immediately due to health/safety concern",
		})
	}
	if contains(issues, "missing_delivery") && !c.HandoffPhoto {
		actions = append(actions, domain.SuggestedAction{
			Action:      "request_photo_proof",
			Priority:    "high",
			Description: "Request delivery photo from driver or check GPS logs",
		})
	}
	if c.RefundHistory30d >= 3 {
		actions = append(actions, domain.SuggestedAction{
			Action:      "review_account",
			Priority:    "medium",
			Description: "Review customer account for potential abuse pattern",
		})
	}
	if contains(issues, "driver_issue") {
		actions = append(actions, domain.SuggestedAction{
			Action:      "driver_feedback",
			Priority:    "medium",
			Description: "Flag delivery partner for quality review",
		})
	}
	if a.DetectRootCause(text) == "restaurant_error" {
		actions = append(actions, domain.SuggestedAction{
			Action:      "restaurant_feedback",
			Priority:    "low",
			Description: "Send feedback to restaurant partner",
		})
	}

	return actions
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
