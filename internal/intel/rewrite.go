package intel

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/opensource-delivery/kite/internal/domain"
)

var issueDescriptions = map[string]string{
	"late_delivery":     "My order was delivered later than the estimated time",
	"missing_delivery":  "I did not receive my order",
	"wrong_item":        "I received incorrect items in my order",
	"damaged_item":      "Items in my order were damaged or of poor quality",
	"driver_issue":      "I experienced an issue with the delivery driver",
	"overcharge":        "I was charged incorrectly for my order",
	"general_complaint": "I have an issue with my order",
}

var informalWords = []string{"damn", "hell", "crap", "stupid"}

// Rewrite produces a clearer, professional restatement of the complaint
// along with the list of improvements made.
func (a *Analyzer) Rewrite(text string) *domain.RewriteResult {
	rewritten := a.rewriteText(text)
	return &domain.RewriteResult{
		Original:     text,
		Rewritten:    rewritten,
		Improvements: a.improvements(text, rewritten),
	}
}

func (a *Analyzer) rewriteText(text string) string {
	if text == "" {
		return ""
	}

	issues := a.DetectIssues(strings.ToLower(text))
	main, ok := issueDescriptions[issues[0]]
	if !ok {
		main = issueDescriptions["general_complaint"]
	}

	var b strings.Builder
	b.WriteString(main)
	b.WriteString(". ")

	if m := timePattern.FindStringSubmatch(text); m != nil {
		fmt.Fprintf(&b, "The delay was approximately %s %s. ", m[1], m[2])
	}

	b.WriteString("I would appreciate your assistance in resolving this matter.")
	return b.String()
}

func (a *Analyzer) improvements(original, rewritten string) []string {
	var improvements []string

	if len(rewritten) < len(original) {
		improvements = append(improvements, "Made more concise")
	}
	if isAllCaps(original) {
		improvements = append(improvements, "Removed all-caps (less aggressive)")
	}
	lower := strings.ToLower(original)
	for _, w := range informalWords {
		if strings.Contains(lower, w) {
			improvements = append(improvements, "Removed informal language")
			break
		}
	}

	improvements = append(improvements,
		"Added professional tone",
		"Structured with clear issue statement",
	)
	return improvements
}

// isAllCaps reports whether the text contains letters and none of them
// are lowercase.
func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
